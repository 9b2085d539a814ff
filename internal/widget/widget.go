// Package widget defines the Widget capability consumed by the scheduler and
// the registration table mapping kind names to constructors.
package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"infoscreen/internal/canvas"
	"infoscreen/internal/render"
	"infoscreen/pkg/logx"
)

// Info is the static description of a constructed widget.
type Info struct {
	Name            string
	Rect            image.Rectangle
	FastUpdate      bool
	RefreshInterval int
	Invert          bool
}

// Widget owns a private canvas that only its own draws write to.
type Widget interface {
	Info() Info
	// Draw renders the widget for the given instant. Implementations should
	// return promptly once ctx is done.
	Draw(ctx context.Context, at time.Time) error
	Canvas() *image.Gray
}

// Cleaner is implemented by widgets holding resources that must be released
// at shutdown.
type Cleaner interface {
	Cleanup() error
}

// Spec is what a factory receives for one configured widget.
type Spec struct {
	Name            string
	Rect            image.Rectangle
	FastUpdate      bool
	RefreshInterval int
	Invert          bool
	Background      uint8
	Options         json.RawMessage
}

// Deps are shared collaborators injected into every factory.
type Deps struct {
	Text *render.Renderer
	Log  logx.Logger
}

// Base carries the common Info and canvas plumbing for concrete kinds.
type Base struct {
	info   Info
	bg     uint8
	canvas *image.Gray
}

// NewBase allocates a background-filled canvas sized to spec.Rect.
func NewBase(spec Spec) Base {
	return Base{
		info: Info{
			Name:            spec.Name,
			Rect:            spec.Rect,
			FastUpdate:      spec.FastUpdate,
			RefreshInterval: spec.RefreshInterval,
			Invert:          spec.Invert,
		},
		bg:     spec.Background,
		canvas: canvas.New(spec.Rect.Dx(), spec.Rect.Dy(), spec.Background),
	}
}

func (b *Base) Info() Info          { return b.info }
func (b *Base) Canvas() *image.Gray { return b.canvas }

// Clear repaints the canvas with the background value.
func (b *Base) Clear() { canvas.Fill(b.canvas, b.bg) }

// Foreground returns the ink colour opposite the background.
func (b *Base) Foreground() uint8 {
	if b.bg > 127 {
		return 0
	}
	return 255
}

// DecodeOptions strictly decodes raw into v. Empty input leaves v unchanged.
func DecodeOptions(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	return nil
}
