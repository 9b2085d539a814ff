// Package display contains the frame-buffer sinks the scheduler pushes to.
//
// Every sink keeps its own frame buffer. Buffer and SetBuffer copy, so the
// caller's canvas can keep changing after a push.
package display

import (
	"errors"
	"fmt"
	"image"

	"infoscreen/internal/canvas"
	"infoscreen/internal/config"
	"infoscreen/pkg/logx"
)

var ErrClosed = errors.New("display closed")

// Mode selects the refresh waveform.
type Mode struct {
	Partial   bool
	Greyscale bool
	Flash     bool
}

var (
	// GreyPartial is the once-per-minute update.
	GreyPartial = Mode{Partial: true, Greyscale: true}
	// MonoPartial is the cheap per-second update.
	MonoPartial = Mode{Partial: true}
	// FullFlash clears ghosting; used at bootstrap.
	FullFlash = Mode{Greyscale: true, Flash: true}
	// Full is a full greyscale redraw without flashing.
	Full = Mode{Greyscale: true}
)

func (m Mode) String() string {
	s := "full"
	if m.Partial {
		s = "partial"
	}
	if m.Greyscale {
		s += "/grey"
	} else {
		s += "/mono"
	}
	if m.Flash {
		s += "/flash"
	}
	return s
}

// Sink is a slow-refresh display. Calls must not overlap.
type Sink interface {
	Width() int
	Height() int
	Clear() error
	Buffer() *image.Gray
	SetBuffer(buf *image.Gray) error
	Refresh(mode Mode) error
	Close() error
}

// frame is the buffer shared by the concrete sinks.
type frame struct {
	buf *image.Gray
}

func newFrame(w, h int) frame { return frame{buf: canvas.New(w, h, 255)} }

func (f *frame) Width() int  { return f.buf.Rect.Dx() }
func (f *frame) Height() int { return f.buf.Rect.Dy() }

func (f *frame) Buffer() *image.Gray { return canvas.Clone(f.buf) }

func (f *frame) SetBuffer(buf *image.Gray) error {
	if buf == nil {
		return errors.New("display: nil buffer")
	}
	if buf.Rect.Size() != f.buf.Rect.Size() {
		return fmt.Errorf("display: buffer is %v, display is %v", buf.Rect.Size(), f.buf.Rect.Size())
	}
	canvas.Paste(f.buf, buf, f.buf.Rect, false, 0)
	return nil
}

func (f *frame) whiten() { canvas.Fill(f.buf, 255) }

// render returns what the panel would show for mode. Monochrome waveforms
// only distinguish black from white.
func (f *frame) render(mode Mode) *image.Gray {
	if mode.Greyscale {
		return f.buf
	}
	out := canvas.Clone(f.buf)
	for i, v := range out.Pix {
		if v < 128 {
			out.Pix[i] = 0
		} else {
			out.Pix[i] = 255
		}
	}
	return out
}

// refresh runs the shared waveform emulation: monochrome flashes go to a
// white frame first, then the buffer is drawn.
func (f *frame) refresh(mode Mode, draw func(img *image.Gray, mode Mode) error) error {
	if !mode.Greyscale && mode.Flash {
		saved := canvas.Clone(f.buf)
		f.whiten()
		if err := draw(f.buf, Mode{}); err != nil {
			canvas.Paste(f.buf, saved, f.buf.Rect, false, 0)
			return err
		}
		canvas.Paste(f.buf, saved, f.buf.Rect, false, 0)
	}
	return draw(f.render(mode), mode)
}

// Open builds the sink selected by cfg. onQuit is called when an interactive
// sink asks the process to stop; it may be nil.
func Open(cfg config.DisplayConfig, log logx.Logger, onQuit func()) (Sink, error) {
	cfg = cfg.Resolved()
	switch cfg.Driver {
	case "png":
		return NewPNG(cfg.Path, cfg.Width, cfg.Height, log), nil
	case "terminal":
		return NewTerminal(cfg.Width, cfg.Height, onQuit)
	case "memory":
		return NewMemory(cfg.Width, cfg.Height), nil
	default:
		return nil, fmt.Errorf("display: unknown driver %q", cfg.Driver)
	}
}
