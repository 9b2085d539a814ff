// Package render rasterises text for widgets. Glyph masks are kept in a
// size-bounded LRU cache owned by the Renderer, so each caller decides how
// much memory text rendering may hold.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const DefaultCacheSize = 256

type maskKey struct {
	text  string
	scale int
}

// Renderer draws scaled bitmap text. It is safe for concurrent use.
type Renderer struct {
	face  font.Face
	cache *lru.Cache[maskKey, *image.Alpha]
}

// New returns a Renderer whose mask cache holds at most size entries.
func New(size int) (*Renderer, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[maskKey, *image.Alpha](size)
	if err != nil {
		return nil, fmt.Errorf("render: cache: %w", err)
	}
	return &Renderer{face: basicfont.Face7x13, cache: c}, nil
}

// Cached reports how many masks are currently cached.
func (r *Renderer) Cached() int { return r.cache.Len() }

// Size returns the pixel size of text at the given integer scale.
func (r *Renderer) Size(text string, scale int) image.Point {
	return r.Mask(text, scale).Bounds().Size()
}

// Mask returns the alpha mask for text. The result is shared and must
// not be modified.
func (r *Renderer) Mask(text string, scale int) *image.Alpha {
	if scale < 1 {
		scale = 1
	}
	k := maskKey{text: text, scale: scale}
	if m, ok := r.cache.Get(k); ok {
		return m
	}
	base := r.rasterise(text)
	m := base
	if scale > 1 {
		b := base.Bounds()
		m = image.NewAlpha(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		draw.NearestNeighbor.Scale(m, m.Bounds(), base, b, draw.Src, nil)
	}
	r.cache.Add(k, m)
	return m
}

func (r *Renderer) rasterise(text string) *image.Alpha {
	lines := strings.Split(text, "\n")
	metrics := r.face.Metrics()
	lineH := metrics.Height.Ceil()
	w := 0
	for _, ln := range lines {
		if adv := font.MeasureString(r.face, ln).Ceil(); adv > w {
			w = adv
		}
	}
	if w == 0 {
		w = 1
	}
	img := image.NewAlpha(image.Rect(0, 0, w, lineH*len(lines)))
	d := font.Drawer{Dst: img, Src: image.Opaque, Face: r.face}
	for i, ln := range lines {
		d.Dot = fixed.P(0, i*lineH+metrics.Ascent.Ceil())
		d.DrawString(ln)
	}
	return img
}

// Draw paints text onto dst with its top-left corner at at.
func (r *Renderer) Draw(dst *image.Gray, text string, at image.Point, scale int, fg uint8) {
	m := r.Mask(text, scale)
	rect := m.Bounds().Add(at)
	draw.DrawMask(dst, rect, image.NewUniform(color.Gray{Y: fg}), image.Point{}, m, image.Point{}, draw.Over)
}

// DrawCentered paints text centred inside bounds.
func (r *Renderer) DrawCentered(dst *image.Gray, text string, bounds image.Rectangle, scale int, fg uint8) {
	sz := r.Size(text, scale)
	at := image.Pt(
		bounds.Min.X+(bounds.Dx()-sz.X)/2,
		bounds.Min.Y+(bounds.Dy()-sz.Y)/2,
	)
	r.Draw(dst, text, at, scale, fg)
}

// FitScale returns the largest scale at which text fits inside box, or 1.
func (r *Renderer) FitScale(text string, box image.Point) int {
	base := r.Size(text, 1)
	if base.X == 0 || base.Y == 0 {
		return 1
	}
	s := min(box.X/base.X, box.Y/base.Y)
	if s < 1 {
		return 1
	}
	return s
}
