// Package canvas holds the greyscale raster helpers used when compositing
// widget output onto the shared display canvas.
package canvas

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"infoscreen/internal/layout"
)

// New returns a w x h greyscale canvas filled with bg.
func New(w, h int, bg uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	Fill(img, bg)
	return img
}

// Fill paints every pixel of img with v.
func Fill(img *image.Gray, v uint8) {
	for i := range img.Pix {
		img.Pix[i] = v
	}
}

// Clone returns a deep copy of img.
func Clone(img *image.Gray) *image.Gray {
	if img == nil {
		return nil
	}
	out := &image.Gray{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	return out
}

// Invert returns a negative copy of img.
func Invert(img *image.Gray) *image.Gray {
	out := Clone(img)
	for i, v := range out.Pix {
		out.Pix[i] = 255 - v
	}
	return out
}

// Decor describes the grid decorations drawn on top of widget output.
type Decor struct {
	Borders bool
	Lines   bool
	Width   int
	Color   uint8

	Grid       layout.Grid
	Horizontal []layout.Line
	Vertical   []layout.Line
}

// Margin is how far pasted widget output is inset so decorations that are
// already on the canvas are not overwritten.
func (d Decor) Margin() int {
	if !d.Borders && !d.Lines {
		return 0
	}
	return d.Width/2 + 1
}

// Paste copies src onto dst at rect, inset by margin on every side.
func Paste(dst, src *image.Gray, rect image.Rectangle, invert bool, margin int) {
	if dst == nil || src == nil {
		return
	}
	if invert {
		src = Invert(src)
	}
	sb := src.Bounds()
	crop := image.Rect(sb.Min.X+margin, sb.Min.Y+margin, sb.Max.X-margin, sb.Max.Y-margin)
	if crop.Empty() {
		return
	}
	at := rect.Min.Add(image.Pt(margin, margin))
	target := image.Rectangle{Min: at, Max: at.Add(crop.Size())}.Intersect(rect).Intersect(dst.Bounds())
	if target.Empty() {
		return
	}
	xdraw.Draw(dst, target, src, crop.Min, xdraw.Src)
}

// DrawBorders outlines every rect.
func (d Decor) DrawBorders(dst *image.Gray, rects []image.Rectangle) {
	if !d.Borders || d.Width <= 0 {
		return
	}
	for _, r := range rects {
		x0, y0 := r.Min.X, r.Min.Y
		x1, y1 := r.Max.X-1, r.Max.Y
		d.hline(dst, x0, x1, y0)
		d.vline(dst, x1, y0, y1)
		d.hline(dst, x0, x1, y1)
		d.vline(dst, x0, y0, y1)
	}
}

// DrawLines renders the configured gridlines with round caps.
func (d Decor) DrawLines(dst *image.Gray) {
	if !d.Lines || d.Width <= 0 {
		return
	}
	rh, cw := d.Grid.RowHeight, d.Grid.ColWidth
	r := d.Width / 2
	for _, l := range d.Horizontal {
		y := l.At * rh
		x0, x1 := l.Start*cw, l.End*cw
		d.hline(dst, x0, x1, y)
		d.disc(dst, x0, y, r)
		d.disc(dst, x1, y, r)
	}
	for _, l := range d.Vertical {
		x := l.At * cw
		y0, y1 := l.Start*rh, l.End*rh
		d.vline(dst, x, y0, y1)
		d.disc(dst, x, y0, r)
		d.disc(dst, x, y1, r)
	}
}

func (d Decor) fill(dst *image.Gray, r image.Rectangle) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	xdraw.Draw(dst, r, image.NewUniform(color.Gray{Y: d.Color}), image.Point{}, xdraw.Src)
}

func (d Decor) hline(dst *image.Gray, x0, x1, y int) {
	top := y - d.Width/2
	d.fill(dst, image.Rect(x0, top, x1+1, top+d.Width))
}

func (d Decor) vline(dst *image.Gray, x, y0, y1 int) {
	left := x - d.Width/2
	d.fill(dst, image.Rect(left, y0, left+d.Width, y1+1))
}

func (d Decor) disc(dst *image.Gray, cx, cy, r int) {
	if r <= 0 {
		return
	}
	b := dst.Bounds()
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy > r*r {
				continue
			}
			if image.Pt(x, y).In(b) {
				dst.SetGray(x, y, color.Gray{Y: d.Color})
			}
		}
	}
}
