package canvas

import (
	"bytes"
	"image"
	"testing"

	"infoscreen/internal/layout"
)

func solid(w, h int, v uint8) *image.Gray { return New(w, h, v) }

func TestPasteWithoutMargin(t *testing.T) {
	t.Parallel()
	dst := New(20, 10, 255)
	Paste(dst, solid(5, 5, 0), image.Rect(10, 0, 15, 5), false, 0)

	if got := dst.GrayAt(10, 0).Y; got != 0 {
		t.Fatalf("top-left of pasted rect = %d, want 0", got)
	}
	if got := dst.GrayAt(14, 4).Y; got != 0 {
		t.Fatalf("bottom-right of pasted rect = %d, want 0", got)
	}
	if got := dst.GrayAt(15, 0).Y; got != 255 {
		t.Fatalf("pixel outside rect touched: %d", got)
	}
}

func TestPasteInvertAndMargin(t *testing.T) {
	t.Parallel()
	dst := New(10, 10, 100)
	Paste(dst, solid(10, 10, 0), dst.Bounds(), true, 2)

	if got := dst.GrayAt(1, 1).Y; got != 100 {
		t.Fatalf("margin pixel overwritten: %d", got)
	}
	if got := dst.GrayAt(2, 2).Y; got != 255 {
		t.Fatalf("inverted pixel = %d, want 255", got)
	}
	if got := dst.GrayAt(7, 7).Y; got != 255 {
		t.Fatalf("inner pixel = %d, want 255", got)
	}
	if got := dst.GrayAt(8, 8).Y; got != 100 {
		t.Fatalf("far margin pixel overwritten: %d", got)
	}
}

func TestPasteDoesNotMutateSource(t *testing.T) {
	t.Parallel()
	src := solid(4, 4, 10)
	Paste(New(4, 4, 0), src, image.Rect(0, 0, 4, 4), true, 0)
	if src.GrayAt(0, 0).Y != 10 {
		t.Fatal("invert must not change the widget canvas")
	}
}

func TestDisjointPasteOrderIndependent(t *testing.T) {
	t.Parallel()
	a, ra := solid(10, 10, 0), image.Rect(0, 0, 10, 10)
	b, rb := solid(10, 10, 60), image.Rect(10, 0, 20, 10)

	first := New(20, 10, 255)
	Paste(first, a, ra, false, 1)
	Paste(first, b, rb, true, 1)

	second := New(20, 10, 255)
	Paste(second, b, rb, true, 1)
	Paste(second, a, ra, false, 1)

	if !bytes.Equal(first.Pix, second.Pix) {
		t.Fatal("paste order changed the result for disjoint rects")
	}
}

func TestMargin(t *testing.T) {
	t.Parallel()
	if m := (Decor{Width: 4}).Margin(); m != 0 {
		t.Fatalf("no decorations: margin = %d", m)
	}
	if m := (Decor{Borders: true, Width: 4}).Margin(); m != 3 {
		t.Fatalf("borders: margin = %d, want 3", m)
	}
	if m := (Decor{Lines: true, Width: 2}).Margin(); m != 2 {
		t.Fatalf("lines: margin = %d, want 2", m)
	}
}

func TestDrawBordersAndLines(t *testing.T) {
	t.Parallel()
	g, _ := layout.NewGrid(40, 40, 2, 2)
	d := Decor{
		Borders:    true,
		Lines:      true,
		Width:      2,
		Color:      127,
		Grid:       g,
		Horizontal: []layout.Line{{At: 1, Start: 0, End: 2}},
	}
	dst := New(40, 40, 255)
	d.DrawBorders(dst, []image.Rectangle{image.Rect(0, 0, 20, 20)})
	if got := dst.GrayAt(5, 0).Y; got != 127 {
		t.Fatalf("top border pixel = %d", got)
	}
	if got := dst.GrayAt(10, 10).Y; got != 255 {
		t.Fatalf("widget interior touched by border: %d", got)
	}

	d.DrawLines(dst)
	if got := dst.GrayAt(30, 20).Y; got != 127 {
		t.Fatalf("gridline pixel = %d", got)
	}
	if got := dst.GrayAt(30, 30).Y; got != 255 {
		t.Fatalf("pixel away from gridline = %d", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	src := solid(2, 2, 5)
	c := Clone(src)
	c.Pix[0] = 9
	if src.Pix[0] != 5 {
		t.Fatal("clone shares pixels with source")
	}
}
