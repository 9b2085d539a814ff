package layout

import (
	"errors"
	"image"
	"testing"
)

func TestGridRect(t *testing.T) {
	t.Parallel()
	g, err := NewGrid(800, 600, 6, 8)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if g.RowHeight != 100 || g.ColWidth != 100 {
		t.Fatalf("cell = %dx%d", g.ColWidth, g.RowHeight)
	}

	tests := []struct {
		name     string
		row, col string
		want     image.Rectangle
	}{
		{name: "origin", row: "", col: "", want: image.Rect(0, 0, 100, 100)},
		{name: "single", row: "2", col: "3", want: image.Rect(300, 200, 400, 300)},
		{name: "col range", row: "0", col: "0-3", want: image.Rect(0, 0, 400, 100)},
		{name: "both ranges", row: "1-2", col: "4-7", want: image.Rect(400, 100, 800, 300)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Rect(tt.row, tt.col)
			if err != nil {
				t.Fatalf("Rect: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Rect(%q,%q) = %v, want %v", tt.row, tt.col, got, tt.want)
			}
		})
	}
}

func TestGridRectInvalid(t *testing.T) {
	t.Parallel()
	g, _ := NewGrid(800, 600, 6, 8)
	for _, tc := range [][2]string{{"6", "0"}, {"0", "3-1"}, {"a", "0"}, {"1-2-3", "0"}, {"0", "7-8"}} {
		if _, err := g.Rect(tc[0], tc[1]); !errors.Is(err, ErrInvalidSpan) {
			t.Fatalf("Rect(%q,%q) err = %v, want ErrInvalidSpan", tc[0], tc[1], err)
		}
	}
}

func TestNewGridInvalid(t *testing.T) {
	t.Parallel()
	if _, err := NewGrid(800, 600, 0, 8); err == nil {
		t.Fatal("expected error for zero rows")
	}
	if _, err := NewGrid(4, 4, 6, 8); err == nil {
		t.Fatal("expected error for tiny display")
	}
}

func TestParseLines(t *testing.T) {
	t.Parallel()
	got := ParseLines([]string{"2, 0-4", "3,5", "junk", "1, 2-3\n4, 6"})
	want := []Line{{2, 0, 4}, {3, 5, 6}, {1, 2, 3}, {4, 6, 7}}
	if len(got) != len(want) {
		t.Fatalf("ParseLines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %v, want %v", i, got[i], want[i])
		}
	}
}
