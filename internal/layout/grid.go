// Package layout maps the configured row/column grid onto display pixels.
package layout

import (
	"errors"
	"fmt"
	"image"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidSpan = errors.New("invalid grid span")

// Grid divides a display into equally sized cells.
type Grid struct {
	Rows, Cols int
	RowHeight  int
	ColWidth   int
}

// NewGrid computes cell sizes for a width x height display.
func NewGrid(width, height, rows, cols int) (Grid, error) {
	if rows <= 0 || cols <= 0 {
		return Grid{}, fmt.Errorf("grid: rows and cols must be > 0 (got %dx%d)", rows, cols)
	}
	if width < cols || height < rows {
		return Grid{}, fmt.Errorf("grid: %dx%d display too small for %dx%d cells", width, height, cols, rows)
	}
	return Grid{Rows: rows, Cols: cols, RowHeight: height / rows, ColWidth: width / cols}, nil
}

// ParseSpan parses "3" or "2-4" into an inclusive [first, last] range.
// An empty span means cell 0.
func ParseSpan(raw string) (first, last int, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.Split(s, "-")
	if len(parts) > 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSpan, raw)
	}
	first, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || first < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSpan, raw)
	}
	last = first
	if len(parts) == 2 {
		last, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || last < first {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSpan, raw)
		}
	}
	return first, last, nil
}

// Rect returns the pixel rectangle covered by the given row and column spans.
func (g Grid) Rect(rowSpan, colSpan string) (image.Rectangle, error) {
	r0, r1, err := ParseSpan(rowSpan)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("row: %w", err)
	}
	c0, c1, err := ParseSpan(colSpan)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("col: %w", err)
	}
	if r1 >= g.Rows || c1 >= g.Cols {
		return image.Rectangle{}, fmt.Errorf("%w: cell %s/%s outside %dx%d grid", ErrInvalidSpan, rowSpan, colSpan, g.Rows, g.Cols)
	}
	x := c0 * g.ColWidth
	y := r0 * g.RowHeight
	w := g.ColWidth * (1 + c1 - c0)
	h := g.RowHeight * (1 + r1 - r0)
	return image.Rect(x, y, x+w, y+h), nil
}

// Line is a decorative gridline along a cell boundary.
//
// Horizontal lines sit on row boundary At and run from column Start to End;
// vertical lines sit on column boundary At and run from row Start to End.
type Line struct {
	At, Start, End int
}

var linePattern = regexp.MustCompile(`(\d+),\s*(?:(?:(\d+)-(\d+))|(\d+))`)

// ParseLines parses gridline entries like "2, 0-4" or "3, 1".
// A single index means one cell long. Entries that don't match are skipped.
func ParseLines(entries []string) []Line {
	out := make([]Line, 0, len(entries))
	for _, e := range entries {
		for _, row := range strings.Split(e, "\n") {
			m := linePattern.FindStringSubmatch(row)
			if m == nil {
				continue
			}
			at, _ := strconv.Atoi(m[1])
			var ln Line
			if m[4] != "" {
				start, _ := strconv.Atoi(m[4])
				ln = Line{At: at, Start: start, End: start + 1}
			} else {
				start, _ := strconv.Atoi(m[2])
				end, _ := strconv.Atoi(m[3])
				ln = Line{At: at, Start: start, End: end}
			}
			out = append(out, ln)
		}
	}
	return out
}
