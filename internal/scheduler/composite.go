package scheduler

import (
	"image"

	"infoscreen/internal/canvas"
)

// PasteFastWidgets composites completed fast draws in completion order.
func (s *Scheduler) PasteFastWidgets() int {
	s.fastMu.Lock()
	defer s.fastMu.Unlock()
	n := s.paste(s.fastQueue)
	s.fastQueue = s.fastQueue[:0]
	return n
}

// PasteRegularWidgets composites completed regular draws, then redraws the
// grid decorations since they span many cells.
func (s *Scheduler) PasteRegularWidgets() int {
	s.regularMu.Lock()
	defer s.regularMu.Unlock()
	n := s.paste(s.regularQueue)
	s.regularQueue = s.regularQueue[:0]

	rects := make([]image.Rectangle, 0, len(s.regularWidgets)+len(s.fastWidgets))
	for _, e := range s.regularWidgets {
		rects = append(rects, e.info.Rect)
	}
	for _, e := range s.fastWidgets {
		rects = append(rects, e.info.Rect)
	}
	s.canvasMu.Lock()
	s.decor.DrawBorders(s.canvas, rects)
	s.decor.DrawLines(s.canvas)
	s.canvasMu.Unlock()
	return n
}

func (s *Scheduler) paste(queue []result) int {
	if len(queue) == 0 {
		return 0
	}
	margin := s.decor.Margin()
	s.canvasMu.Lock()
	defer s.canvasMu.Unlock()
	for i := range queue {
		r := &queue[i]
		canvas.Paste(s.canvas, r.img, r.rect, r.invert, margin)
		r.img = nil
	}
	return len(queue)
}
