package display

import (
	"image"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Terminal previews the frame buffer in a terminal using half-block cells,
// two pixels per cell, scaled down to fit the window.
type Terminal struct {
	frame
	screen tcell.Screen
	onQuit func()

	mu      sync.Mutex
	resized bool
	once    sync.Once
}

func NewTerminal(w, h int, onQuit func()) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewTerminalWithScreen(screen, w, h, onQuit)
}

// NewTerminalWithScreen initialises screen and starts its event loop.
// onQuit runs on the event goroutine.
func NewTerminalWithScreen(screen tcell.Screen, w, h int, onQuit func()) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	t := &Terminal{
		frame:  newFrame(w, h),
		screen: screen,
		onQuit: onQuit,
	}
	go t.handleEvents()
	return t, nil
}

func (t *Terminal) handleEvents() {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventResize:
			t.mu.Lock()
			t.resized = true
			t.mu.Unlock()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyCtrlC || ev.Key() == tcell.KeyEscape || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				if t.onQuit != nil {
					t.onQuit()
				}
			}
		}
	}
}

func (t *Terminal) Clear() error {
	t.whiten()
	t.draw(t.buf, Mode{})
	return nil
}

func (t *Terminal) Refresh(mode Mode) error {
	return t.refresh(mode, func(img *image.Gray, m Mode) error {
		t.draw(img, m)
		return nil
	})
}

func (t *Terminal) draw(img *image.Gray, mode Mode) {
	cols, rows := t.screen.Size()
	if rows > 1 {
		rows-- // status line
	}
	for _, c := range halfBlocks(img, cols, rows) {
		style := tcell.StyleDefault.
			Foreground(tcell.NewRGBColor(int32(c.top), int32(c.top), int32(c.top))).
			Background(tcell.NewRGBColor(int32(c.bottom), int32(c.bottom), int32(c.bottom)))
		t.screen.SetContent(c.x, c.y, '▀', nil, style)
	}
	if rows > 0 {
		status := " " + mode.String() + "  (q to quit)"
		for i, r := range status {
			if i >= cols {
				break
			}
			t.screen.SetContent(i, rows, r, nil, tcell.StyleDefault)
		}
	}

	t.mu.Lock()
	resized := t.resized
	t.resized = false
	t.mu.Unlock()
	if resized || !mode.Partial {
		t.screen.Sync()
		return
	}
	t.screen.Show()
}

func (t *Terminal) Close() error {
	t.once.Do(func() {
		t.screen.Fini()
	})
	return nil
}

type cell struct {
	x, y        int
	top, bottom uint8
}

// halfBlocks samples img into a cols x rows grid where each cell shows two
// vertically stacked pixels. The aspect ratio is kept.
func halfBlocks(img *image.Gray, cols, rows int) []cell {
	b := img.Bounds()
	if cols <= 0 || rows <= 0 || b.Empty() {
		return nil
	}
	// pixels per sample, same on both axes
	step := max((b.Dx()+cols-1)/cols, (b.Dy()+2*rows-1)/(2*rows), 1)
	w := b.Dx() / step
	h := b.Dy() / step / 2
	out := make([]cell, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := b.Min.X + x*step
			top := img.GrayAt(px, b.Min.Y+2*y*step).Y
			bottom := img.GrayAt(px, b.Min.Y+(2*y+1)*step).Y
			out = append(out, cell{x: x, y: y, top: top, bottom: bottom})
		}
	}
	return out
}
