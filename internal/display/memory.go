package display

import (
	"image"
	"sync"

	"infoscreen/internal/canvas"
)

// Memory keeps pushed frames in memory. It is used for dry runs and tests.
type Memory struct {
	mu sync.Mutex
	frame
	modes  []Mode
	last   *image.Gray
	closed bool
}

func NewMemory(w, h int) *Memory {
	return &Memory{frame: newFrame(w, h)}
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.whiten()
	m.last = canvas.Clone(m.buf)
	return nil
}

func (m *Memory) Buffer() *image.Gray {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame.Buffer()
}

func (m *Memory) SetBuffer(buf *image.Gray) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.frame.SetBuffer(buf)
}

func (m *Memory) Refresh(mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.modes = append(m.modes, mode)
	return m.refresh(mode, func(img *image.Gray, _ Mode) error {
		m.last = canvas.Clone(img)
		return nil
	})
}

// Modes returns the refresh modes seen so far, in order.
func (m *Memory) Modes() []Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mode(nil), m.modes...)
}

// Shown returns a copy of the last frame drawn, or nil before the first refresh.
func (m *Memory) Shown() *image.Gray {
	m.mu.Lock()
	defer m.mu.Unlock()
	return canvas.Clone(m.last)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
