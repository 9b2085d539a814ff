package display

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"infoscreen/internal/canvas"
	"infoscreen/internal/config"
	"infoscreen/pkg/logx"
)

func TestModeString(t *testing.T) {
	t.Parallel()
	cases := map[Mode]string{
		GreyPartial: "partial/grey",
		MonoPartial: "partial/mono",
		FullFlash:   "full/grey/flash",
		Full:        "full/grey",
	}
	for m, want := range cases {
		if got := m.String(); got != want {
			t.Fatalf("%+v.String() = %q, want %q", m, got, want)
		}
	}
}

func TestMemoryBufferCopies(t *testing.T) {
	t.Parallel()
	m := NewMemory(4, 4)
	src := canvas.New(4, 4, 10)
	if err := m.SetBuffer(src); err != nil {
		t.Fatal(err)
	}
	src.Pix[0] = 200
	if got := m.Buffer().Pix[0]; got != 10 {
		t.Fatalf("buffer shares memory with caller: %d", got)
	}
	if err := m.SetBuffer(canvas.New(3, 3, 0)); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestMemoryMonoThresholdAndFlash(t *testing.T) {
	t.Parallel()
	m := NewMemory(2, 1)
	buf := canvas.New(2, 1, 0)
	buf.Pix[0], buf.Pix[1] = 100, 200
	_ = m.SetBuffer(buf)

	if err := m.Refresh(Mode{Flash: true}); err != nil {
		t.Fatal(err)
	}
	shown := m.Shown()
	if shown.Pix[0] != 0 || shown.Pix[1] != 255 {
		t.Fatalf("mono frame = %v", shown.Pix)
	}
	if got := m.Buffer().Pix[0]; got != 100 {
		t.Fatalf("flash must restore the buffer, got %d", got)
	}

	if err := m.Refresh(GreyPartial); err != nil {
		t.Fatal(err)
	}
	if m.Shown().Pix[0] != 100 {
		t.Fatal("greyscale refresh should keep grey levels")
	}
	modes := m.Modes()
	if len(modes) != 2 || modes[1] != GreyPartial {
		t.Fatalf("modes = %v", modes)
	}
	_ = m.Close()
	if err := m.Refresh(GreyPartial); err == nil {
		t.Fatal("refresh after close should fail")
	}
}

func TestPNGWritesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.png")
	p := NewPNG(path, 8, 6, logx.Nop())
	buf := canvas.New(8, 6, 255)
	buf.Pix[0] = 0
	if err := p.SetBuffer(buf); err != nil {
		t.Fatal(err)
	}
	if err := p.Refresh(FullFlash); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 8, 6) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r != 0 {
		t.Fatalf("pixel (0,0) = %d, want black", r)
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".display-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()
	s, err := Open(config.DisplayConfig{Driver: "memory", Width: 10, Height: 5}, logx.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Width() != 10 || s.Height() != 5 {
		t.Fatalf("size = %dx%d", s.Width(), s.Height())
	}
	if _, err := Open(config.DisplayConfig{Driver: "epd"}, logx.Nop(), nil); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestHalfBlocksKeepsAspect(t *testing.T) {
	t.Parallel()
	img := canvas.New(800, 600, 255)
	img.Pix[0] = 0
	cells := halfBlocks(img, 100, 40)
	// step = max(8, 8) => 100 x 37 cells
	if len(cells) != 100*37 {
		t.Fatalf("cells = %d", len(cells))
	}
	if cells[0].top != 0 || cells[0].bottom != 255 {
		t.Fatalf("first cell = %+v", cells[0])
	}
	if halfBlocks(img, 0, 10) != nil {
		t.Fatal("empty screen should yield no cells")
	}
}
