package display

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"infoscreen/pkg/logx"
)

// PNG writes every refresh to a file. The write is atomic so external
// viewers never see a partial image.
type PNG struct {
	frame
	path string
	log  logx.Logger
	enc  png.Encoder
}

func NewPNG(path string, w, h int, log logx.Logger) *PNG {
	return &PNG{
		frame: newFrame(w, h),
		path:  path,
		log:   log.With(logx.String("comp", "display.png")),
		enc:   png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

func (p *PNG) Clear() error {
	p.whiten()
	return p.write(p.buf)
}

func (p *PNG) Refresh(mode Mode) error {
	return p.refresh(mode, func(img *image.Gray, m Mode) error {
		p.log.Trace("png refresh", logx.String("mode", m.String()))
		return p.write(img)
	})
}

func (p *PNG) write(img *image.Gray) error {
	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".display-*.png")
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	name := tmp.Name()
	if err := p.enc.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("display: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("display: %w", err)
	}
	if err := os.Rename(name, p.path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("display: %w", err)
	}
	return nil
}

func (p *PNG) Close() error { return nil }
