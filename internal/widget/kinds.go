package widget

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"infoscreen/internal/config"
	"infoscreen/internal/render"
)

func textRenderer(deps Deps) (*render.Renderer, error) {
	if deps.Text != nil {
		return deps.Text, nil
	}
	return render.New(0)
}

// Clock shows the time of day, optionally blinking the separator.
type Clock struct {
	Base
	text *render.Renderer

	format     string
	flashColon bool
}

type clockOptions struct {
	Format     string `json:"format"`
	FlashColon bool   `json:"flash_colon"`
}

func NewClock(spec Spec, deps Deps) (Widget, error) {
	opts := clockOptions{Format: "15:04"}
	if err := DecodeOptions(spec.Options, &opts); err != nil {
		return nil, err
	}
	tr, err := textRenderer(deps)
	if err != nil {
		return nil, err
	}
	return &Clock{Base: NewBase(spec), text: tr, format: opts.Format, flashColon: opts.FlashColon}, nil
}

func (c *Clock) Draw(_ context.Context, at time.Time) error {
	s := at.Format(c.format)
	// separator is hidden on odd seconds
	if c.flashColon && at.Second()%2 == 1 {
		s = strings.ReplaceAll(s, ":", " ")
	}
	c.Clear()
	c.text.DrawCentered(c.canvas, s, c.canvas.Bounds(), c.text.FitScale(s, c.canvas.Bounds().Size()), c.Foreground())
	return nil
}

// Date shows the calendar date.
type Date struct {
	Base
	text   *render.Renderer
	format string
}

type dateOptions struct {
	Format string `json:"format"`
}

func NewDate(spec Spec, deps Deps) (Widget, error) {
	opts := dateOptions{Format: "Mon 02 Jan"}
	if err := DecodeOptions(spec.Options, &opts); err != nil {
		return nil, err
	}
	tr, err := textRenderer(deps)
	if err != nil {
		return nil, err
	}
	return &Date{Base: NewBase(spec), text: tr, format: opts.Format}, nil
}

func (d *Date) Draw(_ context.Context, at time.Time) error {
	s := at.Format(d.format)
	d.Clear()
	d.text.DrawCentered(d.canvas, s, d.canvas.Bounds(), d.text.FitScale(s, d.canvas.Bounds().Size()), d.Foreground())
	return nil
}

// Text shows a fixed string.
type Text struct {
	Base
	text  *render.Renderer
	value string
	scale int
}

type textOptions struct {
	Text  string `json:"text"`
	Scale int    `json:"scale"`
}

func NewText(spec Spec, deps Deps) (Widget, error) {
	var opts textOptions
	if err := DecodeOptions(spec.Options, &opts); err != nil {
		return nil, err
	}
	if opts.Text == "" {
		return nil, fmt.Errorf("text: options.text is required")
	}
	tr, err := textRenderer(deps)
	if err != nil {
		return nil, err
	}
	return &Text{Base: NewBase(spec), text: tr, value: opts.Text, scale: opts.Scale}, nil
}

func (t *Text) Draw(_ context.Context, _ time.Time) error {
	scale := t.scale
	if scale <= 0 {
		scale = t.text.FitScale(t.value, t.canvas.Bounds().Size())
	}
	t.Clear()
	t.text.DrawCentered(t.canvas, t.value, t.canvas.Bounds(), scale, t.Foreground())
	return nil
}

var ErrDummyFailure = errors.New("dummy: configured failure")

// Dummy draws its name and the target time after an optional delay. It can be
// told to fail, which makes it useful for exercising timeouts and errors.
type Dummy struct {
	Base
	text  *render.Renderer
	delay time.Duration
	fail  bool
}

type dummyOptions struct {
	Delay string `json:"delay"`
	Fail  bool   `json:"fail"`
}

func NewDummy(spec Spec, deps Deps) (Widget, error) {
	var opts dummyOptions
	if err := DecodeOptions(spec.Options, &opts); err != nil {
		return nil, err
	}
	delay, err := config.ParseDurationField("options.delay", opts.Delay)
	if err != nil {
		return nil, err
	}
	tr, err := textRenderer(deps)
	if err != nil {
		return nil, err
	}
	return &Dummy{Base: NewBase(spec), text: tr, delay: delay, fail: opts.Fail}, nil
}

func (d *Dummy) Draw(ctx context.Context, at time.Time) error {
	if d.delay > 0 {
		t := time.NewTimer(d.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if d.fail {
		return ErrDummyFailure
	}
	d.Clear()
	b := d.canvas.Bounds()
	d.text.Draw(d.canvas, d.info.Name, image.Pt(2, 2), 1, d.Foreground())
	d.text.DrawCentered(d.canvas, at.Format("15:04:05"), b, 1, d.Foreground())
	return nil
}

// Cleanup is a no-op; it exists so shutdown exercises the cleanup path.
func (d *Dummy) Cleanup() error { return nil }
