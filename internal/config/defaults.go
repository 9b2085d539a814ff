package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultRows           = 6
	DefaultCols           = 8
	DefaultBackground     = 255
	DefaultBorderWidth    = 2
	DefaultBorderColor    = 127
	DefaultFastWorkers    = 2
	DefaultRegularWorkers = 3
	DefaultRegularTimeout = 40 * time.Second
	DefaultPopulateWait   = 2 * time.Second
	DefaultFontCacheSize  = 256
	DefaultDisplayWidth   = 800
	DefaultDisplayHeight  = 600
	DefaultMetricsAddr    = "127.0.0.1:9108"
	DefaultMetricsPath    = "/metrics"
	DefaultDisplayPath    = "display.png"
)

// Durations resolves the scheduler duration strings.
func (c SchedulerConfig) Durations() (regularTimeout, populateWait time.Duration, err error) {
	regularTimeout, err = ParseDurationOrDefault("scheduler.regular_timeout", c.RegularTimeout, DefaultRegularTimeout)
	if err != nil {
		return 0, 0, err
	}
	populateWait, err = ParseDurationOrDefault("scheduler.populate_wait", c.PopulateWait, DefaultPopulateWait)
	if err != nil {
		return 0, 0, err
	}
	return regularTimeout, populateWait, nil
}

// Validate checks the parts of the config that must be correct for the
// process to start. Per-widget problems are not reported here: a broken
// widget block only drops that widget at load time.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if c.Layout.Rows < 0 || c.Layout.Cols < 0 {
		errs = append(errs, errors.New("layout: rows/cols must be >= 0"))
	}
	if c.Layout.BorderWidth < 0 {
		errs = append(errs, errors.New("layout.border_width must be >= 0"))
	}
	if _, _, err := c.Scheduler.Durations(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Scheduler.Location(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Display.Driver)) {
	case "", "png", "terminal", "memory":
	default:
		errs = append(errs, fmt.Errorf("display.driver: unknown driver %q", c.Display.Driver))
	}
	seen := map[string]bool{}
	for i, w := range c.Widgets {
		name := strings.TrimSpace(w.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("widgets[%d]: name required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("widgets[%d]: duplicate name %q", i, name))
		}
		seen[name] = true
	}
	return errors.Join(errs...)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// BackgroundValue returns the canvas background grey level.
func (l LayoutConfig) BackgroundValue() uint8 { return clampGrey(intOr(l.Background, DefaultBackground)) }

// BorderColorValue returns the decoration grey level.
func (l LayoutConfig) BorderColorValue() uint8 {
	return clampGrey(intOr(l.BorderColor, DefaultBorderColor))
}

// BordersEnabled reports whether per-widget borders are drawn.
func (l LayoutConfig) BordersEnabled() bool { return boolOr(l.Borders, true) }

func clampGrey(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// GridSize returns rows and cols with defaults applied.
func (l LayoutConfig) GridSize() (rows, cols int) {
	rows, cols = l.Rows, l.Cols
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	return rows, cols
}

// BorderWidthValue returns the decoration width with the default applied.
func (l LayoutConfig) BorderWidthValue() int {
	if l.BorderWidth <= 0 {
		return DefaultBorderWidth
	}
	return l.BorderWidth
}

// Resolved returns a copy with defaults filled in and the driver normalised.
func (d DisplayConfig) Resolved() DisplayConfig {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	if d.Driver == "" {
		d.Driver = "png"
	}
	if d.Width <= 0 {
		d.Width = DefaultDisplayWidth
	}
	if d.Height <= 0 {
		d.Height = DefaultDisplayHeight
	}
	if strings.TrimSpace(d.Path) == "" {
		d.Path = DefaultDisplayPath
	}
	return d
}

// Workers returns the pool sizes with defaults applied.
func (c SchedulerConfig) Workers() (fast, regular int) {
	fast, regular = c.FastWorkers, c.RegularWorkers
	if fast <= 0 {
		fast = DefaultFastWorkers
	}
	if regular <= 0 {
		regular = DefaultRegularWorkers
	}
	return fast, regular
}

// Location resolves the configured timezone; empty means local time.
func (c SchedulerConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}
