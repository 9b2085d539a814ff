package config

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Display   DisplayConfig   `json:"display"`
	Layout    LayoutConfig    `json:"layout"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Fonts     FontsConfig     `json:"fonts,omitempty"`
	Metrics   *MetricsConfig  `json:"metrics,omitempty"`
	Systemd   SystemdConfig   `json:"systemd,omitempty"`

	// Widgets are loaded in declaration order.
	Widgets []WidgetConfig `json:"widgets"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DisplayConfig selects the display sink.
//
// Drivers:
//   - "png":      writes the frame buffer to Path on every refresh (default)
//   - "terminal": renders the frame buffer in the terminal (tcell)
//   - "memory":   keeps the frame buffer in memory only (dry runs)
type DisplayConfig struct {
	Driver string `json:"driver"`
	Width  int    `json:"width,omitempty"`  // default 800
	Height int    `json:"height,omitempty"` // default 600
	Path   string `json:"path,omitempty"`   // png driver, default "./display.png"
}

// LayoutConfig describes the widget grid and its decorations.
//
// Gridline entries use the form "row, col" / "row, c0-c1" (lines_hor) and
// "col, row" / "col, r0-r1" (lines_vert).
type LayoutConfig struct {
	Rows       int   `json:"rows,omitempty"`       // default 6
	Cols       int   `json:"cols,omitempty"`       // default 8
	Background *int  `json:"background,omitempty"` // default 255 (white)
	Borders    *bool `json:"borders,omitempty"`    // default true

	BorderWidth int  `json:"border_width,omitempty"` // default 2
	BorderColor *int `json:"border_color,omitempty"` // default 127

	Lines     bool     `json:"lines,omitempty"`
	LinesHor  []string `json:"lines_hor,omitempty"`
	LinesVert []string `json:"lines_vert,omitempty"`
}

// SchedulerConfig controls the two dispatch tiers.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - fast_workers: 2
//   - regular_workers: 3
//   - regular_timeout: "40s"
//   - populate_wait: "2s"
//   - full_refresh: "" (disabled); cron spec, e.g. "0 * * * *"
type SchedulerConfig struct {
	FastWorkers    int    `json:"fast_workers,omitempty"`
	RegularWorkers int    `json:"regular_workers,omitempty"`
	RegularTimeout string `json:"regular_timeout,omitempty"`
	PopulateWait   string `json:"populate_wait,omitempty"`
	FullRefresh    string `json:"full_refresh,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

type FontsConfig struct {
	// CacheSize bounds the rendered-text cache (entries). Default 256.
	CacheSize int `json:"cache_size,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9108"
	Path    string `json:"path,omitempty"` // default "/metrics"

	// Pprof mounts net/http/pprof under /debug/pprof/ on the same listener.
	Pprof bool `json:"pprof,omitempty"`
}

type SystemdConfig struct {
	// Notify sends READY/STOPPING/WATCHDOG notifications when running under systemd.
	Notify bool `json:"notify,omitempty"`
}

// WidgetConfig declares one widget instance.
//
// Kind selects the implementation from the widget registry; it defaults to Name.
// FastUpdate and RefreshInterval fall back to the kind's defaults when omitted.
type WidgetConfig struct {
	Name            string          `json:"name"`
	Kind            string          `json:"kind,omitempty"`
	Enabled         bool            `json:"enabled"`
	Row             Span            `json:"row,omitempty"`
	Col             Span            `json:"col,omitempty"`
	FastUpdate      *bool           `json:"fast_update,omitempty"`
	RefreshInterval int             `json:"refresh_interval,omitempty"` // minutes
	Invert          bool            `json:"invert,omitempty"`
	Options         json.RawMessage `json:"options,omitempty"`
}

// UnmarshalJSON disallows unknown fields so typos in a widget block are
// caught when the config is loaded instead of silently ignored.
func (w *WidgetConfig) UnmarshalJSON(b []byte) error {
	type plain WidgetConfig
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var p plain
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*w = WidgetConfig(p)
	return nil
}

// KindName returns the registry key for this widget.
func (w WidgetConfig) KindName() string {
	if w.Kind != "" {
		return w.Kind
	}
	return w.Name
}

// Span is a grid cell index or an inclusive range ("3" or "2-4").
// YAML authors tend to write single indices unquoted, so numbers are accepted too.
type Span string

func (s *Span) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Span(str)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Span(strconv.Itoa(n))
	return nil
}
