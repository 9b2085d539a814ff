package config

import (
	"reflect"

	logx "infoscreen/pkg/logx"
)

// SummarizeChange returns the top-level sections that differ between two
// configs, plus a few structured attrs describing the new values.
//
// Only the logging section is applied live; every other section needs a restart.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 8)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Display, newCfg.Display) {
		changed = append(changed, "display")
		attrs = append(attrs, logx.String("display.driver", newCfg.Display.Driver))
	}
	if !reflect.DeepEqual(oldCfg.Layout, newCfg.Layout) {
		changed = append(changed, "layout")
	}
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.full_refresh", newCfg.Scheduler.FullRefresh))
	}
	if !reflect.DeepEqual(oldCfg.Fonts, newCfg.Fonts) {
		changed = append(changed, "fonts")
	}
	if !reflect.DeepEqual(oldCfg.Metrics, newCfg.Metrics) {
		changed = append(changed, "metrics")
	}
	if !reflect.DeepEqual(oldCfg.Systemd, newCfg.Systemd) {
		changed = append(changed, "systemd")
	}
	if !reflect.DeepEqual(oldCfg.Widgets, newCfg.Widgets) {
		changed = append(changed, "widgets")
		attrs = append(attrs, logx.Int("widgets.count", len(newCfg.Widgets)))
	}
	return changed, attrs
}

// RequiresRestart reports whether any changed section cannot be applied live.
func RequiresRestart(changed []string) bool {
	for _, c := range changed {
		if c != "logging" {
			return true
		}
	}
	return false
}
