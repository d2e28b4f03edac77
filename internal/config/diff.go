package config

import (
	"reflect"

	logx "moon/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and compact
// structured fields for logging them.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	fields := make([]logx.Field, 0, 8)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Loop != newCfg.Loop {
		changed = append(changed, "loop")
		fields = append(fields,
			logx.Int("loop.target_fps", newCfg.Loop.TargetFPS),
			logx.String("loop.max_delta", newCfg.Loop.MaxDelta),
			logx.String("loop.on_error", newCfg.Loop.OnError),
		)
	}
	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
		fields = append(fields, logx.Bool("systemd.enabled", newCfg.Systemd.Enabled))
	}
	if !reflect.DeepEqual(oldCfg.Jobs, newCfg.Jobs) {
		changed = append(changed, "jobs")
		fields = append(fields, logx.Int("jobs.count", len(newCfg.Jobs)))
	}
	return changed, fields
}
