package config

import (
	"strings"
	"time"

	logx "moon/pkg/logx"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`
	Loop    LoopConfig    `json:"loop"`
	Systemd SystemdConfig `json:"systemd"`

	// Jobs are registered on the scheduler at startup and re-registered on
	// every accepted reload.
	Jobs []JobConfig `json:"jobs,omitempty"`
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

// LoopConfig controls the host frame loop.
//
// Defaults (when fields are omitted/zero):
//   - target_fps: 60 (use a negative value to run unpaced)
//   - max_delta: "250ms"
//   - on_error: "continue"
type LoopConfig struct {
	TargetFPS int `json:"target_fps,omitempty"`

	// MaxDelta is a Go duration string. Frames longer than this (debugger
	// pauses, suspended laptops) are clamped so timers don't burst.
	MaxDelta string `json:"max_delta,omitempty"`

	// OnError is "continue" or "stop".
	OnError string `json:"on_error,omitempty"`
}

type SystemdConfig struct {
	Enabled bool `json:"enabled"`
}

// JobConfig is a scheduled log line. Schedule uses the scheduler spec syntax
// ("every:5s", "once:2s", "for:3s", cron).
type JobConfig struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Message  string `json:"message,omitempty"`
}

const (
	DefaultTargetFPS = 60
	DefaultMaxDelta  = 250 * time.Millisecond

	OnErrorContinue = "continue"
	OnErrorStop     = "stop"
)

// Logx maps the logging section onto logx.Config.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

// Settings are the parsed loop knobs with defaults applied.
type LoopSettings struct {
	TargetFPS   int
	MaxDelta    time.Duration
	StopOnError bool
}

func (c LoopConfig) Settings() (LoopSettings, error) {
	md, err := ParseDurationOrDefault("loop.max_delta", c.MaxDelta, DefaultMaxDelta)
	if err != nil {
		return LoopSettings{}, err
	}
	fps := c.TargetFPS
	if fps == 0 {
		fps = DefaultTargetFPS
	}
	return LoopSettings{
		TargetFPS:   fps,
		MaxDelta:    md,
		StopOnError: strings.EqualFold(strings.TrimSpace(c.OnError), OnErrorStop),
	}, nil
}
