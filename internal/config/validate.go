package config

import (
	"errors"
	"fmt"
	"strings"

	"moon/internal/scheduler"
)

// Validate checks the loop knobs and that every job schedule parses.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if _, err := cfg.Loop.Settings(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Loop.OnError)) {
	case "", OnErrorContinue, OnErrorStop:
	default:
		return fmt.Errorf("loop.on_error: must be %q or %q", OnErrorContinue, OnErrorStop)
	}

	seen := make(map[string]struct{}, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return fmt.Errorf("jobs[%d]: name required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("jobs[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}
		if _, err := scheduler.ParseSchedule(j.Schedule); err != nil {
			return fmt.Errorf("jobs[%d] (%s): %w", i, name, err)
		}
	}
	return nil
}
