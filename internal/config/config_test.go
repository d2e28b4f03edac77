package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moon/internal/scheduler"
)

const sampleYAML = `
logging:
  level: debug
  console: true
loop:
  target_fps: 30
  max_delta: 100ms
  on_error: stop
systemd:
  enabled: false
jobs:
  - name: heartbeat
    schedule: "every:5s"
    message: alive
  - name: tick
    schedule: "*/10 * * * * *"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)

	m := NewConfigManager(p)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console)
	require.Len(t, cfg.Jobs, 2)
	assert.Equal(t, JobConfig{Name: "heartbeat", Schedule: "every:5s", Message: "alive"}, cfg.Jobs[0])

	st, err := cfg.Loop.Settings()
	require.NoError(t, err)
	assert.Equal(t, LoopSettings{TargetFPS: 30, MaxDelta: 100 * time.Millisecond, StopOnError: true}, st)
}

func TestLoadJSONStrict(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p := writeFile(t, dir, "ok.json", `{"logging":{"level":"info"},"loop":{},"systemd":{"enabled":true}}`)
	cfg, err := NewConfigManager(p).Load()
	require.NoError(t, err)
	assert.True(t, cfg.Systemd.Enabled)

	st, err := cfg.Loop.Settings()
	require.NoError(t, err)
	assert.Equal(t, DefaultTargetFPS, st.TargetFPS)
	assert.Equal(t, DefaultMaxDelta, st.MaxDelta)
	assert.False(t, st.StopOnError)

	p = writeFile(t, dir, "unknown.json", `{"telegram":{"token":"x"}}`)
	_, err = NewConfigManager(p).Load()
	assert.Error(t, err)

	p = writeFile(t, dir, "trailing.json", `{} {}`)
	_, err = NewConfigManager(p).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "empty", cfg: Config{}, ok: true},
		{name: "bad max_delta", cfg: Config{Loop: LoopConfig{MaxDelta: "soon"}}},
		{name: "negative max_delta", cfg: Config{Loop: LoopConfig{MaxDelta: "-1s"}}},
		{name: "bad on_error", cfg: Config{Loop: LoopConfig{OnError: "panic"}}},
		{name: "missing job name", cfg: Config{Jobs: []JobConfig{{Schedule: "1s"}}}},
		{name: "duplicate job", cfg: Config{Jobs: []JobConfig{{Name: "a", Schedule: "1s"}, {Name: "a", Schedule: "2s"}}}},
		{name: "bad schedule", cfg: Config{Jobs: []JobConfig{{Name: "a", Schedule: "whenever"}}}},
		{name: "good jobs", cfg: Config{Jobs: []JobConfig{{Name: "a", Schedule: "once:1s"}, {Name: "b", Schedule: "@every 2s"}}}, ok: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tt.cfg)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}

	err := Validate(&Config{Jobs: []JobConfig{{Name: "a", Schedule: "whenever"}}})
	assert.ErrorIs(t, err, scheduler.ErrInvalidSchedule)
	assert.Error(t, Validate(nil))
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", sampleYAML)

	m := NewConfigManager(p)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	published, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, published)

	writeFile(t, dir, "config.yaml", sampleYAML+"  - name: extra\n    schedule: once:1s\n")
	published, err = m.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, published)

	select {
	case cfg := <-ch:
		assert.Len(t, cfg.Jobs, 3)
		assert.Same(t, cfg, m.Get())
	default:
		t.Fatal("expected published config")
	}
}

func TestReloadRejectsInvalid(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", sampleYAML)

	m := NewConfigManager(p)
	before, err := m.Load()
	require.NoError(t, err)

	writeFile(t, dir, "config.yaml", "jobs:\n  - name: x\n    schedule: nope\n")
	published, err := m.Reload(context.Background())
	require.Error(t, err)
	assert.False(t, published)
	assert.Same(t, before, m.Get())

	errVeto := errors.New("veto")
	m.SetValidator(func(context.Context, *Config) error { return errVeto })
	writeFile(t, dir, "config.yaml", "loop:\n  target_fps: 10\n")
	_, err = m.Reload(context.Background())
	assert.ErrorIs(t, err, errVeto)
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("unused.yaml")
	ch := m.Subscribe(1)

	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	assert.Same(t, second, <-ch)

	m.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Loop:    LoopConfig{TargetFPS: 30},
		Jobs:    []JobConfig{{Name: "a", Schedule: "1s"}},
	}

	changed, fields := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"logging", "loop", "jobs"}, changed)
	assert.NotEmpty(t, fields)

	changed, _ = SummarizeConfigChange(newCfg, newCfg)
	assert.Empty(t, changed)
}

func TestWatchPublishesRewrittenFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", sampleYAML)

	m := NewConfigManager(p)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	updated := strings.Replace(sampleYAML, "target_fps: 30", "target_fps: 10", 1)
	var got *Config
	require.Eventually(t, func() bool {
		if err := os.WriteFile(p, []byte(updated), 0o644); err != nil {
			return false
		}
		select {
		case got = <-ch:
			return true
		default:
			return false
		}
	}, 10*time.Second, 500*time.Millisecond)

	assert.Equal(t, 10, got.Loop.TargetFPS)
	assert.Same(t, got, m.Get())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
