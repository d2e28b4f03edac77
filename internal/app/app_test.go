package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moon/internal/config"
	"moon/internal/scheduler"
)

const testConfig = `
logging:
  level: error
loop:
  target_fps: 500
  max_delta: 50ms
jobs:
  - name: heartbeat
    schedule: "every:10ms"
  - name: greet
    schedule: "once:1h"
    message: hello
`

func newTestApp(t *testing.T, content string) *App {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	a, err := NewApp(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func jobNames(s *scheduler.Scheduler) []string {
	var names []string
	for _, j := range s.Snapshot().Jobs {
		if j.State == scheduler.StateAlive {
			names = append(names, j.Name)
		}
	}
	return names
}

func TestNewAppRegistersConfiguredJobs(t *testing.T) {
	a := newTestApp(t, testConfig)
	assert.Equal(t, []string{"heartbeat", "greet"}, jobNames(a.Scheduler()))
}

func TestNewAppRejectsBadSchedule(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("jobs:\n  - name: x\n    schedule: later\n"), 0o644))
	_, err := NewApp(p)
	assert.ErrorIs(t, err, scheduler.ErrInvalidSchedule)
}

func TestSyncJobsReplacesConfiguredOnly(t *testing.T) {
	a := newTestApp(t, testConfig)
	s := a.Scheduler()
	_, err := s.AddProcess(func(*scheduler.Job, time.Duration) error { return nil }, scheduler.WithName("camera"))
	require.NoError(t, err)

	require.NoError(t, a.syncJobs(s, []config.JobConfig{{Name: "blink", Schedule: "every:1s"}}))
	require.NoError(t, s.Update(0))
	assert.Equal(t, []string{"camera", "blink"}, jobNames(s))
}

func TestRunStopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, a.Run(ctx))
	assert.Greater(t, a.Loop().Stats().Frames, uint64(1))
	assert.Zero(t, a.Scheduler().Len())
}

func maxDeltaAfterStall(t *testing.T, a *App, at time.Time) time.Duration {
	t.Helper()
	require.NoError(t, a.Loop().Step(at))
	require.NoError(t, a.Loop().Step(at.Add(time.Hour)))
	return a.Loop().Stats().LastDelta
}

func TestApplyReloadsSections(t *testing.T) {
	a := newTestApp(t, testConfig)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 50*time.Millisecond, maxDeltaAfterStall(t, a, t0))

	logPath := filepath.Join(t.TempDir(), "moond.log")
	next := *a.cfg
	next.Logging = config.LoggingConfig{Level: "info", File: config.LoggingFile{Enabled: true, Path: logPath}}
	next.Loop.MaxDelta = "200ms"
	next.Jobs = []config.JobConfig{
		{Name: "blink", Schedule: "every:1s"},
		{Name: "nightly", Schedule: "0 3 * * *"},
	}

	a.apply(a.cfg, &next)

	// Job changes are posted to the loop and land on its next frame.
	assert.Equal(t, []string{"heartbeat", "greet"}, jobNames(a.Scheduler()))
	assert.Equal(t, 200*time.Millisecond, maxDeltaAfterStall(t, a, t0.Add(2*time.Hour)))
	assert.Equal(t, []string{"blink", "nightly"}, jobNames(a.Scheduler()))

	a.log.Info("after reload")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after reload")
}

func TestApplySkipsInvalidLoopSettings(t *testing.T) {
	a := newTestApp(t, testConfig)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	next := *a.cfg
	next.Loop.MaxDelta = "soon"
	a.apply(a.cfg, &next)

	assert.Equal(t, 50*time.Millisecond, maxDeltaAfterStall(t, a, t0))
}

func TestWatchUpdatesAppliesUntilClosed(t *testing.T) {
	a := newTestApp(t, testConfig)
	next := *a.cfg
	next.Jobs = []config.JobConfig{{Name: "only", Schedule: "once:1s"}}

	updates := make(chan *config.Config, 1)
	updates <- &next
	close(updates)
	a.watchUpdates(context.Background(), updates)

	require.NoError(t, a.Loop().Step(time.Now()))
	assert.Equal(t, []string{"only"}, jobNames(a.Scheduler()))
}

func TestRunPicksUpConfigFileChanges(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(testConfig), 0o644))
	a, err := NewApp(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	updated := strings.Replace(testConfig, "name: greet", "name: wave", 1)
	seen := make(chan struct{})
	require.Eventually(t, func() bool {
		if err := os.WriteFile(p, []byte(updated), 0o644); err != nil {
			return false
		}
		a.Loop().Post(func(s *scheduler.Scheduler) {
			for _, name := range jobNames(s) {
				if name == "wave" {
					select {
					case <-seen:
					default:
						close(seen)
					}
				}
			}
		})
		select {
		case <-seen:
			return true
		default:
			return false
		}
	}, 10*time.Second, 500*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
