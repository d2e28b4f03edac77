package sdnotify

import (
	"errors"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moon/internal/scheduler"
	logx "moon/pkg/logx"
)

func captureNotify(t *testing.T, err error) *[]string {
	t.Helper()
	var sent []string
	prev := notify
	notify = func(state string) (bool, error) {
		sent = append(sent, state)
		return err == nil, err
	}
	t.Cleanup(func() { notify = prev })
	return &sent
}

func TestReadyAndStopping(t *testing.T) {
	sent := captureNotify(t, nil)

	Ready(logx.Nop())
	Stopping(logx.Nop())
	assert.Equal(t, []string{daemon.SdNotifyReady, daemon.SdNotifyStopping}, *sent)
}

func TestWatchdogKeepaliveIsAnInterval(t *testing.T) {
	sent := captureNotify(t, nil)
	s := scheduler.New()

	id, ok, err := installWatchdog(s, logx.Nop(), 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	j, found := s.Get(id)
	require.True(t, found)
	assert.Equal(t, scheduler.KindInterval, j.Kind())
	assert.Equal(t, 5*time.Second, j.Duration())
	assert.Equal(t, "systemd-watchdog", j.Name())

	require.NoError(t, s.Update(4*time.Second))
	assert.Empty(t, *sent)
	require.NoError(t, s.Update(7*time.Second))
	assert.Equal(t, []string{daemon.SdNotifyWatchdog, daemon.SdNotifyWatchdog}, *sent)
}

func TestWatchdogFailuresDoNotFailFrames(t *testing.T) {
	captureNotify(t, errors.New("socket gone"))
	s := scheduler.New()

	_, ok, err := installWatchdog(s, logx.Nop(), 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, s.Update(time.Second))
}

func TestWatchdogDisabled(t *testing.T) {
	s := scheduler.New()
	id, ok, err := installWatchdog(s, logx.Nop(), 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, scheduler.NoID, id)
	assert.Zero(t, s.Len())
}
