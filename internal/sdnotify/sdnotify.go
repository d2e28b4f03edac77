// Package sdnotify reports readiness and liveness to systemd.
//
// The watchdog keepalive is an Interval on the frame scheduler, so a stalled
// frame loop stops pinging and systemd restarts the unit.
package sdnotify

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"moon/internal/scheduler"
	logx "moon/pkg/logx"
)

// Notifier sends sd_notify messages. It is swappable for tests.
type Notifier func(state string) (bool, error)

var notify Notifier = func(state string) (bool, error) { return daemon.SdNotify(false, state) }

// Ready sends READY=1. Running outside systemd is not an error.
func Ready(log logx.Logger) { send(log, daemon.SdNotifyReady) }

// Stopping sends STOPPING=1.
func Stopping(log logx.Logger) { send(log, daemon.SdNotifyStopping) }

func send(log logx.Logger, state string) {
	sent, err := notify(state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// InstallWatchdog registers a keepalive Interval at half the watchdog period
// when the unit has WatchdogSec set. It reports false (and no id) when the
// watchdog is not enabled for this process.
func InstallWatchdog(s *scheduler.Scheduler, log logx.Logger) (scheduler.ID, bool, error) {
	period, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return scheduler.NoID, false, err
	}
	return installWatchdog(s, log, period)
}

func installWatchdog(s *scheduler.Scheduler, log logx.Logger, period time.Duration) (scheduler.ID, bool, error) {
	if period <= 0 {
		return scheduler.NoID, false, nil
	}
	every := period / 2
	id, err := s.AddInterval(every, func() error {
		if _, err := notify(daemon.SdNotifyWatchdog); err != nil {
			log.Warn("watchdog keepalive failed", logx.Err(err))
		}
		return nil
	}, scheduler.WithName("systemd-watchdog"))
	if err != nil {
		return scheduler.NoID, false, err
	}
	log.Info("systemd watchdog enabled", logx.Duration("period", period), logx.Duration("keepalive", every))
	return id, true, nil
}
