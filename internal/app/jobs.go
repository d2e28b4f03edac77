package app

import (
	"fmt"
	"strings"

	"moon/internal/config"
	"moon/internal/scheduler"
	logx "moon/pkg/logx"
)

// syncJobs replaces the configured jobs on s. Jobs registered by other code
// are left alone.
func (a *App) syncJobs(s *scheduler.Scheduler, jobs []config.JobConfig) error {
	for name, id := range a.jobs {
		s.Cancel(id)
		delete(a.jobs, name)
	}
	for _, jc := range jobs {
		name := strings.TrimSpace(jc.Name)
		id, err := s.AddSchedule(jc.Schedule, a.jobHook(s, name, jc.Message), scheduler.WithName(name))
		if err != nil {
			return fmt.Errorf("job %s: %w", name, err)
		}
		a.jobs[name] = id
	}
	return nil
}

func (a *App) jobHook(s *scheduler.Scheduler, name, msg string) scheduler.Hook {
	log := a.log.With(logx.String("job", name))
	if strings.TrimSpace(msg) == "" {
		msg = "job fired"
	}
	return func() error {
		log.Info(msg, logx.Time("at", s.Now()), logx.Duration("uptime", s.Uptime()), logx.Uint64("tick", s.Ticks()))
		return nil
	}
}
