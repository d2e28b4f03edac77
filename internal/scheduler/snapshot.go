package scheduler

import "time"

type JobInfo struct {
	ID       ID
	Name     string
	Kind     Kind
	State    State
	Paused   bool
	Duration time.Duration
	Elapsed  time.Duration
}

type Snapshot struct {
	Paused bool
	Uptime time.Duration
	Ticks  uint64
	Jobs   []JobInfo
}

// Snapshot returns a copy of the scheduler state in execution order. Jobs
// registered during the current pass are listed last.
func (s *Scheduler) Snapshot() Snapshot {
	items := make([]JobInfo, 0, len(s.jobs)+len(s.pending))
	add := func(j *Job) {
		items = append(items, JobInfo{
			ID:       j.id,
			Name:     j.name,
			Kind:     j.kind,
			State:    j.state,
			Paused:   j.paused,
			Duration: j.timing.duration,
			Elapsed:  j.timing.elapsed,
		})
	}
	for _, j := range s.jobs {
		add(j)
	}
	for _, j := range s.pending {
		add(j)
	}
	return Snapshot{
		Paused: s.paused,
		Uptime: s.uptime,
		Ticks:  s.ticks,
		Jobs:   items,
	}
}
