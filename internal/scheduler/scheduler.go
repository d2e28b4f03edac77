package scheduler

import (
	"time"

	logx "moon/pkg/logx"
)

// Option customizes a Scheduler.
type Option func(s *Scheduler)

// WithLogger sets the scheduler logger. Registration and cancellation are
// logged at debug, sweeps at trace.
func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithEpoch sets the wall-clock origin of the virtual clock used by cron
// schedules (see Now).
func WithEpoch(t time.Time) Option {
	return func(s *Scheduler) { s.epoch = t }
}

// Scheduler owns an ordered set of jobs and advances them once per Update.
//
// Insertion order is execution order. A Scheduler is not safe for concurrent
// use.
type Scheduler struct {
	log logx.Logger

	jobs    []*Job
	index   map[ID]*Job
	pending []*Job // registered during a pass; merged at the sweep
	nextID  ID

	updating bool
	paused   bool

	epoch  time.Time
	uptime time.Duration
	ticks  uint64
}

// New returns an empty scheduler whose virtual clock starts at the epoch
// (time.Now unless WithEpoch is given).
func New(opts ...Option) *Scheduler {
	s := &Scheduler{index: map[ID]*Job{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.epoch.IsZero() {
		s.epoch = time.Now()
	}
	return s
}

// AddProcess registers a job that runs cb on every frame until killed.
func (s *Scheduler) AddProcess(cb Callback, opts ...JobOption) (ID, error) {
	return s.add(&Job{kind: KindProcess, callback: cb}, opts)
}

// AddTimer registers a job that calls onTimeout once after d and then dies.
func (s *Scheduler) AddTimer(d time.Duration, onTimeout Hook, opts ...JobOption) (ID, error) {
	return s.add(&Job{kind: KindTimer, timing: timing{duration: d}, hook: onTimeout}, opts)
}

// AddInterval registers a job that calls onTimeout every d until killed.
func (s *Scheduler) AddInterval(d time.Duration, onTimeout Hook, opts ...JobOption) (ID, error) {
	return s.add(&Job{kind: KindInterval, timing: timing{duration: d}, hook: onTimeout}, opts)
}

// AddTimedProcess registers a job that runs cb on every frame and calls
// onDone once when d has elapsed, then dies.
func (s *Scheduler) AddTimedProcess(d time.Duration, cb Callback, onDone Hook, opts ...JobOption) (ID, error) {
	return s.add(&Job{kind: KindTimedProcess, timing: timing{duration: d}, callback: cb, hook: onDone}, opts)
}

func (s *Scheduler) add(j *Job, opts []JobOption) (ID, error) {
	for _, opt := range opts {
		if opt != nil {
			opt(j)
		}
	}
	if j.timed() && j.timing.duration <= 0 {
		return NoID, ErrInvalidDuration
	}
	if (j.kind == KindProcess || j.kind == KindTimedProcess) && j.callback == nil {
		return NoID, ErrNilCallback
	}
	return s.register(j)
}

func (s *Scheduler) register(j *Job) (ID, error) {
	s.nextID++
	id := s.nextID
	if _, ok := s.index[id]; ok {
		return NoID, ErrDuplicateID
	}
	j.id = id
	s.index[id] = j
	if s.updating {
		s.pending = append(s.pending, j)
	} else {
		s.jobs = append(s.jobs, j)
	}

	if s.log.Enabled(logx.LevelDebug) {
		fields := []logx.Field{logx.Uint64("id", uint64(id)), logx.String("kind", j.kind.String())}
		if j.name != "" {
			fields = append(fields, logx.String("name", j.name))
		}
		if j.timed() {
			fields = append(fields, logx.Duration("duration", j.timing.duration))
		}
		s.log.Debug("job registered", fields...)
	}
	return id, nil
}

// Cancel kills the job with the given id. Unknown or already dead ids are
// ignored.
func (s *Scheduler) Cancel(id ID) {
	j, ok := s.index[id]
	if !ok || !j.Alive() {
		return
	}
	j.Kill()
	s.log.Debug("job cancelled", logx.Uint64("id", uint64(id)), logx.String("kind", j.kind.String()))
}

// Clear kills every job. Outside an update pass the jobs are dropped at
// once; inside a pass they are dropped by the sweep that ends it.
func (s *Scheduler) Clear() {
	for _, j := range s.jobs {
		j.Kill()
	}
	for _, j := range s.pending {
		j.Kill()
	}
	if s.updating {
		return
	}
	n := len(s.jobs)
	s.jobs = nil
	s.pending = nil
	s.index = map[ID]*Job{}
	if n > 0 {
		s.log.Debug("scheduler cleared", logx.Int("jobs", n))
	}
}

// Update advances every live job by delta, in registration order, then
// sweeps killed jobs.
//
// A failing callback or hook stops the pass and is returned as a *JobError.
// The sweep still runs. Panics are not recovered.
func (s *Scheduler) Update(delta time.Duration) error {
	if s.updating {
		return ErrReentrantUpdate
	}
	if s.paused {
		return nil
	}
	if delta < 0 {
		delta = 0
	}

	s.ticks++
	s.uptime = addSat(s.uptime, delta)

	s.updating = true
	defer func() {
		s.updating = false
		s.sweep()
	}()

	// Registrations during the pass land in s.pending, so this slice is
	// stable for the whole iteration.
	for _, j := range s.jobs {
		if !j.Alive() || j.paused {
			continue
		}
		if err := j.updateFrame(delta); err != nil {
			return &JobError{ID: j.id, Kind: j.kind, Name: j.name, Err: err}
		}
	}
	return nil
}

func (s *Scheduler) sweep() {
	reaped := 0
	live := s.jobs[:0]
	for _, j := range s.jobs {
		if j.Alive() {
			live = append(live, j)
			continue
		}
		delete(s.index, j.id)
		reaped++
	}
	clear(s.jobs[len(live):])
	s.jobs = live

	for _, j := range s.pending {
		if j.Alive() {
			s.jobs = append(s.jobs, j)
			continue
		}
		delete(s.index, j.id)
		reaped++
	}
	clear(s.pending)
	s.pending = s.pending[:0]

	if reaped > 0 {
		s.log.Trace("jobs reaped", logx.Int("reaped", reaped), logx.Int("live", len(s.jobs)))
	}
}

// Get returns the job with the given id if it is still registered.
func (s *Scheduler) Get(id ID) (*Job, bool) {
	j, ok := s.index[id]
	return j, ok
}

// Len is the number of registered jobs, including killed jobs that have not
// been swept yet.
func (s *Scheduler) Len() int { return len(s.index) }

func (s *Scheduler) Pause()       { s.paused = true }
func (s *Scheduler) Resume()      { s.paused = false }
func (s *Scheduler) Paused() bool { return s.paused }

// Uptime is the sum of all deltas processed by Update.
func (s *Scheduler) Uptime() time.Duration { return s.uptime }

// Ticks is the number of Update calls that advanced the scheduler.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// Now is the virtual clock: epoch plus uptime. Uptime saturates, so Now
// never runs backwards.
func (s *Scheduler) Now() time.Time { return s.epoch.Add(s.uptime) }
