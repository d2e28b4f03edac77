package scheduler

import "time"

// ID identifies a job within its owning Scheduler. IDs are allocated from 1
// upwards and never reused; NoID is never assigned.
type ID uint64

const NoID ID = 0

// Kind tags the job variant.
type Kind uint8

const (
	KindProcess Kind = iota + 1
	KindTimer
	KindInterval
	KindTimedProcess
)

func (k Kind) String() string {
	switch k {
	case KindProcess:
		return "process"
	case KindTimer:
		return "timer"
	case KindInterval:
		return "interval"
	case KindTimedProcess:
		return "timed_process"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a job. StateKilled is terminal.
type State uint8

const (
	StateAlive State = iota
	StateKilled
)

func (s State) String() string {
	if s == StateKilled {
		return "killed"
	}
	return "alive"
}

// Callback is the per-frame (or per-fire) function of a job. The job is
// passed so the callback can read its Args or Kill it.
type Callback func(job *Job, delta time.Duration) error

// Hook is a timeout or completion hook. A nil Hook is a no-op.
type Hook func() error

// JobOption customizes a job at registration.
type JobOption func(j *Job)

// WithArgs attaches values handed to the callback through Job.Args.
func WithArgs(args ...any) JobOption {
	return func(j *Job) { j.args = args }
}

// WithName labels the job in logs, snapshots and errors.
func WithName(name string) JobOption {
	return func(j *Job) { j.name = name }
}

// WithCallback sets the job callback. On a Timer or Interval it runs on
// every fire, right before the timeout hook.
func WithCallback(cb Callback) JobOption {
	return func(j *Job) { j.callback = cb }
}

// Job is one schedulable unit. Jobs are created by the Scheduler factories
// and owned by that Scheduler.
type Job struct {
	id     ID
	kind   Kind
	state  State
	name   string
	paused bool

	callback Callback
	args     []any

	// Timer, Interval, TimedProcess only. hook is on_timeout for Timer and
	// Interval and on_done for TimedProcess.
	timing timing
	hook   Hook
}

func (j *Job) ID() ID        { return j.id }
func (j *Job) Kind() Kind    { return j.kind }
func (j *Job) Name() string  { return j.name }
func (j *Job) State() State  { return j.state }
func (j *Job) Args() []any   { return j.args }
func (j *Job) Alive() bool   { return j.state == StateAlive }
func (j *Job) Paused() bool  { return j.paused }
func (j *Job) Pause()        { j.paused = true }
func (j *Job) Resume()       { j.paused = false }
func (j *Job) timed() bool   { return j.kind != KindProcess }
func (j *Job) repeats() bool { return j.kind == KindInterval }

// Kill marks the job dead. It is idempotent and takes effect immediately for
// execution purposes; removal from the scheduler happens at the next sweep.
func (j *Job) Kill() { j.state = StateKilled }

// Duration is the configured duration of a timed job (0 for a Process).
func (j *Job) Duration() time.Duration { return j.timing.duration }

// Elapsed is the time accumulated in the current cycle.
func (j *Job) Elapsed() time.Duration { return j.timing.elapsed }

// Remaining is the time left until the next timeout.
func (j *Job) Remaining() time.Duration {
	if !j.timed() {
		return 0
	}
	return j.timing.remaining()
}

// Progress reports elapsed/duration clamped to [0, 1].
func (j *Job) Progress() float64 {
	if !j.timed() {
		return 0
	}
	return j.timing.progress()
}

// Restart rewinds the current cycle of a timed job.
func (j *Job) Restart() {
	if j.timed() {
		j.timing.elapsed = 0
	}
}

// Finish makes the timeout fire on the next frame the job is advanced.
func (j *Job) Finish() {
	if j.timed() && j.Alive() {
		j.timing.expire()
	}
}

func (j *Job) trigger(delta time.Duration) error {
	if j.callback == nil {
		return nil
	}
	return j.callback(j, delta)
}

func (j *Job) updateFrame(delta time.Duration) error {
	if !j.Alive() {
		return nil
	}
	switch j.kind {
	case KindProcess:
		return j.trigger(delta)
	case KindTimer, KindInterval:
		return j.advance(delta, func() error {
			if err := j.trigger(delta); err != nil {
				return err
			}
			return j.runHook()
		})
	case KindTimedProcess:
		if err := j.trigger(delta); err != nil {
			return err
		}
		return j.advance(delta, j.runHook)
	}
	return nil
}

// advance runs the timeout bookkeeping. One-shot jobs die on their first
// timeout; an Interval keeps firing while the accumulator covers whole
// durations, so one long frame can fire it several times.
func (j *Job) advance(delta time.Duration, fire func() error) error {
	if !j.Alive() {
		return nil
	}
	j.timing.add(delta)
	for j.Alive() && j.timing.due() {
		j.timing.consume()
		err := fire()
		if !j.repeats() {
			j.timing.expire()
			j.Kill()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) runHook() error {
	if j.hook == nil {
		return nil
	}
	return j.hook()
}
