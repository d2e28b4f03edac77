package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"moon/internal/scheduler"
	logx "moon/pkg/logx"
)

const defaultQueueSize = 64

// Clock is the frame time source.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config controls pacing and error policy.
type Config struct {
	// TargetFPS <= 0 runs frames back to back.
	TargetFPS int
	// MaxDelta clamps long frames; 0 disables clamping.
	MaxDelta time.Duration
	// StopOnError makes Run return the first frame error instead of
	// logging it and continuing.
	StopOnError bool
}

// Stats are frame counters, readable from any goroutine.
type Stats struct {
	Frames    uint64
	Errors    uint64
	LastDelta time.Duration
}

// Option customizes a Loop.
type Option func(l *Loop)

// WithClock replaces the wall clock used to measure frame deltas.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithQueueSize sets the capacity of the Post queue.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.posts = make(chan func(*scheduler.Scheduler), n)
		}
	}
}

// Loop drives a Scheduler from a single goroutine, one Update per frame.
type Loop struct {
	sched *scheduler.Scheduler
	log   logx.Logger
	clock Clock
	posts chan func(*scheduler.Scheduler)

	mu    sync.Mutex
	cfg   Config
	dirty bool

	// loop goroutine only
	limiter *rate.Limiter
	last    time.Time

	frames    atomic.Uint64
	errs      atomic.Uint64
	lastDelta atomic.Int64
}

// New returns a loop over s. Run or Step must be called from one goroutine
// at a time.
func New(s *scheduler.Scheduler, cfg Config, log logx.Logger, opts ...Option) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Loop{
		sched: s,
		log:   log,
		clock: systemClock{},
		cfg:   cfg,
		dirty: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.posts == nil {
		l.posts = make(chan func(*scheduler.Scheduler), defaultQueueSize)
	}
	return l
}

// Apply swaps the loop config. It takes effect at the next frame and is safe
// to call from any goroutine.
func (l *Loop) Apply(cfg Config) {
	l.mu.Lock()
	l.cfg = cfg
	l.dirty = true
	l.mu.Unlock()
}

func (l *Loop) config() (Config, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	dirty := l.dirty
	l.dirty = false
	return l.cfg, dirty
}

// Post queues fn to run on the loop goroutine before the next frame's
// update. It never blocks and reports false when the queue is full.
func (l *Loop) Post(fn func(*scheduler.Scheduler)) bool {
	if fn == nil {
		return true
	}
	select {
	case l.posts <- fn:
		return true
	default:
		return false
	}
}

func (l *Loop) Stats() Stats {
	return Stats{
		Frames:    l.frames.Load(),
		Errors:    l.errs.Load(),
		LastDelta: time.Duration(l.lastDelta.Load()),
	}
}

// Run advances the scheduler until ctx is done. On exit every job is
// cleared. It returns nil when ctx ends and the frame error when
// StopOnError is set.
func (l *Loop) Run(ctx context.Context) error {
	start := time.Now()
	cfg := l.peek()
	l.log.Info("loop started", logx.Int("target_fps", cfg.TargetFPS), logx.Duration("max_delta", cfg.MaxDelta))
	defer func() {
		l.sched.Clear()
		st := l.Stats()
		l.log.Info("loop stopped",
			logx.Uint64("frames", st.Frames),
			logx.Uint64("errors", st.Errors),
			logx.Duration("took", time.Since(start)),
		)
	}()

	for {
		cur, err := l.pace(ctx)
		if err != nil {
			// With a burst of one, Wait only fails because of ctx
			// (done, or a deadline closer than the next frame).
			return nil
		}
		if err := l.Step(l.clock.Now()); err != nil && cur.StopOnError {
			return err
		}
	}
}

func (l *Loop) pace(ctx context.Context) (Config, error) {
	cfg, dirty := l.config()
	if dirty {
		if cfg.TargetFPS > 0 {
			if l.limiter == nil {
				l.limiter = rate.NewLimiter(rate.Limit(cfg.TargetFPS), 1)
			} else {
				l.limiter.SetLimit(rate.Limit(cfg.TargetFPS))
			}
		} else {
			l.limiter = nil
		}
	}
	if l.limiter == nil {
		return cfg, ctx.Err()
	}
	return cfg, l.limiter.Wait(ctx)
}

// Step runs one frame at the given time: queued posts first, then the
// scheduler update with the delta since the previous Step. The first frame
// has a zero delta.
func (l *Loop) Step(now time.Time) error {
	l.drain()

	cfg := l.peek()
	var delta time.Duration
	if !l.last.IsZero() {
		delta = max(now.Sub(l.last), 0)
	}
	l.last = now
	if cfg.MaxDelta > 0 && delta > cfg.MaxDelta {
		delta = cfg.MaxDelta
	}

	frame := l.frames.Add(1)
	l.lastDelta.Store(int64(delta))

	err := l.sched.Update(delta)
	if err == nil {
		return nil
	}
	l.errs.Add(1)
	fields := []logx.Field{logx.Uint64("frame", frame), logx.Duration("delta", delta), logx.Err(err)}
	var je *scheduler.JobError
	if errors.As(err, &je) {
		fields = append(fields, logx.Uint64("job_id", uint64(je.ID)), logx.String("job_kind", je.Kind.String()))
	}
	l.log.Error("frame failed", fields...)
	return err
}

func (l *Loop) peek() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.posts:
			fn(l.sched)
		default:
			return
		}
	}
}
