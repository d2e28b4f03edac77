package scheduler

import (
	"math"
	"time"
)

// timing is the duration/elapsed accumulator shared by Timer, Interval and
// TimedProcess.
type timing struct {
	duration time.Duration
	elapsed  time.Duration
}

func (t *timing) add(delta time.Duration) { t.elapsed = addSat(t.elapsed, delta) }

func (t *timing) due() bool { return t.duration > 0 && t.elapsed >= t.duration }

// consume takes one duration off the accumulator, carrying any overshoot
// into the next cycle.
func (t *timing) consume() { t.elapsed -= t.duration }

// expire pins the accumulator at the end of its cycle; the remainder of a
// one-shot job is discarded.
func (t *timing) expire() { t.elapsed = t.duration }

func (t *timing) remaining() time.Duration {
	if t.elapsed >= t.duration {
		return 0
	}
	return t.duration - t.elapsed
}

func (t *timing) progress() float64 {
	if t.duration <= 0 {
		return 0
	}
	p := float64(t.elapsed) / float64(t.duration)
	if p > 1 {
		return 1
	}
	return p
}

// addSat adds a non-negative delta to d, saturating at the largest
// Duration instead of wrapping negative.
func addSat(d, delta time.Duration) time.Duration {
	if delta > math.MaxInt64-d {
		return math.MaxInt64
	}
	return d + delta
}
