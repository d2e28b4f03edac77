package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDuration = errors.New("scheduler: duration must be > 0")
	ErrNilCallback     = errors.New("scheduler: callback required")
	ErrDuplicateID     = errors.New("scheduler: duplicate job id")
	ErrInvalidSchedule = errors.New("scheduler: invalid schedule")
	ErrReentrantUpdate = errors.New("scheduler: update called from inside a job")
)

// JobError is returned by Update when a callback or hook fails.
//
// The pass stops at the failing job; jobs already advanced in that pass keep
// their new state and the remaining jobs run on the next tick.
type JobError struct {
	ID   ID
	Kind Kind
	Name string
	Err  error
}

func (e *JobError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("scheduler: %s job %d (%s): %v", e.Kind, e.ID, e.Name, e.Err)
	}
	return fmt.Sprintf("scheduler: %s job %d: %v", e.Kind, e.ID, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }
