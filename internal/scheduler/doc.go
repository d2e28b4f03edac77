// Package scheduler is the frame-driven job scheduler of the application loop.
//
// A Scheduler owns an ordered set of jobs and advances all of them once per
// tick with the delta supplied by the host loop:
//   - Process: callback every frame until killed
//   - Timer: hook once after a duration, then dies
//   - Interval: hook every duration, catching up when a frame overshoots
//   - TimedProcess: callback every frame for a duration, then a done hook
//
// The scheduler never samples a clock and holds no locks. It must only be
// used from the goroutine that calls Update.
//
// Killed jobs are removed in the sweep that follows each update pass, never
// during the pass itself. Jobs registered from inside a callback become
// visible on the next tick.
package scheduler
