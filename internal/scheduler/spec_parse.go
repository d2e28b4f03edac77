package scheduler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SpecKind describes the normalized kind of a schedule string.
type SpecKind int

const (
	SpecInterval SpecKind = iota
	SpecTimer
	SpecTimedProcess
	SpecCron
)

func (k SpecKind) String() string {
	switch k {
	case SpecInterval:
		return "interval"
	case SpecTimer:
		return "timer"
	case SpecTimedProcess:
		return "timed_process"
	case SpecCron:
		return "cron"
	default:
		return "unknown"
	}
}

// ParsedSpec represents a parsed schedule string.
//
// Supported forms:
//   - Interval: "250ms", "every:1s", "interval:2m", "00:50" (HH:MM)
//   - Timer: "once:2s", "in:2s"
//   - TimedProcess: "for:3s"
//   - Cron (seconds optional): "*/5 * * * * *", "@hourly", "@every 10s", "cron:0 * * * *"
type ParsedSpec struct {
	Kind   SpecKind
	Every  time.Duration
	Cron   string
	Source string // "duration" | "hhmm" | "cron"

	schedule cron.Schedule
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a schedule string. Errors wrap ErrInvalidSchedule.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("%w: schedule required", ErrInvalidSchedule)
	}

	low := strings.ToLower(s)
	for _, p := range []struct {
		prefix string
		kind   SpecKind
	}{
		{"every:", SpecInterval},
		{"interval:", SpecInterval},
		{"once:", SpecTimer},
		{"in:", SpecTimer},
		{"for:", SpecTimedProcess},
	} {
		if !strings.HasPrefix(low, p.prefix) {
			continue
		}
		d, src, err := parseInterval(s[len(p.prefix):])
		if err != nil {
			return ParsedSpec{}, err
		}
		return ParsedSpec{Kind: p.kind, Every: d, Source: src}, nil
	}
	if strings.HasPrefix(low, "cron:") {
		return parseCron(s[len("cron:"):])
	}

	// Heuristics: whitespace or a leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}

	d, src, err := parseInterval(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf(
			"%w: %q (use a duration like '500ms', HH:MM like '02:30', a prefix like 'once:2s', or cron like '*/5 * * * * *')",
			ErrInvalidSchedule, raw,
		)
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: src}, nil
}

func parseCron(expr string) (ParsedSpec, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ParsedSpec{}, fmt.Errorf("%w: cron expression required", ErrInvalidSchedule)
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("%w: cron %q: %v", ErrInvalidSchedule, expr, err)
	}
	return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron", schedule: sched}, nil
}

func parseInterval(v string) (time.Duration, string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, "", fmt.Errorf("%w: interval required", ErrInvalidSchedule)
	}
	if reHHMM.MatchString(v) {
		return parseHHMMDuration(v)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, "", fmt.Errorf("%w: invalid interval %q (use HH:MM or Go duration like '500ms'/'2m')", ErrInvalidSchedule, v)
	}
	if d <= 0 {
		return 0, "", fmt.Errorf("%w: interval must be > 0", ErrInvalidSchedule)
	}
	return d, "duration", nil
}

func parseHHMMDuration(v string) (time.Duration, string, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, "", fmt.Errorf("%w: invalid HH:MM %q", ErrInvalidSchedule, v)
	}
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, "", fmt.Errorf("%w: invalid minutes in %q", ErrInvalidSchedule, v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, "", fmt.Errorf("%w: interval must be > 0", ErrInvalidSchedule)
	}
	return d, "hhmm", nil
}

// AddSchedule parses spec and registers the matching job with hook as its
// timeout (or done) hook.
//
// Cron schedules run on the scheduler's virtual clock (Now), so they follow
// the deltas fed to Update rather than the wall clock. They are Process jobs
// that fire at most once per frame.
func (s *Scheduler) AddSchedule(spec string, hook Hook, opts ...JobOption) (ID, error) {
	ps, err := ParseSchedule(spec)
	if err != nil {
		return NoID, err
	}
	switch ps.Kind {
	case SpecInterval:
		return s.AddInterval(ps.Every, hook, opts...)
	case SpecTimer:
		return s.AddTimer(ps.Every, hook, opts...)
	case SpecTimedProcess:
		return s.add(&Job{kind: KindTimedProcess, timing: timing{duration: ps.Every}, callback: noopCallback, hook: hook}, opts)
	case SpecCron:
		return s.addCron(ps.schedule, hook, opts)
	default:
		return NoID, fmt.Errorf("%w: unsupported schedule kind %s", ErrInvalidSchedule, ps.Kind)
	}
}

func (s *Scheduler) addCron(sched cron.Schedule, hook Hook, opts []JobOption) (ID, error) {
	next := sched.Next(s.Now())
	fire := func(j *Job, _ time.Duration) error {
		if next.IsZero() {
			// no future activation
			j.Kill()
			return nil
		}
		now := s.Now()
		if now.Before(next) {
			return nil
		}
		next = sched.Next(now)
		if hook == nil {
			return nil
		}
		return hook()
	}
	return s.add(&Job{kind: KindProcess}, append(opts[:len(opts):len(opts)], WithCallback(fire)))
}

func noopCallback(*Job, time.Duration) error { return nil }
