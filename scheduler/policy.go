// Package scheduler runs resumable tasks as a cooperative queue.
package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPolicy = errors.New("invalid interval policy")

// IntervalPolicy is how long a task waits before its next step.
type IntervalPolicy struct {
	seconds uint64
}

var (
	PerMinute = IntervalPolicy{seconds: 60}
	PerHour   = IntervalPolicy{seconds: 60 * 60}
	PerDay    = IntervalPolicy{seconds: 24 * 60 * 60}
)

func Period(seconds uint64) IntervalPolicy {
	return IntervalPolicy{seconds: seconds}
}

// ParsePolicy accepts per_minute, per_hour, per_day or a number of seconds.
func ParsePolicy(s string) (IntervalPolicy, error) {
	switch strings.ToLower(s) {
	case "per_minute", "minute":
		return PerMinute, nil
	case "per_hour", "hour":
		return PerHour, nil
	case "per_day", "day":
		return PerDay, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return IntervalPolicy{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
	return Period(n), nil
}

func (p IntervalPolicy) Interval() time.Duration {
	return time.Duration(p.seconds) * time.Second
}

func (p IntervalPolicy) Next(from time.Time) time.Time {
	return from.Add(p.Interval())
}

func (p IntervalPolicy) Seconds() uint64 {
	return p.seconds
}

func (p IntervalPolicy) String() string {
	switch p {
	case PerMinute:
		return "PerMinute"
	case PerHour:
		return "PerHour"
	case PerDay:
		return "PerDay"
	default:
		return fmt.Sprintf("Period(%d)", p.seconds)
	}
}

// backoff is interval * 2^(attempts-1), capped at max.
func backoff(interval time.Duration, attempts int, max time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := interval
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
