package interval

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End).
// OriginalStart keeps the start the interval had before any Extend call.
type Interval struct {
	Start         time.Time
	End           time.Time
	OriginalStart time.Time
}

func New(start, end time.Time) Interval {
	return Interval{
		Start:         start,
		End:           end,
		OriginalStart: start,
	}
}

// Empty reports whether the interval contains no instant at all.
func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Extend moves the start d earlier. End and OriginalStart are kept.
func (i Interval) Extend(d time.Duration) Interval {
	return Interval{
		Start:         i.Start.Add(-d),
		End:           i.End,
		OriginalStart: i.OriginalStart,
	}
}

// Overlap returns the intersection of both intervals. The second return value
// is false when they do not intersect.
func (i Interval) Overlap(o Interval) (Interval, bool) {
	start := i.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := i.End
	if o.End.Before(end) {
		end = o.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return New(start, end), true
}

func (i Interval) ShorterThan(d time.Duration) bool {
	return i.Duration() < d
}

// StillOpen is true while the interval has not yet ended: now <= End.
func (i Interval) StillOpen(now time.Time) bool {
	return !now.After(i.End)
}

// Elapsed is true once the interval lies entirely in the past: End <= now.
func (i Interval) Elapsed(now time.Time) bool {
	return !i.End.After(now)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.UTC().Format(time.RFC3339), i.End.UTC().Format(time.RFC3339))
}
