// Package stats aggregates parsed usage logs into per-interval tables,
// deployment rankings and activity windows.
package stats

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/usagestats/usagestats/usagelog"
)

var ErrUnknownInterval = errors.New("unknown interval")

type Interval string

const (
	Week  Interval = "week"
	Month Interval = "month"
	Geo   Interval = "geo"
)

func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Week, Month, Geo:
		return Interval(s), nil
	}
	return "", fmt.Errorf("%w: %q, use: week, month; or geo", ErrUnknownInterval, s)
}

// RollBack returns the start of the interval containing t: the Monday of its
// week or the first day of its month.
func (i Interval) RollBack(t time.Time) time.Time {
	t = truncateDay(t)
	switch i {
	case Week:
		return t.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
	case Month:
		return t.AddDate(0, 0, -(t.Day() - 1))
	}
	return t
}

// Forward moves t ahead by one interval.
func (i Interval) Forward(t time.Time) time.Time {
	switch i {
	case Week:
		return t.AddDate(0, 0, 7)
	case Month:
		return t.AddDate(0, 1, 0)
	}
	return t
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Bucket is the set of log days falling in [From, To).
type Bucket struct {
	From time.Time
	To   time.Time
	Days []usagelog.Day
}

// Buckets groups days into consecutive intervals starting at the interval
// containing the earliest day. Intervals without any day are left out.
func Buckets(days []usagelog.Day, interval Interval) ([]Bucket, error) {
	if interval != Week && interval != Month {
		return nil, fmt.Errorf("%w: cannot bucket by %q", ErrUnknownInterval, interval)
	}
	if len(days) == 0 {
		return nil, nil
	}

	sorted := make([]usagelog.Day, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Date.Before(sorted[b].Date) })

	from := interval.RollBack(sorted[0].Date)
	current := Bucket{From: from, To: interval.Forward(from)}

	var buckets []Bucket
	for i := 0; i < len(sorted); {
		d := sorted[i].Date
		if !d.Before(current.To) {
			if len(current.Days) > 0 {
				buckets = append(buckets, current)
			}
			current = Bucket{From: current.To, To: interval.Forward(current.To)}
			continue
		}
		current.Days = append(current.Days, sorted[i])
		i++
	}
	if len(current.Days) > 0 {
		buckets = append(buckets, current)
	}
	return buckets, nil
}
