package stats

import (
	"fmt"
	"time"

	"github.com/usagestats/usagestats/usagelog"
)

// MinActive is the hit count an address must exceed within a window to be active.
const MinActive = 3

// Window summarizes the days in (From, To].
type Window struct {
	Index   int
	From    time.Time
	To      time.Time
	Hits    int
	Uniques int
	Actives int
}

// Windows walks back from now in steps of span days and stops at the first
// window that contains no log day.
func Windows(days []usagelog.Day, span int, now time.Time) ([]Window, error) {
	if span <= 0 {
		return nil, fmt.Errorf("window span must be positive, got %d", span)
	}

	var out []Window
	to := now
	for i := 1; ; i++ {
		from := to.AddDate(0, 0, -span)
		w := Window{Index: i, From: from, To: to}

		found := false
		perIP := make(map[string]int)
		for _, d := range days {
			if !d.Date.After(from) || d.Date.After(to) {
				continue
			}
			found = true
			for _, ip := range d.IPs {
				perIP[ip]++
				w.Hits++
			}
		}
		if !found {
			return out, nil
		}

		w.Uniques = len(perIP)
		for _, n := range perIP {
			if n > MinActive {
				w.Actives++
			}
		}
		out = append(out, w)
		to = from
	}
}
