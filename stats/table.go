package stats

import (
	"sort"

	"github.com/influxdata/tdigest"

	"github.com/usagestats/usagestats/usagelog"
)

// Row summarizes one bucket. Existing counts addresses already seen in an
// earlier bucket; New counts the rest.
type Row struct {
	Range    string
	Uniques  int
	Existing int
	New      int
	Hits     int
}

// Table is the per-bucket summary plus totals over every bucket.
type Table struct {
	Rows       []Row
	Range      string
	AllUniques int
	AllHits    int
}

// Values returns the row cells in column order: range, uniques, existing, new, hits.
func (r Row) Values() []interface{} {
	return []interface{}{r.Range, r.Uniques, r.Existing, r.New, r.Hits}
}

func dateRange(from, to usagelog.Day) string {
	return from.Date.Format(usagelog.DateLayout) + " - " + to.Date.Format(usagelog.DateLayout)
}

func BuildTable(buckets []Bucket) Table {
	var t Table
	seen := make(map[string]struct{})

	for _, b := range buckets {
		if len(b.Days) == 0 {
			continue
		}
		uniques := make(map[string]struct{})
		hits := 0
		for _, d := range b.Days {
			for _, ip := range d.IPs {
				uniques[ip] = struct{}{}
				hits++
			}
		}

		existing := 0
		for ip := range uniques {
			if _, ok := seen[ip]; ok {
				existing++
			}
		}
		for ip := range uniques {
			seen[ip] = struct{}{}
		}

		t.Rows = append(t.Rows, Row{
			Range:    dateRange(b.Days[0], b.Days[len(b.Days)-1]),
			Uniques:  len(uniques),
			Existing: existing,
			New:      len(uniques) - existing,
			Hits:     hits,
		})
		t.AllHits += hits
	}

	t.AllUniques = len(seen)
	if n := len(buckets); n > 0 && len(buckets[0].Days) > 0 && len(buckets[n-1].Days) > 0 {
		last := buckets[n-1].Days
		t.Range = dateRange(buckets[0].Days[0], last[len(last)-1])
	}
	return t
}

// MaxHitThreshold is the highest hit count IPCounts reports on.
const MaxHitThreshold = 7

// IPCounts returns, for each i in 1..MaxHitThreshold, how many addresses have at least i hits.
func IPCounts(hitsPerIP map[string]int) map[int]int {
	counts := make(map[int]int, MaxHitThreshold)
	for i := 1; i <= MaxHitThreshold; i++ {
		counts[i] = 0
	}
	for _, hits := range hitsPerIP {
		for i := 1; i <= MaxHitThreshold && hits >= i; i++ {
			counts[i]++
		}
	}
	return counts
}

// Distribution describes hits per address.
type Distribution struct {
	Addresses int
	P50       float64
	P90       float64
	P99       float64
}

func HitsDistribution(hitsPerIP map[string]int) Distribution {
	d := Distribution{Addresses: len(hitsPerIP)}
	if len(hitsPerIP) == 0 {
		return d
	}
	td := tdigest.New()
	for _, hits := range hitsPerIP {
		td.Add(float64(hits), 1)
	}
	d.P50 = td.Quantile(0.5)
	d.P90 = td.Quantile(0.9)
	d.P99 = td.Quantile(0.99)
	return d
}

// DefaultDeployments is how many addresses the deployment rankings keep.
const DefaultDeployments = 25

// LargestDeployments ranks addresses by reported servers and by reported tables.
// Ties keep address order.
func LargestDeployments(uniques map[string]*usagelog.IPInfo, n int) (byServers, byTables []usagelog.IPInfo) {
	all := make([]usagelog.IPInfo, 0, len(uniques))
	for _, info := range uniques {
		all = append(all, *info)
	}
	sort.Slice(all, func(a, b int) bool { return all[a].IP < all[b].IP })

	byServers = make([]usagelog.IPInfo, len(all))
	copy(byServers, all)
	sort.SliceStable(byServers, func(a, b int) bool { return byServers[a].NumServers > byServers[b].NumServers })

	byTables = make([]usagelog.IPInfo, len(all))
	copy(byTables, all)
	sort.SliceStable(byTables, func(a, b int) bool { return byTables[a].NumTables > byTables[b].NumTables })

	if n >= 0 && len(all) > n {
		byServers = byServers[:n]
		byTables = byTables[:n]
	}
	return byServers, byTables
}
