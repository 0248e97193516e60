// Package geo resolves the host names behind usage log addresses.
package geo

import (
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/cheynewallace/tabby"
	"github.com/dustin/go-humanize"

	"github.com/usagestats/usagestats/logger"
	"github.com/usagestats/usagestats/usagelog"
)

const DefaultWorkers = 256

// LookupFunc returns the names an address resolves to.
type LookupFunc func(ctx context.Context, ip string) ([]string, error)

type Resolver struct {
	workers int
	lookup  LookupFunc
	cache   Cache
	log     logger.Logger
}

// NewResolver returns a resolver using the system resolver. cache may be nil.
func NewResolver(workers int, cache Cache, log logger.Logger) *Resolver {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Resolver{
		workers: workers,
		lookup:  net.DefaultResolver.LookupAddr,
		cache:   cache,
		log:     log,
	}
}

// WithLookup replaces the lookup function.
func (r *Resolver) WithLookup(lookup LookupFunc) *Resolver {
	r.lookup = lookup
	return r
}

// ResolveAll maps every address to its host name, or "" when it has none.
func (r *Resolver) ResolveAll(ctx context.Context, ips []string) map[string]string {
	jobs := make(chan string)
	type answer struct{ ip, host string }
	answers := make(chan answer, len(ips))

	var wg sync.WaitGroup
	workers := r.workers
	if workers > len(ips) {
		workers = len(ips)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range jobs {
				answers <- answer{ip: ip, host: r.Resolve(ctx, ip)}
			}
		}()
	}

	for _, ip := range ips {
		jobs <- ip
	}
	close(jobs)
	wg.Wait()
	close(answers)

	hosts := make(map[string]string, len(ips))
	for a := range answers {
		hosts[a.ip] = a.host
	}
	return hosts
}

// Resolve looks up one address, consulting the cache first. Cache failures
// fall back to a live lookup.
func (r *Resolver) Resolve(ctx context.Context, ip string) string {
	if r.cache != nil {
		host, found, err := r.cache.Get(ctx, ip)
		if err != nil {
			r.log.WithError(err).Debug("geo cache read failed", map[string]interface{}{"ip": ip})
		} else if found {
			return host
		}
	}

	host := ""
	names, err := r.lookup(ctx, ip)
	if err == nil && len(names) > 0 {
		host = strings.TrimSuffix(names[0], ".")
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, ip, host); err != nil {
			r.log.WithError(err).Debug("geo cache write failed", map[string]interface{}{"ip": ip})
		}
	}
	return host
}

// HostRow is one line of the geo report.
type HostRow struct {
	Hits      int
	Host      string
	IP        string
	FirstSeen time.Time
	LastSeen  time.Time
}

// Rows joins addresses with their hosts, falling back to the address when a
// host is unknown, and sorts by hits then host.
func Rows(uniques map[string]*usagelog.IPInfo, hosts map[string]string) []HostRow {
	rows := make([]HostRow, 0, len(uniques))
	for ip, info := range uniques {
		host := hosts[ip]
		if host == "" {
			host = ip
		}
		rows = append(rows, HostRow{
			Hits:      info.Hits,
			Host:      host,
			IP:        ip,
			FirstSeen: info.FirstSeen,
			LastSeen:  info.LastSeen,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Hits != rows[j].Hits {
			return rows[i].Hits < rows[j].Hits
		}
		if rows[i].Host != rows[j].Host {
			return rows[i].Host < rows[j].Host
		}
		return rows[i].IP < rows[j].IP
	})
	return rows
}

// PrintRows writes the geo report with first and last seen relative to now.
func PrintRows(w io.Writer, rows []HostRow, now time.Time) {
	fmt.Fprintln(w, "Note: there may be duplicate entries for different IPs that resolve to the same host")
	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("hits", "host", "first seen", "last seen")
	for _, row := range rows {
		t.AddLine(row.Hits, row.Host, relative(row.FirstSeen, now), relative(row.LastSeen, now))
	}
	t.Print()
}

func relative(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}
