package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/usagestats/usagestats/github"
	"github.com/usagestats/usagestats/stats"
	"github.com/usagestats/usagestats/usagelog"
)

// PrintUsageTable prints one row per bucket. nohits drops the hits column.
func PrintUsageTable(w io.Writer, table stats.Table, nohits bool) {
	headers := []string{"range", "uniques", "existing", "new"}
	if !nohits {
		headers = append(headers, "hits")
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader(headers)
	t.SetAutoFormatHeaders(false)
	for _, row := range table.Rows {
		cells := []string{row.Range, strconv.Itoa(row.Uniques), strconv.Itoa(row.Existing), strconv.Itoa(row.New)}
		if !nohits {
			cells = append(cells, strconv.Itoa(row.Hits))
		}
		t.Append(cells)
	}
	t.Render()
}

// PrintTotals prints the unique and hit counts over the whole range.
func PrintTotals(w io.Writer, table stats.Table, nohits bool) {
	fmt.Fprintf(w, "Total stats for %s:\n", table.Range)
	fmt.Fprintf(w, "\t%d uniques\n", table.AllUniques)
	if !nohits {
		fmt.Fprintf(w, "\t%d hits\n", table.AllHits)
	}
}

// PrintIPCounts prints how many addresses reached each hit threshold.
func PrintIPCounts(w io.Writer, counts map[int]int) {
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d: %d", k, counts[k])
	}
	fmt.Fprintf(w, "Counts: {%s}\n", strings.Join(parts, ", "))
}

func PrintDistribution(w io.Writer, d stats.Distribution) {
	fmt.Fprintf(w, "Hits per address (%d addresses): p50=%.1f  p90=%.1f  p99=%.1f\n", d.Addresses, d.P50, d.P90, d.P99)
}

// PrintDeployments prints a ranking of the largest deployments.
func PrintDeployments(w io.Writer, title string, infos []usagelog.IPInfo) {
	color.New(color.FgGreen).Add(color.Bold).Fprintf(w, "\n%s:\n", title)
	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("ip", "num_servers", "num_tables", "last_seen", "first_seen", "hits")
	for _, info := range infos {
		t.AddLine(info.IP, info.NumServers, info.NumTables,
			info.LastSeen.Format(usagelog.DateLayout), info.FirstSeen.Format(usagelog.DateLayout), info.Hits)
	}
	t.Print()
}

// PrintWindows prints activity windows, most recent first.
func PrintWindows(w io.Writer, windows []stats.Window) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"#", "hits", "uniques", "actives"})
	t.SetAutoFormatHeaders(false)
	for _, win := range windows {
		t.Append([]string{strconv.Itoa(win.Index), strconv.Itoa(win.Hits), strconv.Itoa(win.Uniques), strconv.Itoa(win.Actives)})
	}
	t.Render()
}

// PrintStars prints the star total and the per-month counts.
func PrintStars(w io.Writer, total int, counts []github.PeriodCount) {
	fmt.Fprintln(w, "Number of GitHub stars:", total)
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"period", "count"})
	t.SetAutoFormatHeaders(false)
	for _, c := range counts {
		t.Append([]string{c.Period, strconv.Itoa(c.Count)})
	}
	t.Render()
}
