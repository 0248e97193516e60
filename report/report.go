package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/usagestats/usagestats/metrics"
)

// GenerateReport prints the fetch summary followed by one line per endpoint.
func GenerateReport(w io.Writer, snapshot []*metrics.EndpointMetrics) {
	printSummary(w, snapshot)
	color.New(color.FgGreen).Add(color.Bold).Fprintln(w, "\nDetailed Report:")

	for _, epMetrics := range snapshot {
		endpoint := fmt.Sprintf("%s %s", epMetrics.Method, epMetrics.URL)
		if epMetrics.Requests == 0 {
			fmt.Fprintf(w, "  %s%s: errors=%d\n", endpoint, dots(endpoint), epMetrics.Errors)
			continue
		}

		avg := roundDurationToTwoDecimals(epMetrics.TotalResponseTime / time.Duration(epMetrics.Requests))
		min := epMetrics.Quantile(0.0)
		med := epMetrics.Quantile(0.5)
		max := epMetrics.Quantile(1.0)
		p90 := epMetrics.Quantile(0.9)
		p95 := epMetrics.Quantile(0.95)

		fmt.Fprintf(w, "  %s%s: avg=%v  min=%v  med=%v  max=%v  p(90)=%v  p(95)=%v  errors=%d  status=%s\n",
			endpoint, dots(endpoint), avg, min, med, max, p90, p95, epMetrics.Errors, statusCodes(epMetrics.StatusCodeCounts))
	}
}

func dots(endpoint string) string {
	// total width of endpoint plus dots
	totalLength := 40
	numDots := totalLength - len(endpoint)
	if numDots < 0 {
		numDots = 0
	}
	return strings.Repeat(".", numDots)
}

func statusCodes(counts map[int]int) string {
	if len(counts) == 0 {
		return "-"
	}
	codes := make([]int, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = strconv.Itoa(code) + ": " + strconv.Itoa(counts[code])
	}
	return strings.Join(parts, ", ")
}

func printSummary(w io.Writer, snapshot []*metrics.EndpointMetrics) {
	color.New(color.FgCyan).Add(color.Bold).Fprintln(w, "\n=== Chart Fetch Report ===")
	color.New(color.FgGreen).Add(color.Bold).Fprintln(w, "\nSummary:")

	totalRequests, totalErrors, totalDuration := 0, 0, time.Duration(0)
	for _, epMetrics := range snapshot {
		totalRequests += epMetrics.Requests
		totalErrors += epMetrics.Errors
		totalDuration += epMetrics.TotalDuration
	}

	fmt.Fprintf(w, "  Total Requests       : %d\n", totalRequests)
	fmt.Fprintf(w, "  Total Errors         : %d\n", totalErrors)
	fmt.Fprintf(w, "  Total Duration       : %v\n", totalDuration)
	if totalRequests > 0 {
		avgDuration := totalDuration / time.Duration(totalRequests)
		fmt.Fprintf(w, "  Average Duration     : %v\n", avgDuration)
	} else {
		fmt.Fprintln(w, "  Average Duration     : N/A")
	}
	fmt.Fprintln(w)
}

func roundDurationToTwoDecimals(d time.Duration) time.Duration {
	seconds := d.Seconds()
	roundedSeconds := math.Round(seconds*100) / 100
	return time.Duration(roundedSeconds * float64(time.Second))
}
