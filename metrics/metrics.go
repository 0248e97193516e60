// File: metrics/metrics.go
package metrics

import (
	"fmt"
	"time"

	"github.com/influxdata/tdigest"
)

// Type tells the processor what produced a metric.
type Type int

const (
	HTTPRequest Type = iota
	ChartRender
)

// SendMetrics drops the sample when the channel is full so fetches never block on reporting.
// It returns false only when a sample was dropped.
func SendMetrics(metrics Metrics, metricsChan chan<- Metrics) bool {
	if metricsChan == nil {
		return true
	}
	select {
	case metricsChan <- metrics:
		return true
	default:
		return false
	}
}

// CollectRenderMetrics records one chart outcome.
func CollectRenderMetrics(chart string, rendered bool, duration time.Duration) Metrics {
	key := fmt.Sprintf("chart: %s", chart)
	epMetrics := &EndpointMetrics{
		URL:               chart,
		Method:            "RENDER",
		Type:              ChartRender,
		Requests:          1,
		TotalDuration:     duration,
		TotalResponseTime: duration,
		ResponseTimes:     duration,
		StatusCodeCounts:  make(map[int]int),
	}
	if !rendered {
		epMetrics.Errors = 1
	}
	return Metrics{EndpointMetricsMap: map[string]*EndpointMetrics{key: epMetrics}}
}

type Metrics struct {
	EndpointMetricsMap map[string]*EndpointMetrics
}

// EndpointMetrics holds either a single sample (ResponseTimes, latencies set) or,
// once aggregated, running totals with t-digests.
type EndpointMetrics struct {
	URL                string
	Method             string
	Type               Type
	Requests           int
	TotalDuration      time.Duration
	TotalResponseTime  time.Duration
	TotalBytesReceived int
	TotalBytesSent     int
	Errors             int
	StatusCodeCounts   map[int]int

	ResponseTimes       time.Duration
	TCPHandshakeLatency time.Duration
	DNSLookupLatency    time.Duration

	ResponseTimesTDigest       *tdigest.TDigest
	TCPHandshakeLatencyTDigest *tdigest.TDigest
	DNSLookupLatencyTDigest    *tdigest.TDigest
}

// Quantile reads the response time digest in milliseconds; zero before any sample.
func (e *EndpointMetrics) Quantile(q float64) time.Duration {
	if e.ResponseTimesTDigest == nil || e.ResponseTimesTDigest.Count() == 0 {
		return 0
	}
	return time.Duration(e.ResponseTimesTDigest.Quantile(q) * float64(time.Millisecond))
}
