package metricsprocessor

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/influxdata/tdigest"
	"github.com/usagestats/usagestats/metrics"
)

// Processor folds per-request samples into per-endpoint aggregates.
type Processor struct {
	MetricsMap sync.Map

	metricsReceived int32
	mu              sync.Mutex
}

func New() *Processor {
	return &Processor{}
}

// GatherMetrics drains metricsChannel until it is closed.
func (p *Processor) GatherMetrics(metricsChannel <-chan metrics.Metrics, metricsWaitGroup *sync.WaitGroup) {
	defer metricsWaitGroup.Done()

	for metric := range metricsChannel {
		p.processMetrics(metric)
	}
}

// Received is the number of samples processed so far.
func (p *Processor) Received() int {
	return int(atomic.LoadInt32(&p.metricsReceived))
}

// Snapshot returns the aggregates sorted by key.
func (p *Processor) Snapshot() []*metrics.EndpointMetrics {
	var keys []string
	values := map[string]*metrics.EndpointMetrics{}
	p.MetricsMap.Range(func(key, value interface{}) bool {
		k := key.(string)
		keys = append(keys, k)
		values[k] = value.(*metrics.EndpointMetrics)
		return true
	})
	sort.Strings(keys)

	out := make([]*metrics.EndpointMetrics, 0, len(keys))
	for _, k := range keys {
		out = append(out, values[k])
	}
	return out
}

func (p *Processor) processMetrics(metric metrics.Metrics) {
	atomic.AddInt32(&p.metricsReceived, 1)
	for key, endpointMetric := range metric.EndpointMetricsMap {
		if endpointMetric.Type == metrics.HTTPRequest || endpointMetric.Type == metrics.ChartRender {
			p.processEndpointMetric(key, endpointMetric)
		}
	}
}

func (p *Processor) processEndpointMetric(key string, endpointMetric *metrics.EndpointMetrics) {
	value, _ := p.MetricsMap.LoadOrStore(key, initializeNewMetric(endpointMetric))
	storedMetric := value.(*metrics.EndpointMetrics)

	p.mu.Lock()
	defer p.mu.Unlock()
	mergeMetrics(storedMetric, endpointMetric)
}

func initializeNewMetric(endpointMetric *metrics.EndpointMetrics) *metrics.EndpointMetrics {
	return &metrics.EndpointMetrics{
		URL:                        endpointMetric.URL,
		Method:                     endpointMetric.Method,
		Type:                       endpointMetric.Type,
		StatusCodeCounts:           make(map[int]int),
		ResponseTimesTDigest:       tdigest.New(),
		TCPHandshakeLatencyTDigest: tdigest.New(),
		DNSLookupLatencyTDigest:    tdigest.New(),
	}
}

func mergeMetrics(storedMetric, newMetric *metrics.EndpointMetrics) {
	storedMetric.Requests += newMetric.Requests
	storedMetric.Errors += newMetric.Errors
	storedMetric.TotalDuration += newMetric.TotalDuration
	storedMetric.TotalResponseTime += newMetric.TotalResponseTime
	storedMetric.TotalBytesReceived += newMetric.TotalBytesReceived
	storedMetric.TotalBytesSent += newMetric.TotalBytesSent

	for statusCode, count := range newMetric.StatusCodeCounts {
		storedMetric.StatusCodeCounts[statusCode] += count
	}

	mergeTDigests(storedMetric, newMetric)
}

func mergeTDigests(storedMetric, newMetric *metrics.EndpointMetrics) {
	storedMetric.ResponseTimesTDigest.Add(float64(newMetric.ResponseTimes.Milliseconds()), 1)
	if newMetric.TCPHandshakeLatency.Milliseconds() > 0 {
		storedMetric.TCPHandshakeLatencyTDigest.Add(float64(newMetric.TCPHandshakeLatency.Milliseconds()), 1)
	}
	if newMetric.DNSLookupLatency.Milliseconds() > 0 {
		storedMetric.DNSLookupLatencyTDigest.Add(float64(newMetric.DNSLookupLatency.Milliseconds()), 1)
	}
}
