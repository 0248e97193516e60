package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeRendered = "rendered"
	OutcomeFailed   = "failed"
)

var (
	ChartLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagestats_chart_loads_total",
			Help: "Chart load attempts by chart and outcome",
		},
		[]string{"chart", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "usagestats_fetch_duration_seconds",
			Help:    "Duration of results resource fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagestats_http_requests_total",
			Help: "HTTP requests served by route and status",
		},
		[]string{"route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "usagestats_http_request_duration_seconds",
			Help: "Duration of HTTP requests served in seconds",
		},
		[]string{"route"},
	)
)
