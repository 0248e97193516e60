// Package loader fetches the results resources behind each dashboard chart
// and renders the ones that load. A chart that fails to fetch, decode,
// transform or render is dropped without surfacing an error.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/usagestats/usagestats/charts"
	"github.com/usagestats/usagestats/httpclient"
	"github.com/usagestats/usagestats/logger"
	"github.com/usagestats/usagestats/metrics"
)

var (
	ErrFetch     = errors.New("fetch failed")
	ErrDecode    = errors.New("decode failed")
	ErrTransform = charts.ErrTransform
	ErrRender    = errors.New("render failed")
)

// rowsSchema accepts any JSON array of objects.
const rowsSchema = `{"type": "array", "items": {"type": "object"}}`

// Result is the outcome of one chart. Err is kept for reporting only.
type Result struct {
	Request  charts.Request
	Dataset  charts.Dataset
	Chart    Chart
	Rendered bool
	Err      error
	Duration time.Duration
}

type Loader struct {
	client         *httpclient.Client
	log            logger.Logger
	schema         *gojsonschema.Schema
	metricsChannel chan<- metrics.Metrics
}

func New(client *httpclient.Client, log logger.Logger, metricsChannel chan<- metrics.Metrics) (*Loader, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(rowsSchema))
	if err != nil {
		return nil, fmt.Errorf("compile rows schema: %w", err)
	}
	return &Loader{
		client:         client,
		log:            log.WithFields(map[string]interface{}{"component": "loader"}),
		schema:         schema,
		metricsChannel: metricsChannel,
	}, nil
}

// Load fetches every request concurrently. Results come back in request order;
// completion order between charts is unspecified.
func (l *Loader) Load(ctx context.Context, baseURL string, requests []charts.Request) []Result {
	results := make([]Result, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req charts.Request) {
			defer wg.Done()
			results[i] = l.LoadChart(ctx, baseURL, req)
		}(i, req)
	}
	wg.Wait()

	return results
}

// LoadChart runs fetch, transform and render for a single chart.
func (l *Loader) LoadChart(ctx context.Context, baseURL string, req charts.Request) (result Result) {
	start := time.Now()
	result.Request = req

	defer func() {
		if r := recover(); r != nil {
			result.Rendered = false
			result.Chart = Chart{}
			result.Err = fmt.Errorf("%w: panic: %v", ErrRender, r)
		}
		result.Duration = time.Since(start)
		l.record(result)
	}()

	rows, err := l.fetchRows(ctx, baseURL, req)
	if err != nil {
		result.Err = err
		return result
	}

	ds, err := charts.BuildDataset(req, rows)
	if err != nil {
		result.Err = err
		return result
	}
	result.Dataset = ds

	chart, err := renderChart(req, ds)
	if err != nil {
		result.Err = err
		return result
	}
	result.Chart = chart
	result.Rendered = true
	return result
}

func (l *Loader) fetchRows(ctx context.Context, baseURL string, req charts.Request) ([]charts.Row, error) {
	path := charts.ResourcePath(req.Name)
	url := strings.TrimSuffix(baseURL, "/") + path

	fetchStart := time.Now()
	resp, err := l.client.Get(ctx, url, map[string]string{"Accept": "application/json"})
	metrics.FetchDuration.WithLabelValues(path).Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrFetch, url, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrFetch, url, resp.StatusCode)
	}

	validation, err := l.schema.Validate(gojsonschema.NewBytesLoader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	if !validation.Valid() {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, validation.Errors())
	}

	var rows []charts.Row
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return rows, nil
}

func (l *Loader) record(result Result) {
	name := result.Request.Name
	outcome := metrics.OutcomeRendered
	if !result.Rendered {
		outcome = metrics.OutcomeFailed
		l.log.WithError(result.Err).Debug("chart not rendered", map[string]interface{}{"chart": name})
	}
	metrics.ChartLoads.WithLabelValues(name, outcome).Inc()
	if !metrics.SendMetrics(metrics.CollectRenderMetrics(name, result.Rendered, result.Duration), l.metricsChannel) {
		l.log.Debug("metrics channel full, dropping sample", map[string]interface{}{"chart": name})
	}
}
