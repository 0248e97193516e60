package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usagestats/usagestats/charts"
	"github.com/usagestats/usagestats/httpclient"
	"github.com/usagestats/usagestats/logger"
	"github.com/usagestats/usagestats/metrics"
)

type fixtureServer struct {
	mu     sync.Mutex
	paths  []string
	bodies map[string]string
	status map[string]int
}

func (f *fixtureServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	if code, ok := f.status[r.URL.Path]; ok {
		w.WriteHeader(code)
		return
	}
	body, ok := f.bodies[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func newTestLoader(t *testing.T, ch chan<- metrics.Metrics) *Loader {
	t.Helper()
	client := httpclient.New(2*time.Second, "loader-test", nil)
	l, err := New(client, logger.NewTestLogger(t), ch)
	require.NoError(t, err)
	return l
}

func byName(t *testing.T, name string) charts.Request {
	t.Helper()
	for _, r := range charts.DefaultRequests() {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no default chart %q", name)
	return charts.Request{}
}

func TestLoadChart_BarPassthrough(t *testing.T) {
	fs := &fixtureServer{bodies: map[string]string{
		"/results/results-most-tables.json": `[{"num_tables":3},{"num_tables":7}]`,
	}}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	res := newTestLoader(t, nil).LoadChart(context.Background(), srv.URL, byName(t, "most-tables"))

	require.NoError(t, res.Err)
	assert.True(t, res.Rendered)
	assert.Equal(t, []interface{}{"num_tables", float64(3), float64(7)}, res.Dataset.Column())
	assert.Equal(t, []string{"3", "7"}, res.Dataset.CategoryLabels())
	assert.Equal(t, "most-tables-graph", res.Chart.ContainerID)
	assert.Contains(t, string(res.Chart.Option), `"bar"`)
	assert.Equal(t, []string{"/results/results-most-tables.json"}, fs.paths)
}

func TestLoadChart_AreaWithMonthLabels(t *testing.T) {
	fs := &fixtureServer{bodies: map[string]string{
		"/results/results-minor-month.json": `[{"range":"2023-01-01 - 2023-01-31","uniques":42}]`,
	}}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	req := byName(t, "minor-month")
	res := newTestLoader(t, nil).LoadChart(context.Background(), srv.URL+"/", req)

	require.True(t, res.Rendered, "err: %v", res.Err)
	assert.Equal(t, []interface{}{req.Title, float64(42)}, res.Dataset.Column())
	assert.Equal(t, []string{"January 2023"}, res.Dataset.CategoryLabels())
	assert.Contains(t, string(res.Chart.Option), "January 2023")
	assert.Contains(t, string(res.Chart.Option), "areaStyle")
}

func TestLoadChart_StripsCanvasFromPath(t *testing.T) {
	fs := &fixtureServer{bodies: map[string]string{
		"/results/results-periodic-week.json": `[]`,
	}}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	req := charts.Request{Name: "periodic-canvas-week", ElementID: "periodic-week", Kind: charts.KindBar, ValueField: "uniques", LabelField: "range"}
	res := newTestLoader(t, nil).LoadChart(context.Background(), srv.URL, req)

	assert.True(t, res.Rendered)
	assert.Empty(t, res.Dataset.Values)
	assert.Equal(t, []string{"/results/results-periodic-week.json"}, fs.paths)
}

func TestLoadChart_OptionSafeForInlineScript(t *testing.T) {
	fs := &fixtureServer{bodies: map[string]string{
		"/results/results-github-stars.json": `[{"period":"</script><b>&","count":1}]`,
	}}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	res := newTestLoader(t, nil).LoadChart(context.Background(), srv.URL, byName(t, "github-stars"))
	require.True(t, res.Rendered, "load failed: %v", res.Err)

	option := string(res.Chart.Option)
	assert.NotContains(t, option, "</script>")
	assert.NotContains(t, option, "<b>")
	assert.Contains(t, option, `\u003c/script\u003e\u003cb\u003e\u0026`)
}

func TestLoadChart_SilentFailures(t *testing.T) {
	fs := &fixtureServer{
		bodies: map[string]string{
			"/results/results-most-servers.json":   `{"not":"json`,
			"/results/results-github-stars.json":   `{"period":"2014-3"}`,
			"/results/results-periodic-month.json": `[{"range":"garbage","uniques":1}]`,
		},
		status: map[string]int{
			"/results/results-most-tables.json": http.StatusInternalServerError,
		},
	}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	l := newTestLoader(t, nil)
	cases := []struct {
		chart string
		want  error
	}{
		{"most-tables", ErrFetch},
		{"most-servers", ErrDecode},
		{"github-stars", ErrDecode},
		{"periodic-month", ErrTransform},
		{"minor-month", ErrFetch},
	}
	for _, tc := range cases {
		t.Run(tc.chart, func(t *testing.T) {
			res := l.LoadChart(context.Background(), srv.URL, byName(t, tc.chart))
			assert.False(t, res.Rendered)
			assert.Empty(t, res.Chart.Option)
			assert.True(t, errors.Is(res.Err, tc.want), "got %v", res.Err)
		})
	}
}

func TestLoadChart_TransformErrorChain(t *testing.T) {
	fs := &fixtureServer{bodies: map[string]string{"/results/results-x.json": `[{"v":1}]`}}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	errScript := errors.New("script threw")
	req := charts.Request{Name: "x", ElementID: "x", Kind: charts.KindBar, ValueField: "v", LabelField: "v",
		Transform: func(charts.Row) (charts.Row, error) { return nil, errScript }}
	res := newTestLoader(t, nil).LoadChart(context.Background(), srv.URL, req)

	assert.False(t, res.Rendered)
	assert.ErrorIs(t, res.Err, ErrTransform)
	assert.ErrorIs(t, res.Err, charts.ErrTransform)
	assert.ErrorIs(t, res.Err, errScript)
}

func TestLoadChart_PanickingTransform(t *testing.T) {
	fs := &fixtureServer{bodies: map[string]string{"/results/results-x.json": `[{"v":1}]`}}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	req := charts.Request{Name: "x", ElementID: "x", Kind: charts.KindBar, ValueField: "v", LabelField: "v",
		Transform: func(charts.Row) (charts.Row, error) { panic("boom") }}
	res := newTestLoader(t, nil).LoadChart(context.Background(), srv.URL, req)

	assert.False(t, res.Rendered)
	assert.ErrorIs(t, res.Err, ErrRender)
}

func TestLoad_IndependentAndOrdered(t *testing.T) {
	fs := &fixtureServer{
		bodies: map[string]string{
			"/results/results-minor-month.json":    `[{"range":"2023-01-01 - 2023-01-31","uniques":42},{"range":"2023-02-01 - 2023-02-28","uniques":50}]`,
			"/results/results-periodic-month.json": `[{"range":"2023-01-01 - 2023-01-31","uniques":7}]`,
			"/results/results-most-tables.json":    `[{"num_tables":3},{"num_tables":7}]`,
			"/results/results-github-stars.json":   `[{"period":"2014-3","count":12}]`,
		},
		status: map[string]int{"/results/results-most-servers.json": http.StatusInternalServerError},
	}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	ch := make(chan metrics.Metrics, 10)
	reqs := charts.DefaultRequests()
	results := newTestLoader(t, ch).Load(context.Background(), srv.URL, reqs)

	require.Len(t, results, len(reqs))
	for i, res := range results {
		assert.Equal(t, reqs[i].Name, res.Request.Name)
		if res.Request.Name == "most-servers" {
			assert.False(t, res.Rendered)
			continue
		}
		assert.True(t, res.Rendered, "%s: %v", res.Request.Name, res.Err)
	}
	assert.Len(t, fs.paths, 5)
	assert.Len(t, ch, 5)

	var stars Result
	for _, r := range results {
		if r.Request.Name == "github-stars" {
			stars = r
		}
	}
	assert.Equal(t, []interface{}{"period", float64(12)}, stars.Dataset.Column())
	assert.True(t, strings.Contains(string(stars.Chart.Option), "2014-3"))
}

func TestLoad_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(&fixtureServer{bodies: map[string]string{}})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newTestLoader(t, nil).Load(ctx, srv.URL, charts.DefaultRequests())
	for _, res := range results {
		assert.False(t, res.Rendered)
		assert.ErrorIs(t, res.Err, ErrFetch)
	}
}
