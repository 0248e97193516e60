package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/usagestats/usagestats/logger"
	"github.com/usagestats/usagestats/metrics"
)

// Successful HTTP GET request
func TestSuccessfulHttpGetRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected user agent test-agent, got %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Expected Accept header to be forwarded")
		}
		w.Header().Set("Link", `<http://next>; rel="next"`)
		_, _ = w.Write([]byte(`[{"count":1}]`))
	}))
	defer server.Close()

	metricsChan := make(chan metrics.Metrics, 1)
	client := New(time.Second, "test-agent", metricsChan)

	response, err := client.Get(context.Background(), server.URL, map[string]string{"Accept": "application/json"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if response.StatusCode != http.StatusOK || !response.OK() {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, response.StatusCode)
	}
	if string(response.Body) != `[{"count":1}]` {
		t.Errorf("Unexpected body %q", response.Body)
	}
	if response.Header.Get("Link") == "" {
		t.Errorf("Expected response headers to be kept")
	}

	select {
	case m := <-metricsChan:
		ep := m.EndpointMetricsMap["GET "+server.URL]
		if ep == nil {
			t.Fatalf("Expected metrics for GET %s", server.URL)
		}
		if ep.Requests != 1 || ep.Errors != 0 || ep.StatusCodeCounts[200] != 1 {
			t.Errorf("Unexpected metrics %+v", ep)
		}
	default:
		t.Fatalf("Expected a metrics sample")
	}
}

func TestNon2xxIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	metricsChan := make(chan metrics.Metrics, 1)
	response, err := New(time.Second, "", metricsChan).Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if response.OK() {
		t.Errorf("Expected a non-2xx response")
	}
	m := <-metricsChan
	if m.EndpointMetricsMap["GET "+server.URL].Errors != 1 {
		t.Errorf("Expected the sample to count as an error")
	}
}

func TestPostSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || string(b) != "payload" {
			t.Errorf("Unexpected request %s %q", r.Method, b)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	response, err := New(time.Second, "", nil).Post(context.Background(), server.URL, nil, strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if response.StatusCode != http.StatusCreated {
		t.Errorf("Expected 201, got %d", response.StatusCode)
	}
}

// Invalid URL format
func TestInvalidUrlFormat(t *testing.T) {
	metricsChan := make(chan metrics.Metrics, 1)

	response, err := New(time.Second, "", metricsChan).Get(context.Background(), "http//invalid-url", nil)

	if err == nil {
		t.Fatalf("Expected error, got none")
	}
	if response.StatusCode != 0 {
		t.Errorf("Expected status code 0, got %d", response.StatusCode)
	}
	if len(response.Body) != 0 {
		t.Errorf("Expected empty body")
	}
}

func TestCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(0, "", nil).Get(ctx, server.URL, nil); err == nil {
		t.Fatalf("Expected error for cancelled context")
	}
}

// A full metrics channel drops the sample and logs it instead of blocking
func TestDroppedMetricsAreLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	metricsChan := make(chan metrics.Metrics)
	client := New(time.Second, "test-agent", metricsChan).WithLogger(logger.NewZapAdapter(zap.New(core)))

	if _, err := client.Get(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := logs.FilterMessage("metrics channel full, dropping sample").Len(); got != 1 {
		t.Errorf("Expected one dropped sample log, got %d", got)
	}
}
