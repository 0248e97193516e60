package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/usagestats/usagestats/logger"
	"github.com/usagestats/usagestats/metrics"
)

const DefaultUserAgent = "usagestats/1.0"

type HttpResponse struct {
	Body                []byte
	StatusCode          int
	Header              http.Header
	URL                 string
	Method              string
	Duration            time.Duration
	TCPHandshakeLatency time.Duration
	DNSLookupLatency    time.Duration
}

// OK reports a 2xx status.
func (r HttpResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client issues traced requests and reports one metrics sample per completed request.
type Client struct {
	httpClient     *http.Client
	userAgent      string
	metricsChannel chan<- metrics.Metrics
	log            logger.Logger
}

// New builds a Client. A zero timeout means no client-side deadline; metricsChannel may be nil.
func New(timeout time.Duration, userAgent string, metricsChannel chan<- metrics.Metrics) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		userAgent:      userAgent,
		metricsChannel: metricsChannel,
		log:            logger.NewNoOpLogger(),
	}
}

// WithLogger sets the logger used for client diagnostics.
func (c *Client) WithLogger(log logger.Logger) *Client {
	c.log = log
	return c
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (HttpResponse, error) {
	return c.HttpRequest(ctx, url, http.MethodGet, headers, nil)
}

func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body io.Reader) (HttpResponse, error) {
	return c.HttpRequest(ctx, url, http.MethodPost, headers, body)
}

func (c *Client) HttpRequest(ctx context.Context, url, method string, headers map[string]string, body io.Reader) (HttpResponse, error) {
	start := time.Now()

	var dnsStart, dnsEnd, connectStart, connectEnd time.Time

	trace := &httptrace.ClientTrace{
		DNSStart:     func(info httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:      func(info httptrace.DNSDoneInfo) { dnsEnd = time.Now() },
		ConnectStart: func(network, addr string) { connectStart = time.Now() },
		ConnectDone:  func(network, addr string, err error) { connectEnd = time.Now() },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, url, body)
	if err != nil {
		return HttpResponse{}, err
	}

	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.sendMetrics(collectErrorMetrics(url, method, time.Since(start)))
		return HttpResponse{}, err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.sendMetrics(collectErrorMetrics(url, method, time.Since(start)))
		return HttpResponse{}, err
	}

	duration := time.Since(start)
	tcpHandshakeLatency := connectEnd.Sub(connectStart)
	dnsLookupLatency := dnsEnd.Sub(dnsStart)

	m := collectMetricsWithLatencies(url, method, len(responseBody), len(req.URL.String()), resp.StatusCode, duration, tcpHandshakeLatency, dnsLookupLatency)
	c.sendMetrics(m)

	return HttpResponse{
		Body:                responseBody,
		StatusCode:          resp.StatusCode,
		Header:              resp.Header,
		URL:                 url,
		Method:              method,
		Duration:            duration,
		TCPHandshakeLatency: tcpHandshakeLatency,
		DNSLookupLatency:    dnsLookupLatency,
	}, nil
}

func metricsKey(url, method string) string {
	return fmt.Sprintf("%s %s", method, url)
}

func collectMetricsWithLatencies(url, method string, bytesReceived, bytesSent, statusCode int, duration, tcpHandshakeLatency, dnsLookupLatency time.Duration) metrics.Metrics {
	epMetrics := &metrics.EndpointMetrics{
		URL:                 url,
		Method:              method,
		Type:                metrics.HTTPRequest,
		StatusCodeCounts:    map[int]int{statusCode: 1},
		Requests:            1,
		TotalDuration:       duration,
		TotalResponseTime:   duration,
		TotalBytesReceived:  bytesReceived,
		TotalBytesSent:      bytesSent,
		ResponseTimes:       duration,
		TCPHandshakeLatency: tcpHandshakeLatency,
		DNSLookupLatency:    dnsLookupLatency,
	}
	if statusCode < 200 || statusCode >= 300 {
		epMetrics.Errors = 1
	}

	return metrics.Metrics{EndpointMetricsMap: map[string]*metrics.EndpointMetrics{metricsKey(url, method): epMetrics}}
}

func collectErrorMetrics(url, method string, duration time.Duration) metrics.Metrics {
	epMetrics := &metrics.EndpointMetrics{
		URL:              url,
		Method:           method,
		Type:             metrics.HTTPRequest,
		StatusCodeCounts: map[int]int{},
		Requests:         1,
		Errors:           1,
		TotalDuration:    duration,
		ResponseTimes:    duration,
	}
	return metrics.Metrics{EndpointMetricsMap: map[string]*metrics.EndpointMetrics{metricsKey(url, method): epMetrics}}
}

func (c *Client) sendMetrics(m metrics.Metrics) {
	if !metrics.SendMetrics(m, c.metricsChannel) {
		c.log.Debug("metrics channel full, dropping sample", nil)
	}
}
