// Package client provides the HTTP client the edge uses to reach the
// storefront origin.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for origin requests.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_origin_requests_total",
		Help: "Total origin requests by method and status",
	}, []string{"method", "status"})

	originRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_origin_request_duration_seconds",
		Help:    "Origin request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_origin_errors_total",
		Help: "Total origin errors by class",
	}, []string{"class"})
)

// DefaultUserAgent identifies the edge to the origin.
const DefaultUserAgent = "storefront-edge/1.0"

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Config holds the client configuration.
type Config struct {
	// Origin is the base URL relative requests are resolved against (REQUIRED)
	Origin *url.URL

	// Timeout bounds each request (default: 30s)
	Timeout time.Duration

	// UserAgent is sent when the request carries none
	UserAgent string

	// Transport overrides http.DefaultTransport (tests)
	Transport http.RoundTripper
}

// Client forwards requests to the origin. It never retries.
type Client struct {
	httpClient *http.Client
	origin     *url.URL
	userAgent  string
	logger     zerolog.Logger
}

// New creates a new origin client.
func New(cfg Config) (*Client, error) {
	if cfg.Origin == nil || cfg.Origin.Host == "" {
		return nil, fmt.Errorf("origin url is required")
	}
	if cfg.Origin.Scheme != "http" && cfg.Origin.Scheme != "https" {
		return nil, fmt.Errorf("origin url must be http or https (got %q)", cfg.Origin.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
			// Redirects are handed back to the caller untouched.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		origin:    cfg.Origin,
		userAgent: cfg.UserAgent,
		logger:    logging.NewLogger(logging.ComponentClient),
	}, nil
}

// Origin returns the configured origin.
func (c *Client) Origin() *url.URL {
	u := *c.origin
	return &u
}

// Resolve turns target into an absolute URL. Absolute targets are returned
// unchanged; anything else is resolved against the origin.
func (c *Client) Resolve(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", target, err)
	}
	return c.ResolveURL(u), nil
}

// ResolveURL is Resolve for a parsed URL.
func (c *Client) ResolveURL(u *url.URL) *url.URL {
	if u.IsAbs() {
		out := *u
		return &out
	}
	return c.origin.ResolveReference(u)
}

// Do forwards req to the origin and returns the response for any status.
// Only transport failures are returned as errors, as a *FetchError of class
// network.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	out, err := c.outbound(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		originRequestDuration.WithLabelValues(out.Method).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.httpClient.Do(out)
	if err != nil {
		originErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		originRequestsTotal.WithLabelValues(out.Method, "network_error").Inc()
		c.logger.Debug().
			Err(err).
			Str("method", out.Method).
			Str("url", out.URL.String()).
			Msg("Origin request failed")
		return nil, &FetchError{URL: out.URL.String(), Class: ErrorClassNetwork, Err: err}
	}

	for _, h := range hopHeaders {
		resp.Header.Del(h)
	}
	originRequestsTotal.WithLabelValues(out.Method, strconv.Itoa(resp.StatusCode)).Inc()
	if class := ClassifyStatus(resp.StatusCode); class != "" {
		originErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Debug().
			Str("url", out.URL.String()).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Origin returned error status")
	}

	return resp, nil
}

// Get fetches target and treats every non-2xx status as a *FetchError.
// The caller owns the returned body.
func (c *Client) Get(ctx context.Context, target string) (*http.Response, error) {
	u, err := c.Resolve(target)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		status := resp.StatusCode
		class := ClassifyStatus(status)
		if class == "" {
			// 1xx and 3xx are unusable for precaching.
			class = ErrorClassClient
		}
		return nil, &FetchError{URL: u.String(), StatusCode: status, Class: class}
	}
	return resp, nil
}

// outbound builds the request sent to the origin from an incoming or
// locally built request.
func (c *Client) outbound(req *http.Request) (*http.Request, error) {
	target := c.ResolveURL(req.URL)
	out, err := http.NewRequestWithContext(req.Context(), req.Method, target.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	out.Header = req.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	if conn := req.Header.Get("Connection"); conn != "" {
		for _, name := range strings.Split(conn, ",") {
			out.Header.Del(strings.TrimSpace(name))
		}
	}
	// Let the transport negotiate compression so bodies arrive decoded.
	out.Header.Del("Accept-Encoding")
	if out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", c.userAgent)
	}
	out.ContentLength = req.ContentLength
	return out, nil
}
