// Package clients provides the HTTP plumbing shared by REST sources: an
// HTTP/2 capable client with rate limiting, bearer auth and per request
// metrics.
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/shayan-nathan/airbyte/pkg/config"
)

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`

	EnableHTTP2 bool `json:"enable_http2"`

	DialTimeout           time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout"`
	KeepAlive             time.Duration `json:"keep_alive"`

	// RateLimit is requests per second; 0 disables limiting
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// BearerToken, when set, is attached to every request through an oauth2 transport
	BearerToken string `json:"-"`
	UserAgent   string `json:"user_agent"`
}

// DefaultHTTPConfig returns defaults for a single-host REST API client.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		RequestTimeout:        60 * time.Second,
		KeepAlive:             30 * time.Second,
		RateLimit:             3,
		RateBurst:             3,
		UserAgent:             "airbyte-notion-go/1.0",
	}
}

// HTTPConfigFromBase derives client settings from a connector BaseConfig.
func HTTPConfigFromBase(bc *config.BaseConfig) *HTTPConfig {
	cfg := DefaultHTTPConfig()
	if bc.Timeouts.Request > 0 {
		cfg.RequestTimeout = bc.Timeouts.Request
	}
	if bc.Timeouts.Connection > 0 {
		cfg.DialTimeout = bc.Timeouts.Connection
	}
	if bc.Timeouts.Idle > 0 {
		cfg.IdleConnTimeout = bc.Timeouts.Idle
	}
	if bc.Timeouts.KeepAlive > 0 {
		cfg.KeepAlive = bc.Timeouts.KeepAlive
	}
	cfg.RateLimit = 0
	if bc.Reliability.IsRateLimited() {
		cfg.RateLimit = float64(bc.Reliability.RateLimitPerSec)
		cfg.RateBurst = bc.Reliability.Burst()
	}
	return cfg
}

// RequestObserver is notified after every round trip. status is 0 when no
// response was received.
type RequestObserver func(req *http.Request, status int, elapsed time.Duration)

// HTTPClient wraps *http.Client with rate limiting and request accounting.
type HTTPClient struct {
	config      *HTTPConfig
	logger      *zap.Logger
	httpClient  *http.Client
	transport   *http.Transport
	rateLimiter RateLimiter
	observer    RequestObserver

	totalRequests  int64
	failedRequests int64
}

// HTTPStats is a snapshot of client counters.
type HTTPStats struct {
	TotalRequests  int64            `json:"total_requests"`
	FailedRequests int64            `json:"failed_requests"`
	RateLimiter    RateLimiterStats `json:"rate_limiter"`
}

// NewHTTPClient builds a client from cfg. A nil cfg uses DefaultHTTPConfig.
func NewHTTPClient(cfg *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &HTTPClient{
		config: cfg,
		logger: logger.With(zap.String("component", "http_client")),
	}

	c.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(c.transport); err != nil {
			c.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	var rt http.RoundTripper = c.transport
	if cfg.BearerToken != "" {
		rt = NewBearerTransport(cfg.BearerToken, rt)
	}

	c.httpClient = &http.Client{
		Transport: rt,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.rateLimiter = NewRateLimiter(cfg.RateLimit, burst)
	}

	return c
}

// SetObserver installs a hook called after every request.
func (c *HTTPClient) SetObserver(o RequestObserver) {
	c.observer = o
}

// NewRequest builds a request carrying the client's default headers.
func (c *HTTPClient) NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do waits for the rate limiter and performs req.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			atomic.AddInt64(&c.failedRequests, 1)
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	atomic.AddInt64(&c.totalRequests, 1)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if c.observer != nil {
		c.observer(req, status, elapsed)
	}

	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed))
	return resp, nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	stats := HTTPStats{
		TotalRequests:  atomic.LoadInt64(&c.totalRequests),
		FailedRequests: atomic.LoadInt64(&c.failedRequests),
	}
	if c.rateLimiter != nil {
		stats.RateLimiter = c.rateLimiter.GetStats()
	}
	return stats
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}
