// Package fetch provides the archive HTTP client: one call per page, with
// status classification, request metrics, and an optional Redis page cache.
// Retry policy lives with the caller; this client reports what happened and
// never loops.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/z3c0/metalharvest/pkg/cache"
)

// Prometheus metrics for page fetch operations.
var (
	pageRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_page_requests_total",
		Help: "Total page requests by segment and HTTP status",
	}, []string{"segment", "status"})

	pageRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvest_page_request_duration_seconds",
		Help:    "Page request duration in seconds by segment",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"segment"})

	anomalousStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_anomalous_status_total",
		Help: "Responses outside the accepted status set by segment",
	}, []string{"segment"})
)

// Config holds the fetch client configuration.
type Config struct {
	// UserAgent header sent with every request.
	UserAgent string

	// Headers are additional request headers.
	Headers map[string]string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// BusyStatus is the status code treated as transient server overload.
	BusyStatus int

	// Accepted are the status codes expected during normal operation.
	// Anything that is neither accepted nor busy is logged as an anomaly.
	Accepted []int

	// Cache is an optional page-response cache. Nil disables caching.
	Cache *cache.Manager
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:  userAgent,
		Timeout:    30 * time.Second,
		BusyStatus: 520,
		Accepted:   []int{http.StatusOK, http.StatusForbidden},
	}
}

// Client fetches archive pages.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a fetch client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BusyStatus == 0 {
		cfg.BusyStatus = 520
	}
	if len(cfg.Accepted) == 0 {
		cfg.Accepted = []int{http.StatusOK, http.StatusForbidden}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "fetch").Logger(),
	}, nil
}

// Fetch retrieves one page. key identifies the page for caching and metrics;
// url is the fully built endpoint. The body is returned for any status code,
// since even anomalous responses may still decode.
func (c *Client) Fetch(ctx context.Context, key cache.Key, url string) (int, []byte, error) {
	start := time.Now()
	defer func() {
		pageRequestDuration.WithLabelValues(key.Segment).Observe(time.Since(start).Seconds())
	}()

	if c.config.Cache != nil {
		entry, err := c.config.Cache.Get(ctx, key)
		if err == nil {
			c.logger.Debug().
				Str("segment", key.Segment).
				Int("offset", key.Offset).
				Msg("Page served from cache")
			pageRequestsTotal.WithLabelValues(key.Segment, "cached").Inc()
			return entry.StatusCode, entry.Body, nil
		}
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("segment", key.Segment).Msg("Cache get error")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	for name, value := range c.config.Headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", url).Msg("HTTP request failed")
		pageRequestsTotal.WithLabelValues(key.Segment, "network_error").Inc()
		return 0, nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		pageRequestsTotal.WithLabelValues(key.Segment, "network_error").Inc()
		return 0, nil, fmt.Errorf("read page body: %w", err)
	}

	pageRequestsTotal.WithLabelValues(key.Segment, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	if !c.IsAccepted(resp.StatusCode) && !c.IsBusy(resp.StatusCode) {
		anomalousStatusTotal.WithLabelValues(key.Segment).Inc()
	}

	if c.config.Cache != nil && resp.StatusCode == http.StatusOK {
		entry := &cache.Entry{
			StatusCode: resp.StatusCode,
			Body:       body,
			FetchedAt:  time.Now(),
		}
		if err := c.config.Cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Str("segment", key.Segment).Msg("Failed to cache page")
		}
	}

	return resp.StatusCode, body, nil
}

// IsBusy reports whether the status signals transient server overload.
func (c *Client) IsBusy(status int) bool {
	return status == c.config.BusyStatus
}

// IsAccepted reports whether the status is part of normal operation.
func (c *Client) IsAccepted(status int) bool {
	for _, code := range c.config.Accepted {
		if status == code {
			return true
		}
	}
	return false
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
