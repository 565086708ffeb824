// Package directory fetches per-application statistics from the Discord
// application directory and classifies each response into a watch.Outcome.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NoahCxrest/discord-watch-cron/pkg/watch"
)

// Prometheus metrics for directory requests.
var (
	directoryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_requests_total",
		Help: "Total directory requests by classified outcome",
	}, []string{"outcome"})

	directoryRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "directory_request_duration_seconds",
		Help:    "Directory request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)

// locale is the fixed query parameter sent with every directory request.
const locale = "en-US"

// maxResponseBodySize caps how much of a directory response is read.
const maxResponseBodySize = 1 << 20 // 1MB

// Connection pooling limits. Every request targets the same host, so the
// per-host idle pool is what matters for batch fan-out reuse.
const (
	maxIdleConns        = 100
	maxIdleConnsPerHost = 16
	idleConnTimeout     = 90 * time.Second
)

// Config holds the directory client configuration.
type Config struct {
	// BaseURL is the directory endpoint root, for example
	// "https://discord.com/api/v9/application-directory-static/applications".
	BaseURL string

	// UserAgent identifies this poller to the remote service.
	UserAgent string

	// Timeout bounds one request attempt.
	Timeout time.Duration
}

// DefaultConfig returns a directory client configuration with the
// production request timeout.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   10 * time.Second,
	}
}

// Client performs single fetch attempts against the application directory.
// It implements watch.Fetcher and never retries on its own.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a directory client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig("", "").Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := log.With().Str("component", "directory").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConnsPerHost,
				IdleConnTimeout:     idleConnTimeout,
			},
		},
		config: cfg,
		logger: logger,
	}, nil
}

// StatusError reports an HTTP status that prevented reading a statistic.
type StatusError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("directory returned %s", e.Status)
}

// Fetch performs one GET {base_url}/{app_id}?locale=en-US attempt and
// classifies the response:
//
//	429                          -> RateLimited, with the Retry-After hint
//	                                when it parses as integer seconds
//	other non-2xx, network error -> Transient
//	2xx with a usable count      -> Value (directory_entry.guild_count wins
//	                                over guild.approximate_member_count)
//	2xx without a usable count   -> NoValue
//
// A 2xx body that fails to decode counts as Transient.
func (c *Client) Fetch(ctx context.Context, item watch.Item) watch.Outcome {
	start := time.Now()
	outcome := c.fetch(ctx, item)

	directoryRequestDuration.Observe(time.Since(start).Seconds())
	directoryRequestsTotal.WithLabelValues(string(outcome.Kind)).Inc()

	c.logger.Debug().
		Str("app_id", item.AppID).
		Str("outcome", outcome.String()).
		Dur("duration", time.Since(start)).
		Msg("Directory request finished")

	return outcome
}

func (c *Client) fetch(ctx context.Context, item watch.Item) watch.Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/%s?locale=%s", c.config.BaseURL, url.PathEscape(item.AppID), locale)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return watch.Transient(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return watch.Transient(fmt.Errorf("directory request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimitOutcome(resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return watch.Transient(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return watch.Transient(fmt.Errorf("read body: %w", err))
	}

	var stats statsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		return watch.Transient(fmt.Errorf("decode body: %w", err))
	}

	// Priority matters: the directory entry is authoritative when both
	// shapes carry a number.
	if count, ok := usableCount(stats.DirectoryEntry.GuildCount); ok {
		return watch.Value(count)
	}
	if count, ok := usableCount(stats.Guild.ApproximateMemberCount); ok {
		return watch.Value(count)
	}
	return watch.NoValue()
}

// statsResponse covers the two JSON shapes the directory serves. Pointer
// fields distinguish absent or null values from zero counts.
type statsResponse struct {
	DirectoryEntry struct {
		GuildCount *float64 `json:"guild_count"`
	} `json:"directory_entry"`
	Guild struct {
		ApproximateMemberCount *float64 `json:"approximate_member_count"`
	} `json:"guild"`
}

// usableCount reports whether f is a well-formed non-negative count.
func usableCount(f *float64) (int64, bool) {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) || *f < 0 {
		return 0, false
	}
	return int64(*f), true
}

// rateLimitOutcome parses the Retry-After header as integer seconds. An
// absent or unparseable header yields a hint-free rate limit signal.
func rateLimitOutcome(retryAfter string) watch.Outcome {
	retryAfter = strings.TrimSpace(retryAfter)
	if retryAfter == "" {
		return watch.RateLimited()
	}
	seconds, err := strconv.Atoi(retryAfter)
	if err != nil || seconds < 0 {
		return watch.RateLimited()
	}
	return watch.RateLimitedFor(time.Duration(seconds) * time.Second)
}
