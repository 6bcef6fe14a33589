// Package fetch implements the retrying HTTP client used for both index and
// document downloads.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/jfandino/boe-harvester/internal/metrics"
)

// Outcome classifies the result of one logical fetch.
type Outcome int

const (
	// OutcomeSuccess means a 200 response with an XML-shaped body.
	OutcomeSuccess Outcome = iota
	// OutcomeNotFound means the resource legitimately does not exist, e.g.
	// no gazette was published on the requested date. Never retried.
	OutcomeNotFound
	// OutcomeExhausted means every attempt failed transiently. The caller
	// must treat this as a skippable condition, not a fatal error.
	OutcomeExhausted
)

// Result carries the outcome and, on success, the response body.
type Result struct {
	Outcome Outcome
	Body    []byte
}

// Config controls retry and pacing behavior.
type Config struct {
	// Cooldown is slept before the first attempt of every fetch. The CLI
	// zeroes it when the workload is parallelized, since a shared cooldown
	// would serialize the pool.
	Cooldown time.Duration
	// MaxRetries bounds additional attempts after the first; a fetch makes
	// at most MaxRetries+1 attempts.
	MaxRetries int
	// RetryDelay is slept before every attempt after the first. The policy
	// is intentionally a fixed delay, not exponential backoff.
	RetryDelay time.Duration
	// Timeout applies per attempt.
	Timeout time.Duration
	// UserAgent is sent on every request.
	UserAgent string
	// Clock drives the sleeps; defaults to the wall clock.
	Clock clock.Clock
}

// Client issues retrying GETs against the gazette endpoints. The underlying
// http.Client reuses connections across fetches and is owned by this value,
// never shared through package state.
type Client struct {
	httpClient *http.Client
	cfg        Config
	clk        clock.Clock
	logger     *zap.Logger
}

// New builds a Client from cfg.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		clk:        cfg.Clock,
		logger:     logger,
	}
}

// Fetch performs one logical GET for the named resource. Transient failures
// (timeouts, connection errors, unexpected statuses, non-XML 200 bodies) are
// retried up to the configured bound with a fixed delay; a 404 short-circuits
// to NotFound on the spot.
func (c *Client) Fetch(ctx context.Context, name, url string) Result {
	if err := c.sleep(ctx, c.cfg.Cooldown); err != nil {
		return Result{Outcome: OutcomeExhausted}
	}

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.FetchRetries.Inc()
			if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
				return Result{Outcome: OutcomeExhausted}
			}
		}
		metrics.FetchAttempts.Inc()

		body, outcome, err := c.attempt(ctx, url)
		switch {
		case err != nil:
			c.logger.Warn("request failed",
				zap.String("resource", name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		case outcome == OutcomeSuccess:
			metrics.FetchSuccesses.Inc()
			return Result{Outcome: OutcomeSuccess, Body: body}
		case outcome == OutcomeNotFound:
			metrics.FetchNotFound.Inc()
			c.logger.Info("no data available", zap.String("resource", name))
			return Result{Outcome: OutcomeNotFound}
		}

		if ctx.Err() != nil {
			return Result{Outcome: OutcomeExhausted}
		}
	}

	metrics.FetchExhausted.Inc()
	c.logger.Error("retries exhausted",
		zap.String("resource", name),
		zap.Int("max_retries", c.cfg.MaxRetries))
	return Result{Outcome: OutcomeExhausted}
}

// attempt performs a single GET. A nil error with a non-Success outcome means
// the attempt completed but must be classified; a non-nil error means the
// attempt failed transiently and the caller decides whether to retry.
func (c *Client) attempt(ctx context.Context, url string) ([]byte, Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, OutcomeExhausted, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, OutcomeExhausted, err
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, OutcomeExhausted, fmt.Errorf("read body: %w", err)
		}
		if !looksLikeXML(body) {
			// Rate limiting sometimes arrives disguised as a 200 with
			// an HTML error page; treat it as retryable.
			return nil, OutcomeExhausted, fmt.Errorf("status 200 with non-XML body (%d bytes)", len(body))
		}
		return body, OutcomeSuccess, nil
	case http.StatusNotFound:
		return nil, OutcomeNotFound, nil
	default:
		return nil, OutcomeExhausted, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clk.After(d):
		return nil
	}
}

func looksLikeXML(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n\xef\xbb\xbf")
	return len(trimmed) > 0 && trimmed[0] == '<'
}
