package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tiburcios-stuff/bling-adapter/internal/rate"
)

// Policy is a bounded retry policy. Wait before attempt n+1 is BaseDelay × n,
// so waits increase linearly. Retryable decides from the response status
// whether another attempt is worth making; transport errors are never retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(status int) bool
}

// NoRetry is the single-attempt policy used for calls that must not be
// repeated, such as authorization-code exchanges.
func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

// Result carries the terminal response of an execution. Status and Body are
// returned even for non-2xx responses so callers can build typed errors with
// full diagnostics.
type Result struct {
	Status int
	Body   []byte
}

// Executor handles rate-limited, policy-retried HTTP execution.
type Executor struct {
	logger  *zap.Logger
	rateMgr *rate.Manager
	http    *http.Client
	tag     string

	// sleep is swappable in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Executor. rateMgr may be nil to disable rate limiting.
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, tag string) *Executor {
	return &Executor{
		logger:  logger,
		rateMgr: rateMgr,
		http:    httpClient,
		tag:     tag,
		sleep:   sleepCtx,
	}
}

// SetHTTPClient swaps the underlying transport. Intended for tests.
func (e *Executor) SetHTTPClient(c *http.Client) { e.http = c }

// SetSleep swaps the backoff wait primitive. Intended for tests.
func (e *Executor) SetSleep(fn func(ctx context.Context, d time.Duration) error) { e.sleep = fn }

// Do executes requests produced by build under pol. build is invoked once per
// attempt so request bodies are re-sent in full. rateLimitKey scopes the rate
// limiter per account.
func (e *Executor) Do(ctx context.Context, rateLimitKey string, pol Policy, build func() (*http.Request, error)) (*Result, error) {
	attempts := pol.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		if e.rateMgr != nil {
			if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			e.logger.Warn(e.tag+".http_failed",
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			return nil, err
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			e.logger.Warn(e.tag+".read_body_failed",
				zap.String("url", req.URL.String()),
				zap.Error(readErr))
			return nil, readErr
		}

		if pol.Retryable != nil && pol.Retryable(resp.StatusCode) && attempt < attempts {
			wait := pol.BaseDelay * time.Duration(attempt)
			e.logger.Warn(e.tag+".retrying",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait))
			if err := e.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		e.logger.Debug(e.tag+".http_done",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", time.Since(start)))

		return &Result{Status: resp.StatusCode, Body: body}, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
