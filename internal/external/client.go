// Package external holds the clients for third-party APIs: the TikTok OAuth
// endpoint used for token refresh and the Stripe webhook verifier. Outbound
// calls that tolerate retries go through BaseClient, which layers a circuit
// breaker and backoff on top of the plain http.Client. The render trigger is
// the deliberate exception; its fire-and-forget semantics live in the
// dispatch package.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// RetryPolicy configures retry behavior for the BaseClient.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the defaults used for OAuth calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// BaseClient wraps an *http.Client with a circuit breaker and retry on
// 429/5xx. Provider clients embed it to inherit that behavior.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration)
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep between retries. Intended for tests.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// NewBaseClient creates a BaseClient. The breaker opens after five
// consecutive failures and half-opens after thirty seconds.
func NewBaseClient(httpClient *http.Client, breakerName string, retryPolicy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	bc := &BaseClient{
		client:      httpClient,
		breaker:     cb,
		retryPolicy: retryPolicy,
		userAgent:   "buzzflix-droplet/1.0",
		sleepFn:     time.Sleep,
	}

	for _, opt := range opts {
		opt(bc)
	}

	return bc
}

// Do executes the request through the breaker, retrying 429 and 5xx
// responses with jittered exponential backoff and honoring Retry-After
// seconds. The caller owns the response body on success. Exhausted retries
// and an open breaker come back as *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-Request-Id", traceID)
	}
	req.Header.Set("User-Agent", c.userAgent)

	// Snapshot the body so it can be replayed on retries.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "reading request body for retry support", err)
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}

		if attempt < maxAttempts-1 {
			c.sleepFn(c.backoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}

	return nil, c.mapError(lastResp, lastErr)
}

// backoff picks the wait before the next attempt: Retry-After seconds when
// present, otherwise exponential backoff with full jitter clamped to
// [MinWait, MaxWait].
func (c *BaseClient) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				wait := time.Duration(seconds) * time.Second
				if wait > c.retryPolicy.MaxWait {
					wait = c.retryPolicy.MaxWait
				}
				return wait
			}
		}
	}

	base := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	if max := float64(c.retryPolicy.MaxWait); base > max {
		base = max
	}
	min := float64(c.retryPolicy.MinWait)
	if base <= min {
		return c.retryPolicy.MinWait
	}
	return time.Duration(min + rand.Float64()*(base-min))
}

func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimit, "circuit breaker open, upstream unavailable", err)
	}

	if resp != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return types.NewAppError(types.ErrCodeUpstreamRateLimit, "upstream rate limit exceeded", err)
		}
		if resp.StatusCode >= 500 {
			return types.NewAppError(types.ErrCodeUpstreamOAuth, fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
		}
	}

	return types.NewAppError(types.ErrCodeUpstreamOAuth, "upstream request failed", err)
}
