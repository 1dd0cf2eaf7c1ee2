// Package dispatch delivers render triggers to the video generation
// backend. Delivery is fire and forget: the caller hands off a payload and
// immediately moves on, and the backend is trusted to have accepted any
// request that did not fail outright before the client timeout.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

const (
	// DefaultTimeout bounds each trigger call. The render backend takes
	// minutes to produce a video, so a hit timeout means the request was
	// handed over, not that it failed.
	DefaultTimeout = 1 * time.Second

	// DefaultWorkers caps concurrent trigger calls.
	DefaultWorkers = 10
)

// Notifier delivers the optional user-facing side effect after a trigger.
// Failures are contained in the dispatcher and never affect the trigger
// outcome.
type Notifier interface {
	NotifyTriggered(ctx context.Context, payload types.RenderPayload) error
}

// Dispatcher posts render payloads to the backend through a bounded worker
// pool. Enqueue never blocks and never reports failure to the caller; every
// outcome is resolved by logging. Nothing is rolled back on failure, the
// pending video stays put and a later trigger can retry it.
type Dispatcher struct {
	endpoint string
	client   *http.Client
	sem      *semaphore.Weighted
	notifier Notifier
	logger   *slog.Logger

	wg sync.WaitGroup
}

// Config holds the configuration for creating a Dispatcher.
type Config struct {
	// Endpoint is the render backend URL, called with POST.
	Endpoint string
	// Timeout defaults to DefaultTimeout when zero.
	Timeout time.Duration
	// Workers defaults to DefaultWorkers when zero.
	Workers int
	// Notifier is optional; when set, email-destined payloads trigger a
	// notification after the render call resolves.
	Notifier Notifier
	Logger   *slog.Logger
	// HTTPClient overrides the default client in tests. Its Timeout is
	// forced to the configured timeout.
	HTTPClient *http.Client
}

// New creates a new Dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	client.Timeout = timeout

	return &Dispatcher{
		endpoint: cfg.Endpoint,
		client:   client,
		sem:      semaphore.NewWeighted(int64(workers)),
		notifier: cfg.Notifier,
		logger:   logger,
	}
}

// Enqueue hands a payload to the worker pool and returns immediately. When
// all workers are busy the work queues behind the semaphore; the caller is
// never held up either way.
func (d *Dispatcher) Enqueue(payload types.RenderPayload) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// Background context: a trigger in flight outlives the HTTP
		// request (or sweep) that spawned it.
		ctx := context.Background()
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer d.sem.Release(1)

		d.deliver(ctx, payload)
	}()
}

// Wait blocks until all enqueued work has resolved. Used by tests; process
// shutdown deliberately does not wait, losing in-flight triggers is
// accepted because the pending video rows survive and get retriggered.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// deliver runs the render trigger and the optional notification.
func (d *Dispatcher) deliver(ctx context.Context, payload types.RenderPayload) {
	d.trigger(ctx, payload)

	if d.notifier != nil && payload.Destination == string(types.PlatformEmail) {
		nctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := d.notifier.NotifyTriggered(nctx, payload); err != nil {
			d.logger.ErrorContext(ctx, "trigger notification failed",
				"series_id", payload.SeriesID,
				"video_id", payload.VideoID,
				"error", err,
			)
		}
	}
}

// trigger posts the payload to the render backend and classifies the
// outcome. There are three: acknowledged (a response came back before the
// timeout), assumed accepted (the call timed out, which counts as success),
// and failed (anything else, logged and swallowed).
func (d *Dispatcher) trigger(ctx context.Context, payload types.RenderPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.ErrorContext(ctx, "render payload marshal failed",
			"series_id", payload.SeriesID,
			"video_id", payload.VideoID,
			"error", err,
		)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		d.logger.ErrorContext(ctx, "render request build failed",
			"endpoint", d.endpoint,
			"error", err,
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			d.logger.InfoContext(ctx, "render trigger assumed accepted",
				"series_id", payload.SeriesID,
				"video_id", payload.VideoID,
				"timeout", d.client.Timeout.String(),
			)
			return
		}
		d.logger.ErrorContext(ctx, "render trigger failed",
			"series_id", payload.SeriesID,
			"video_id", payload.VideoID,
			"error", err,
		)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		d.logger.ErrorContext(ctx, "render trigger rejected",
			"series_id", payload.SeriesID,
			"video_id", payload.VideoID,
			"status", resp.StatusCode,
		)
		return
	}

	d.logger.InfoContext(ctx, "render trigger acknowledged",
		"series_id", payload.SeriesID,
		"video_id", payload.VideoID,
		"status", resp.StatusCode,
	)
}

// isTimeout reports whether an http.Client error was a client-side timeout
// rather than a transport failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
