package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// DefaultTickInterval is the fixed pause between recurrence sweeps.
// Ticks are not aligned to wall-clock boundaries and the interval does not
// back off on errors; a failed sweep is simply retried on the next tick.
const DefaultTickInterval = 300 * time.Second

// SeriesSource lists the series eligible for evaluation. Eligibility
// (active series, active subscription) is resolved in the query, not here.
type SeriesSource interface {
	ListDue(ctx context.Context) ([]types.DueSeries, error)
}

// RenderDispatcher hands an admitted video off for production. The call
// must not block the sweep; delivery is best effort.
type RenderDispatcher interface {
	Enqueue(payload types.RenderPayload)
}

// Recurrence drives the periodic sweep that admits due series and triggers
// video production for them. One Recurrence runs per process.
type Recurrence struct {
	series     SeriesSource
	gate       *Gate
	dispatcher RenderDispatcher
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// RecurrenceConfig holds the configuration for creating a Recurrence.
type RecurrenceConfig struct {
	Series     SeriesSource
	Gate       *Gate
	Dispatcher RenderDispatcher
	// TickInterval defaults to DefaultTickInterval when zero.
	TickInterval time.Duration
	Logger       *slog.Logger
	// Now overrides the clock in tests. Defaults to time.Now in UTC.
	Now func() time.Time
}

// NewRecurrence creates a new recurrence scheduler.
func NewRecurrence(cfg RecurrenceConfig) *Recurrence {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Recurrence{
		series:     cfg.Series,
		gate:       cfg.Gate,
		dispatcher: cfg.Dispatcher,
		interval:   interval,
		logger:     logger,
		now:        now,
	}
}

// Run executes sweeps until the context is cancelled. It performs one sweep
// immediately on startup so a restart does not wait a full interval before
// overdue series are picked up.
func (r *Recurrence) Run(ctx context.Context) {
	r.logger.InfoContext(ctx, "recurrence scheduler starting",
		"tick_interval", r.interval.String(),
	)

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "recurrence scheduler stopping")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep runs one tick and contains any panic so the loop survives.
func (r *Recurrence) sweep(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "recurrence sweep panicked",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()

	admitted, evaluated, err := r.Sweep(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "recurrence sweep failed",
			"error", err,
		)
		return
	}

	r.logger.InfoContext(ctx, "recurrence sweep complete",
		"evaluated", evaluated,
		"admitted", admitted,
	)
}

// Sweep evaluates every eligible series once and triggers production for
// each admitted one. It returns the number of series admitted and the
// number evaluated.
//
// Failures are isolated per series: an evaluation or admission error for
// one series is logged and the sweep moves on to the next. Only a failure
// to list the series at all aborts the sweep. Because admission is an
// atomic conditional insert, overlapping sweeps (or a concurrent manual
// trigger) never produce two pending videos for the same series.
func (r *Recurrence) Sweep(ctx context.Context) (int, int, error) {
	now := r.now()

	candidates, err := r.series.ListDue(ctx)
	if err != nil {
		return 0, 0, err
	}

	admitted := 0
	for _, candidate := range candidates {
		decision, err := r.gate.Evaluate(ctx, candidate, now)
		if err != nil {
			r.logger.ErrorContext(ctx, "series evaluation failed",
				"series_id", candidate.ID,
				"error", err,
			)
			continue
		}

		if decision.Outcome != OutcomeAdmitted {
			continue
		}

		payload := types.NewRenderPayload(&candidate.Series, decision.Video.ID)
		r.dispatcher.Enqueue(payload)
		admitted++

		r.logger.InfoContext(ctx, "series admitted for production",
			"series_id", candidate.ID,
			"video_id", decision.Video.ID,
			"next_due", decision.NextDue.Format(time.RFC3339),
		)
	}

	return admitted, len(candidates), nil
}
