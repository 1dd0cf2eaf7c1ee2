// Package scheduler implements the background services that keep video
// production flowing for active series: the recurrence loop that decides
// when each series is due for its next video, the batch pre-scheduler that
// lays out upcoming delivery slots for paid tiers, and the social token
// refresher.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// Week is the reference interval that a series cadence divides. A series
// with cadence N produces one video every Week/N.
const Week = 7 * 24 * time.Hour

// PeriodFor returns the production interval for a weekly cadence.
// The division is real-valued: cadence 3 yields 2 days 8 hours, not 2 days.
func PeriodFor(cadence int) time.Duration {
	return time.Duration(float64(Week) / float64(cadence))
}

// Outcome is the result of an admission check for a single series.
type Outcome string

const (
	// OutcomeAdmitted means a new pending video was created and production
	// should be triggered now.
	OutcomeAdmitted Outcome = "admitted"
	// OutcomeWaiting means the series is not due yet, or already has a
	// video in flight.
	OutcomeWaiting Outcome = "waiting"
)

// Decision describes what the gate decided for one series on one evaluation.
type Decision struct {
	Outcome Outcome
	// NextDue is when the series becomes due again. Zero when the series
	// was held back because a pending video already exists; in that case
	// the next tick re-evaluates from the new video's created_at.
	NextDue time.Time
	// Video is the freshly created pending video. Set only when admitted.
	Video *types.Video
}

// AdmissionStore is the single write the gate performs. The insert must be
// conditional on no other pending video existing for the series, evaluated
// atomically by the database, so that concurrent evaluations of the same
// series admit at most one of them.
type AdmissionStore interface {
	CreatePendingIfNone(ctx context.Context, video *types.Video) (bool, error)
}

// Gate decides whether a series may start producing its next video.
// It is safe for concurrent use; all shared state lives in the store.
type Gate struct {
	videos AdmissionStore
	logger *slog.Logger
}

// GateConfig holds the configuration for creating a Gate.
type GateConfig struct {
	Videos AdmissionStore
	Logger *slog.Logger
}

// NewGate creates a new admission gate.
func NewGate(cfg GateConfig) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		videos: cfg.Videos,
		logger: logger,
	}
}

// Evaluate checks a single series against its cadence at the given instant.
//
// A series is due when now >= last_video_at + PeriodFor(cadence), where
// last_video_at falls back to the series creation time when no video exists
// yet. A due series is admitted by inserting a pending video through the
// conditional insert; if another evaluation won that insert first, the
// series waits instead. Evaluate never creates more than one video per call
// and never deletes anything, so re-running it with the same inputs is
// harmless.
func (g *Gate) Evaluate(ctx context.Context, candidate types.DueSeries, now time.Time) (Decision, error) {
	if candidate.Cadence <= 0 {
		return Decision{}, types.NewAppError(
			types.ErrCodeValidationInvalidCadence,
			fmt.Sprintf("series %s has non-positive cadence %d", candidate.ID, candidate.Cadence),
			nil,
		)
	}

	period := PeriodFor(candidate.Cadence)
	due := candidate.LastVideoAt.Add(period)

	if now.Before(due) {
		return Decision{Outcome: OutcomeWaiting, NextDue: due}, nil
	}

	video := &types.Video{
		ID:        uuid.NewString(),
		SeriesID:  candidate.ID,
		Status:    types.VideoPending,
		CreatedAt: now,
	}

	inserted, err := g.videos.CreatePendingIfNone(ctx, video)
	if err != nil {
		return Decision{}, fmt.Errorf("admitting series %s: %w", candidate.ID, err)
	}

	if !inserted {
		// Another pending video is already in flight for this series.
		g.logger.DebugContext(ctx, "series held back, pending video exists",
			"series_id", candidate.ID,
		)
		return Decision{Outcome: OutcomeWaiting}, nil
	}

	return Decision{Outcome: OutcomeAdmitted, NextDue: due.Add(period), Video: video}, nil
}
