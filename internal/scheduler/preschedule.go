package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// VideoCreator inserts a future pending video unconditionally. Unlike the
// admission gate, pre-scheduling intentionally stacks several pending
// videos per series.
type VideoCreator interface {
	Create(ctx context.Context, video *types.Video) error
}

// EntryCreator inserts a single schedule entry. Rows are written one at a
// time, outside any transaction, so a mid-batch failure keeps the rows
// already committed.
type EntryCreator interface {
	Create(ctx context.Context, entry *types.ScheduleEntry) error
}

// PreScheduler lays out the first week of delivery slots for a series on a
// tier with guaranteed delivery. For a series with cadence N it creates N
// videos and N schedule entries at now + k*period for k = 1..N.
type PreScheduler struct {
	videos  VideoCreator
	entries EntryCreator
	logger  *slog.Logger
}

// PreSchedulerConfig holds the configuration for creating a PreScheduler.
type PreSchedulerConfig struct {
	Videos  VideoCreator
	Entries EntryCreator
	Logger  *slog.Logger
}

// NewPreScheduler creates a new batch pre-scheduler.
func NewPreScheduler(cfg PreSchedulerConfig) *PreScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PreScheduler{
		videos:  cfg.Videos,
		entries: cfg.Entries,
		logger:  logger,
	}
}

// Preschedule creates the batch of future videos and their schedule entries.
// It returns the entries that were committed. On a mid-batch failure it
// stops and returns the error alongside the entries created so far; the
// caller decides whether a partial batch is acceptable.
//
// Slots are spaced one production period apart starting one period after
// now, so the first pre-scheduled video lands exactly when the recurrence
// loop would next consider the series due.
func (p *PreScheduler) Preschedule(ctx context.Context, series *types.Series, now time.Time) ([]types.ScheduleEntry, error) {
	if series.Cadence <= 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidCadence,
			fmt.Sprintf("series %s has non-positive cadence %d", series.ID, series.Cadence),
			nil,
		)
	}

	period := PeriodFor(series.Cadence)
	platform := platformFor(series.Params.Destination)

	created := make([]types.ScheduleEntry, 0, series.Cadence)
	for k := 1; k <= series.Cadence; k++ {
		video := &types.Video{
			ID:        uuid.NewString(),
			SeriesID:  series.ID,
			Status:    types.VideoPending,
			CreatedAt: now,
		}
		if err := p.videos.Create(ctx, video); err != nil {
			return created, fmt.Errorf("creating video %d of %d for series %s: %w", k, series.Cadence, series.ID, err)
		}

		entry := &types.ScheduleEntry{
			ID:          uuid.NewString(),
			SeriesID:    series.ID,
			VideoID:     video.ID,
			ScheduledAt: now.Add(time.Duration(k) * period),
			Platform:    platform,
			Status:      types.ScheduleScheduled,
		}
		if err := p.entries.Create(ctx, entry); err != nil {
			return created, fmt.Errorf("creating schedule entry %d of %d for series %s: %w", k, series.Cadence, series.ID, err)
		}

		created = append(created, *entry)
	}

	p.logger.InfoContext(ctx, "series pre-scheduled",
		"series_id", series.ID,
		"entries", len(created),
		"period", period.String(),
	)

	return created, nil
}

// platformFor maps a series delivery destination to the platform tag stamped
// on schedule entries. Unknown destinations fall back to TikTok, the primary
// publishing target.
func platformFor(destination string) types.Platform {
	switch destination {
	case string(types.PlatformEmail):
		return types.PlatformEmail
	case string(types.PlatformYouTube):
		return types.PlatformYouTube
	default:
		return types.PlatformTikTok
	}
}
