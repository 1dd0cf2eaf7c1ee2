package db

import (
	"context"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// ScheduleRepository provides data access for the schedule_entries table.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a new ScheduleRepository backed by the given
// database connection (pool or transaction).
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a schedule entry. Entries are written one at a time by the
// pre-scheduler; there is deliberately no batch transaction, so entries
// committed before a mid-batch failure stay committed.
func (r *ScheduleRepository) Create(ctx context.Context, entry *types.ScheduleEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO schedule_entries (id, series_id, video_id, scheduled_at, platform, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID,
		entry.SeriesID,
		entry.VideoID,
		entry.ScheduledAt,
		entry.Platform,
		entry.Status,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create schedule entry", err)
	}
	return nil
}

// CountBySeries returns the number of schedule entries recorded for a series.
// A non-zero count means the series has already been pre-scheduled.
func (r *ScheduleRepository) CountBySeries(ctx context.Context, seriesID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM schedule_entries WHERE series_id = $1`,
		seriesID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count schedule entries", err)
	}
	return count, nil
}
