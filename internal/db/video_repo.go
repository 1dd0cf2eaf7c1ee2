package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// VideoRepository provides data access for the videos table. Its central
// operation is CreatePendingIfNone, the atomic admission step that enforces
// the at-most-one-pending-video-per-series invariant.
type VideoRepository struct {
	db DBTX
}

// NewVideoRepository creates a new VideoRepository backed by the given
// database connection (pool or transaction).
func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// CreatePendingIfNone inserts a new pending video for the series unless a
// pending video already exists. The check and the insert are a single SQL
// statement, so two concurrent admission attempts (scheduler tick racing the
// inbound endpoint, or two ticks overlapping) can never both succeed.
//
// SQL pattern:
//
//	INSERT INTO videos (id, series_id, status, created_at)
//	SELECT $1, $2, 'pending', $3
//	WHERE NOT EXISTS (
//	  SELECT 1 FROM videos WHERE series_id = $2 AND status = 'pending'
//	)
//
// Returns (true, nil) when the row was inserted, (false, nil) when a pending
// video already exists for the series.
func (r *VideoRepository) CreatePendingIfNone(ctx context.Context, video *types.Video) (bool, error) {
	if video.CreatedAt.IsZero() {
		video.CreatedAt = time.Now().UTC()
	}
	video.Status = types.VideoPending

	tag, err := r.db.Exec(ctx,
		`INSERT INTO videos (id, series_id, status, created_at)
		 SELECT $1, $2, 'pending', $3
		 WHERE NOT EXISTS (
		   SELECT 1 FROM videos WHERE series_id = $2 AND status = 'pending'
		 )`,
		video.ID,
		video.SeriesID,
		video.CreatedAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to admit video", err)
	}

	// RowsAffected is 1 when the conditional insert won; 0 when another
	// pending video holds the slot.
	return tag.RowsAffected() > 0, nil
}

// Create inserts a video row unconditionally. Used by the pre-scheduler,
// which intentionally bypasses the one-pending-at-a-time check for
// guaranteed-delivery tiers.
func (r *VideoRepository) Create(ctx context.Context, video *types.Video) error {
	if video.CreatedAt.IsZero() {
		video.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO videos (id, series_id, status, created_at)
		 VALUES ($1, $2, $3, $4)`,
		video.ID,
		video.SeriesID,
		video.Status,
		video.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create video", err)
	}
	return nil
}

// GetByID returns the video with the given ID, or a not_found_video error.
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*types.Video, error) {
	var v types.Video
	err := r.db.QueryRow(ctx,
		`SELECT id, series_id, status, created_at FROM videos WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.SeriesID, &v.Status, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundVideo, "video not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query video", err)
	}
	return &v, nil
}

// CountBySeries returns the number of videos recorded for a series. The
// series handler uses this to detect a first admission (count == 1 right
// after the dashboard pre-created the first video).
func (r *VideoRepository) CountBySeries(ctx context.Context, seriesID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM videos WHERE series_id = $1`,
		seriesID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count videos", err)
	}
	return count, nil
}
