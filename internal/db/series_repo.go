package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// SeriesRepository provides read access to the series table. The
// orchestration core never mutates series rows; creation and deactivation
// belong to the dashboard service that owns the schema.
type SeriesRepository struct {
	db DBTX
}

// NewSeriesRepository creates a new SeriesRepository backed by the given
// database connection (pool or transaction).
func NewSeriesRepository(db DBTX) *SeriesRepository {
	return &SeriesRepository{db: db}
}

// seriesColumns is the canonical column list for scanning a series row.
const seriesColumns = `id, user_id, title, cadence, is_active,
       theme, voice, language, duration_range, destination, created_at`

// GetByID returns the series with the given ID, or a not_found_series error.
func (r *SeriesRepository) GetByID(ctx context.Context, id string) (*types.Series, error) {
	var s types.Series
	err := r.db.QueryRow(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE id = $1`,
		id,
	).Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&s.Cadence,
		&s.IsActive,
		&s.Params.Theme,
		&s.Params.Voice,
		&s.Params.Language,
		&s.Params.DurationRange,
		&s.Params.Destination,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSeries, "series not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query series", err)
	}
	return &s, nil
}

// ListDue returns all eligible series joined with the creation time of each
// series' most recent video. Eligibility is decided here, in one bulk read:
// the series must be active and its owner must have an active subscription.
// Series with no videos yet report their own creation time as LastVideoAt.
//
// This is the scheduler's single per-tick enumeration query; the due-date
// arithmetic itself stays in the admission gate.
func (r *SeriesRepository) ListDue(ctx context.Context) ([]types.DueSeries, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.user_id, s.title, s.cadence, s.is_active,
		        s.theme, s.voice, s.language, s.duration_range, s.destination,
		        s.created_at,
		        COALESCE(MAX(v.created_at), s.created_at) AS last_video_at
		 FROM series s
		 JOIN users u ON u.id = s.user_id
		 LEFT JOIN videos v ON v.series_id = s.id
		 WHERE s.is_active
		   AND u.subscription_status = 'active'
		 GROUP BY s.id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to enumerate eligible series", err)
	}
	defer rows.Close()

	var result []types.DueSeries
	for rows.Next() {
		var d types.DueSeries
		if err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.Title,
			&d.Cadence,
			&d.IsActive,
			&d.Params.Theme,
			&d.Params.Voice,
			&d.Params.Language,
			&d.Params.DurationRange,
			&d.Params.Destination,
			&d.CreatedAt,
			&d.LastVideoAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan eligible series", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating eligible series", err)
	}

	return result, nil
}
