package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

func TestScheduleRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewScheduleRepository(db)

	entry := &types.ScheduleEntry{
		ID:          "sch_1",
		SeriesID:    "ser_1",
		VideoID:     "vid_1",
		ScheduledAt: time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC),
		Platform:    types.PlatformTikTok,
		Status:      types.ScheduleScheduled,
	}

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestScheduleRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewScheduleRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Create(context.Background(), &types.ScheduleEntry{ID: "sch_1"})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestScheduleRepository_CountBySeries(t *testing.T) {
	db := new(mockDBTX)
	repo := NewScheduleRepository(db)

	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int) = 7
		return nil
	}}

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	count, err := repo.CountBySeries(context.Background(), "ser_1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
