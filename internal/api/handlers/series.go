// Package handlers contains the HTTP handler implementations for the
// orchestration API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/buzzflixai/buzzflix-droplet/internal/billing"
	"github.com/buzzflixai/buzzflix-droplet/internal/core"
	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// SeriesReader loads a series row.
type SeriesReader interface {
	GetByID(ctx context.Context, id string) (*types.Series, error)
}

// UserReader loads the user owning a series.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// VideoReader loads the video named in the trigger request.
type VideoReader interface {
	GetByID(ctx context.Context, id string) (*types.Video, error)
}

// ScheduleCounter reports how many schedule entries a series already has.
type ScheduleCounter interface {
	CountBySeries(ctx context.Context, seriesID string) (int, error)
}

// BatchScheduler lays out the upcoming delivery slots for a series.
type BatchScheduler interface {
	Preschedule(ctx context.Context, series *types.Series, now time.Time) ([]types.ScheduleEntry, error)
}

// RenderTrigger hands a payload off for asynchronous production.
type RenderTrigger interface {
	Enqueue(payload types.RenderPayload)
}

// SeriesHandler serves the series trigger endpoint called by the dashboard
// after it creates a series and its first pending video.
type SeriesHandler struct {
	series    SeriesReader
	users     UserReader
	videos    VideoReader
	schedules ScheduleCounter
	batch     BatchScheduler
	trigger   RenderTrigger
	plans     billing.PlanRegistry
	validator *core.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// SeriesHandlerConfig holds the dependencies for creating a SeriesHandler.
type SeriesHandlerConfig struct {
	Series    SeriesReader
	Users     UserReader
	Videos    VideoReader
	Schedules ScheduleCounter
	Batch     BatchScheduler
	Trigger   RenderTrigger
	Plans     billing.PlanRegistry
	Validator *core.Validator
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewSeriesHandler creates a new SeriesHandler.
func NewSeriesHandler(cfg SeriesHandlerConfig) *SeriesHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := cfg.Validator
	if validator == nil {
		validator = core.NewValidator()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SeriesHandler{
		series:    cfg.Series,
		users:     cfg.Users,
		videos:    cfg.Videos,
		schedules: cfg.Schedules,
		batch:     cfg.Batch,
		trigger:   cfg.Trigger,
		plans:     cfg.Plans,
		validator: validator,
		logger:    logger,
		now:       now,
	}
}

// RegisterRoutes mounts the trigger endpoint at its versioned path and at
// the legacy path the dashboard still calls.
func (h *SeriesHandler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/series", h.Create)
	r.Post("/create_series", h.Create)
}

// CreateSeriesRequest is the trigger request body sent by the dashboard.
// The creative parameters are forwarded verbatim to the render backend.
type CreateSeriesRequest struct {
	UserID        string `json:"user_id" validate:"required"`
	SeriesID      string `json:"series_id" validate:"required"`
	VideoID       string `json:"video_id" validate:"required"`
	Destination   string `json:"destination"`
	Theme         string `json:"theme"`
	Voice         string `json:"voice"`
	Language      string `json:"language"`
	DurationRange string `json:"duration_range"`
}

// createSeriesData is the success payload returned to the dashboard.
type createSeriesData struct {
	SeriesID string `json:"series_id"`
	VideoID  string `json:"video_id"`
}

// Create validates the trigger request, pre-schedules the series on its
// first trigger when the plan includes guaranteed delivery, and hands the
// first video off for production.
//
// The response is returned as soon as the dispatch is enqueued; production
// runs in the background and its outcome never surfaces here.
func (h *SeriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSeriesRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Destination == "" {
		req.Destination = string(types.PlatformEmail)
	}

	series, err := h.series.GetByID(ctx, req.SeriesID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if series.UserID != req.UserID {
		// Do not reveal that the series exists under another owner.
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundSeries, "series not found", nil))
		return
	}
	if !series.IsActive {
		core.Error(w, r, types.NewAppError(types.ErrCodePermissionSeriesInactive, "series is not active", nil))
		return
	}

	user, err := h.users.GetByID(ctx, series.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if user.SubscriptionStatus != types.SubscriptionActive {
		core.Error(w, r, types.NewAppError(types.ErrCodePermissionSubscriptionInactive, "subscription is not active", nil))
		return
	}

	video, err := h.videos.GetByID(ctx, req.VideoID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if video.SeriesID != series.ID {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundVideo, "video not found", nil))
		return
	}
	if video.Status != types.VideoPending {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationVideoNotPending, "video is not pending", nil))
		return
	}

	h.maybePreschedule(ctx, series, user)

	payload := types.RenderPayload{
		UserID:        req.UserID,
		SeriesID:      req.SeriesID,
		VideoID:       req.VideoID,
		Destination:   req.Destination,
		Theme:         req.Theme,
		Voice:         req.Voice,
		Language:      req.Language,
		DurationRange: req.DurationRange,
	}
	h.trigger.Enqueue(payload)

	h.logger.InfoContext(ctx, "series trigger accepted",
		"series_id", series.ID,
		"video_id", video.ID,
		"destination", req.Destination,
	)

	core.Success(w, r, "Video generation and scheduling started successfully", createSeriesData{
		SeriesID: series.ID,
		VideoID:  video.ID,
	})
}

// maybePreschedule lays out the first week of slots if the user's plan
// includes guaranteed delivery and the series has never been pre-scheduled.
// Failures are logged and swallowed: pre-scheduling is an enrichment, not a
// precondition for triggering the first video.
func (h *SeriesHandler) maybePreschedule(ctx context.Context, series *types.Series, user *types.User) {
	limits := h.plans.GetLimits(user.Plan)
	if !limits.GuaranteedDelivery {
		return
	}

	existing, err := h.schedules.CountBySeries(ctx, series.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "schedule lookup failed, skipping preschedule",
			"series_id", series.ID,
			"error", err,
		)
		return
	}
	if existing > 0 {
		return
	}

	entries, err := h.batch.Preschedule(ctx, series, h.now())
	if err != nil {
		h.logger.ErrorContext(ctx, "preschedule incomplete",
			"series_id", series.ID,
			"committed", len(entries),
			"error", err,
		)
		return
	}
}
