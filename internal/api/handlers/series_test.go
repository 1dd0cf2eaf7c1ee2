package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

type mockSeriesReader struct {
	series map[string]*types.Series
}

func (m *mockSeriesReader) GetByID(ctx context.Context, id string) (*types.Series, error) {
	if s, ok := m.series[id]; ok {
		return s, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundSeries, "series not found", nil)
}

type mockUserReader struct {
	users map[string]*types.User
}

func (m *mockUserReader) GetByID(ctx context.Context, id string) (*types.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
}

type mockVideoReader struct {
	videos map[string]*types.Video
}

func (m *mockVideoReader) GetByID(ctx context.Context, id string) (*types.Video, error) {
	if v, ok := m.videos[id]; ok {
		return v, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundVideo, "video not found", nil)
}

type mockScheduleCounter struct {
	count int
	err   error
	calls int
}

func (m *mockScheduleCounter) CountBySeries(ctx context.Context, seriesID string) (int, error) {
	m.calls++
	return m.count, m.err
}

type mockBatchScheduler struct {
	entries []types.ScheduleEntry
	err     error
	calls   int
}

func (m *mockBatchScheduler) Preschedule(ctx context.Context, series *types.Series, now time.Time) ([]types.ScheduleEntry, error) {
	m.calls++
	return m.entries, m.err
}

type mockRenderTrigger struct {
	payloads []types.RenderPayload
}

func (m *mockRenderTrigger) Enqueue(payload types.RenderPayload) {
	m.payloads = append(m.payloads, payload)
}

type mockPlanRegistry struct {
	limits map[types.PlanTier]types.PlanLimits
}

func (m *mockPlanRegistry) GetLimits(tier types.PlanTier) types.PlanLimits {
	return m.limits[tier]
}

// ---------------------------------------------------------------------------
// Test Fixture
// ---------------------------------------------------------------------------

type seriesHandlerFixture struct {
	handler   *SeriesHandler
	trigger   *mockRenderTrigger
	batch     *mockBatchScheduler
	schedules *mockScheduleCounter
}

func newSeriesHandlerFixture(plan types.PlanTier, subStatus types.SubscriptionStatus) *seriesHandlerFixture {
	series := &types.Series{
		ID:       "ser_1",
		UserID:   "user_1",
		Title:    "Daily Stoicism",
		Cadence:  3,
		IsActive: true,
		Params: types.GenerationParams{
			Theme:       "stoicism",
			Destination: "tiktok",
		},
	}
	user := &types.User{
		ID:                 "user_1",
		Email:              "creator@example.com",
		Plan:               plan,
		SubscriptionStatus: subStatus,
	}
	video := &types.Video{
		ID:       "vid_1",
		SeriesID: "ser_1",
		Status:   types.VideoPending,
	}

	trigger := &mockRenderTrigger{}
	batch := &mockBatchScheduler{}
	schedules := &mockScheduleCounter{}

	handler := NewSeriesHandler(SeriesHandlerConfig{
		Series:    &mockSeriesReader{series: map[string]*types.Series{"ser_1": series}},
		Users:     &mockUserReader{users: map[string]*types.User{"user_1": user}},
		Videos:    &mockVideoReader{videos: map[string]*types.Video{"vid_1": video}},
		Schedules: schedules,
		Batch:     batch,
		Trigger:   trigger,
		Plans: &mockPlanRegistry{limits: map[types.PlanTier]types.PlanLimits{
			types.PlanStarter: {MaxWeeklyCadence: 3, GuaranteedDelivery: false},
			types.PlanGrowth:  {MaxWeeklyCadence: 7, GuaranteedDelivery: true},
		}},
		Logger: discardLogger(),
	})

	return &seriesHandlerFixture{
		handler:   handler,
		trigger:   trigger,
		batch:     batch,
		schedules: schedules,
	}
}

func doCreateRequest(t *testing.T, handler *SeriesHandler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/series", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.Create(rr, req)
	return rr
}

func validCreateBody() map[string]any {
	return map[string]any{
		"user_id":   "user_1",
		"series_id": "ser_1",
		"video_id":  "vid_1",
		"theme":     "stoicism",
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSeriesHandler_Create_Success(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)

	rr := doCreateRequest(t, f.handler, validCreateBody())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			SeriesID string `json:"series_id"`
			VideoID  string `json:"video_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected status success, got %q", resp.Status)
	}
	if resp.Data.SeriesID != "ser_1" || resp.Data.VideoID != "vid_1" {
		t.Errorf("unexpected data payload: %+v", resp.Data)
	}

	if len(f.trigger.payloads) != 1 {
		t.Fatalf("expected 1 enqueued payload, got %d", len(f.trigger.payloads))
	}
	p := f.trigger.payloads[0]
	if p.SeriesID != "ser_1" || p.VideoID != "vid_1" || p.Theme != "stoicism" {
		t.Errorf("unexpected render payload: %+v", p)
	}
}

func TestSeriesHandler_Create_DefaultsDestinationToEmail(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)

	rr := doCreateRequest(t, f.handler, validCreateBody())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if f.trigger.payloads[0].Destination != "email" {
		t.Errorf("expected destination email, got %q", f.trigger.payloads[0].Destination)
	}
}

func TestSeriesHandler_Create_MissingRequiredFields(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)

	rr := doCreateRequest(t, f.handler, map[string]any{"user_id": "user_1"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if len(f.trigger.payloads) != 0 {
		t.Error("invalid request must not enqueue a dispatch")
	}
}

func TestSeriesHandler_Create_SeriesNotFound(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)

	body := validCreateBody()
	body["series_id"] = "ser_missing"
	rr := doCreateRequest(t, f.handler, body)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestSeriesHandler_Create_OwnerMismatchHidesSeries(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)

	body := validCreateBody()
	body["user_id"] = "user_other"
	rr := doCreateRequest(t, f.handler, body)

	// Same 404 as a missing series; the response must not reveal that the
	// series exists under another owner.
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
	if len(f.trigger.payloads) != 0 {
		t.Error("owner mismatch must not enqueue a dispatch")
	}
}

func TestSeriesHandler_Create_InactiveSeries(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)
	reader := f.handler.series.(*mockSeriesReader)
	reader.series["ser_1"].IsActive = false

	rr := doCreateRequest(t, f.handler, validCreateBody())

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

func TestSeriesHandler_Create_InactiveSubscription(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionPastDue)

	rr := doCreateRequest(t, f.handler, validCreateBody())

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
	if len(f.trigger.payloads) != 0 {
		t.Error("inactive subscription must not enqueue a dispatch")
	}
}

func TestSeriesHandler_Create_VideoNotFound(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)

	body := validCreateBody()
	body["video_id"] = "vid_missing"
	rr := doCreateRequest(t, f.handler, body)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestSeriesHandler_Create_VideoBelongsToOtherSeries(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)
	videos := f.handler.videos.(*mockVideoReader)
	videos.videos["vid_1"].SeriesID = "ser_other"

	rr := doCreateRequest(t, f.handler, validCreateBody())

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestSeriesHandler_Create_VideoNotPending(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)
	videos := f.handler.videos.(*mockVideoReader)
	videos.videos["vid_1"].Status = types.VideoCompleted

	rr := doCreateRequest(t, f.handler, validCreateBody())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if len(f.trigger.payloads) != 0 {
		t.Error("non-pending video must not enqueue a dispatch")
	}
}

// ---------------------------------------------------------------------------
// Tests: Pre-Scheduling
// ---------------------------------------------------------------------------

func TestSeriesHandler_Create_PreschedulesGuaranteedTierOnFirstTrigger(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanGrowth, types.SubscriptionActive)

	rr := doCreateRequest(t, f.handler, validCreateBody())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if f.batch.calls != 1 {
		t.Errorf("expected 1 preschedule call, got %d", f.batch.calls)
	}
}

func TestSeriesHandler_Create_SkipsPrescheduleForStarterTier(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanStarter, types.SubscriptionActive)

	rr := doCreateRequest(t, f.handler, validCreateBody())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if f.batch.calls != 0 {
		t.Errorf("starter tier must not preschedule, got %d calls", f.batch.calls)
	}
	if f.schedules.calls != 0 {
		t.Errorf("starter tier must not even count schedules, got %d calls", f.schedules.calls)
	}
}

func TestSeriesHandler_Create_SkipsPrescheduleWhenEntriesExist(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanGrowth, types.SubscriptionActive)
	f.schedules.count = 3

	rr := doCreateRequest(t, f.handler, validCreateBody())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if f.batch.calls != 0 {
		t.Errorf("already-scheduled series must not preschedule again, got %d calls", f.batch.calls)
	}
}

func TestSeriesHandler_Create_PrescheduleFailureDoesNotBlockTrigger(t *testing.T) {
	f := newSeriesHandlerFixture(types.PlanGrowth, types.SubscriptionActive)
	f.batch.err = types.NewAppError(types.ErrCodeInternalDB, "insert failed", nil)

	rr := doCreateRequest(t, f.handler, validCreateBody())

	// Pre-scheduling is best effort; the trigger still succeeds.
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 despite preschedule failure, got %d", rr.Code)
	}
	if len(f.trigger.payloads) != 1 {
		t.Errorf("expected dispatch despite preschedule failure, got %d", len(f.trigger.payloads))
	}
}
