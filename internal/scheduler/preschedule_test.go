package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// mockVideoCreator records unconditional video inserts.
type mockVideoCreator struct {
	videos  []*types.Video
	failAt  int // 1-based call index to fail on; 0 never fails
	calls   int
	lastErr error
}

func (m *mockVideoCreator) Create(_ context.Context, video *types.Video) error {
	m.calls++
	if m.failAt > 0 && m.calls >= m.failAt {
		m.lastErr = errors.New("insert failed")
		return m.lastErr
	}
	m.videos = append(m.videos, video)
	return nil
}

// mockEntryCreator records schedule entry inserts.
type mockEntryCreator struct {
	entries []*types.ScheduleEntry
	failAt  int
	calls   int
}

func (m *mockEntryCreator) Create(_ context.Context, entry *types.ScheduleEntry) error {
	m.calls++
	if m.failAt > 0 && m.calls >= m.failAt {
		return errors.New("insert failed")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func prescheduleSeries(cadence int, destination string) *types.Series {
	return &types.Series{
		ID:       "series_1",
		UserID:   "user_1",
		Cadence:  cadence,
		IsActive: true,
		Params:   types.GenerationParams{Destination: destination},
	}
}

func TestPreScheduler_CreatesCadenceEntries(t *testing.T) {
	videos := &mockVideoCreator{}
	entries := &mockEntryCreator{}
	p := NewPreScheduler(PreSchedulerConfig{Videos: videos, Entries: entries, Logger: discardLogger()})

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created, err := p.Preschedule(context.Background(), prescheduleSeries(3, "tiktok"), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(created) != 3 {
		t.Fatalf("created %d entries, want 3 (one per cadence unit)", len(created))
	}
	if len(videos.videos) != 3 {
		t.Fatalf("created %d videos, want 3", len(videos.videos))
	}

	// Entries are spaced one 56h period apart, starting one period out.
	period := PeriodFor(3)
	for k, entry := range created {
		want := now.Add(time.Duration(k+1) * period)
		if !entry.ScheduledAt.Equal(want) {
			t.Errorf("entry[%d].ScheduledAt = %v, want %v", k, entry.ScheduledAt, want)
		}
		if entry.Platform != types.PlatformTikTok {
			t.Errorf("entry[%d].Platform = %q, want tiktok", k, entry.Platform)
		}
		if entry.Status != types.ScheduleScheduled {
			t.Errorf("entry[%d].Status = %q, want scheduled", k, entry.Status)
		}
		if entry.SeriesID != "series_1" {
			t.Errorf("entry[%d].SeriesID = %q, want series_1", k, entry.SeriesID)
		}
	}

	// Each entry binds a distinct video.
	seen := make(map[string]bool)
	for _, entry := range created {
		if seen[entry.VideoID] {
			t.Errorf("video %s bound to more than one entry", entry.VideoID)
		}
		seen[entry.VideoID] = true
	}
}

func TestPreScheduler_EmailDestination(t *testing.T) {
	videos := &mockVideoCreator{}
	entries := &mockEntryCreator{}
	p := NewPreScheduler(PreSchedulerConfig{Videos: videos, Entries: entries, Logger: discardLogger()})

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created, err := p.Preschedule(context.Background(), prescheduleSeries(1, "email"), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d entries, want 1", len(created))
	}
	if created[0].Platform != types.PlatformEmail {
		t.Errorf("platform = %q, want email", created[0].Platform)
	}
}

func TestPreScheduler_PartialFailureKeepsCommitted(t *testing.T) {
	videos := &mockVideoCreator{failAt: 3}
	entries := &mockEntryCreator{}
	p := NewPreScheduler(PreSchedulerConfig{Videos: videos, Entries: entries, Logger: discardLogger()})

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created, err := p.Preschedule(context.Background(), prescheduleSeries(5, "tiktok"), now)
	if err == nil {
		t.Fatal("expected error from mid-batch failure")
	}

	// The two slots committed before the failure stay committed.
	if len(created) != 2 {
		t.Fatalf("returned %d committed entries, want 2", len(created))
	}
	if len(entries.entries) != 2 {
		t.Fatalf("store holds %d entries, want 2", len(entries.entries))
	}
}

func TestPreScheduler_EntryFailureAfterVideo(t *testing.T) {
	// When the entry insert fails the corresponding video stays; nothing is
	// rolled back.
	videos := &mockVideoCreator{}
	entries := &mockEntryCreator{failAt: 1}
	p := NewPreScheduler(PreSchedulerConfig{Videos: videos, Entries: entries, Logger: discardLogger()})

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created, err := p.Preschedule(context.Background(), prescheduleSeries(2, "tiktok"), now)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(created) != 0 {
		t.Fatalf("returned %d entries, want 0", len(created))
	}
	if len(videos.videos) != 1 {
		t.Fatalf("store holds %d videos, want 1 (no rollback)", len(videos.videos))
	}
}

func TestPreScheduler_InvalidCadence(t *testing.T) {
	p := NewPreScheduler(PreSchedulerConfig{Videos: &mockVideoCreator{}, Entries: &mockEntryCreator{}, Logger: discardLogger()})

	_, err := p.Preschedule(context.Background(), prescheduleSeries(0, "tiktok"), time.Now().UTC())
	if err == nil {
		t.Fatal("expected error for zero cadence")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationInvalidCadence {
		t.Fatalf("error = %v, want validation_invalid_cadence", err)
	}
}
