package types

import "time"

// Series is a recurring video producer owned by a user. The orchestration
// core reads series rows but never mutates them; creation and deactivation
// happen through the dashboard service.
type Series struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	// Cadence is the number of videos desired per 7-day period. Always > 0
	// while the series is active.
	Cadence   int       `json:"cadence"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`

	Params GenerationParams `json:"params"`
}

// GenerationParams are the free-form creative parameters forwarded verbatim
// to the render Lambda.
type GenerationParams struct {
	Theme         string `json:"theme"`
	Voice         string `json:"voice"`
	Language      string `json:"language"`
	DurationRange string `json:"duration_range"`
	Destination   string `json:"destination"`
}

// Video is one unit of recurring output tied to exactly one Series.
// Invariant: at most one pending video exists per series at any instant.
type Video struct {
	ID        string      `json:"id"`
	SeriesID  string      `json:"series_id"`
	Status    VideoStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// ScheduleEntry is a future-dated binding of a video to a delivery platform.
// Entries are batch-created by the pre-scheduler for guaranteed-delivery
// tiers.
type ScheduleEntry struct {
	ID          string         `json:"id"`
	SeriesID    string         `json:"series_id"`
	VideoID     string         `json:"video_id"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	Platform    Platform       `json:"platform"`
	Status      ScheduleStatus `json:"status"`
}

// User is the owning account for one or more series. Plan and subscription
// state are synchronized from Stripe webhooks; the orchestration core treats
// them as read-only.
type User struct {
	ID                      string             `json:"id"`
	Email                   string             `json:"email"`
	Plan                    PlanTier           `json:"plan"`
	SubscriptionStatus      SubscriptionStatus `json:"subscription_status"`
	StripeCustomerID        string             `json:"-"`
	LastSubscriptionEventAt *time.Time         `json:"-"`
}

// SocialAccount holds the OAuth credentials for a user's publishing platform.
// The token refresher rotates access tokens before they expire.
type SocialAccount struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Platform       Platform  `json:"platform"`
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RenderPayload is the JSON body POSTed to the render Lambda. Field names
// match what the Lambda-side worker expects.
type RenderPayload struct {
	UserID        string `json:"user_id"`
	SeriesID      string `json:"series_id"`
	VideoID       string `json:"video_id"`
	Destination   string `json:"destination"`
	Theme         string `json:"theme"`
	Voice         string `json:"voice"`
	Language      string `json:"language"`
	DurationRange string `json:"duration_range"`
}

// NewRenderPayload assembles the Lambda payload from a series and the video
// being dispatched. An empty destination defaults to "email", mirroring the
// dashboard's behavior.
func NewRenderPayload(s *Series, videoID string) RenderPayload {
	dest := s.Params.Destination
	if dest == "" {
		dest = string(PlatformEmail)
	}
	return RenderPayload{
		UserID:        s.UserID,
		SeriesID:      s.ID,
		VideoID:       videoID,
		Destination:   dest,
		Theme:         s.Params.Theme,
		Voice:         s.Params.Voice,
		Language:      s.Params.Language,
		DurationRange: s.Params.DurationRange,
	}
}

// DueSeries is one row of the scheduler's bulk eligibility query: a series
// joined with the creation time of its most recent video. LastVideoAt falls
// back to the series creation time when no video exists yet.
type DueSeries struct {
	Series
	LastVideoAt time.Time `json:"last_video_at"`
}

// TokenGrant is the result of an OAuth refresh-token exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// PlanLimits are the per-tier entitlements enforced by the service.
type PlanLimits struct {
	// MaxWeeklyCadence caps Series.Cadence at creation time. 0 means no cap.
	MaxWeeklyCadence int
	// GuaranteedDelivery entitles the tier to batch pre-scheduling of a full
	// period's worth of videos at series creation.
	GuaranteedDelivery bool
}
