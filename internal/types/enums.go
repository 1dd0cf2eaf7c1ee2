package types

// VideoStatus is the lifecycle state of a video. The orchestration core only
// ever writes StatusPending; the render worker moves videos to their terminal
// states.
type VideoStatus string

const (
	VideoPending   VideoStatus = "pending"
	VideoCompleted VideoStatus = "completed"
	VideoFailed    VideoStatus = "failed"
)

// ScheduleStatus is the state of a schedule entry.
type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	SchedulePublished ScheduleStatus = "published"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// PlanTier identifies the subscription plan of a user.
type PlanTier string

const (
	PlanStarter PlanTier = "starter"
	PlanGrowth  PlanTier = "growth"
	PlanScale   PlanTier = "scale"
)

// SubscriptionStatus mirrors the Stripe subscription lifecycle states the
// service cares about. Anything other than SubscriptionActive makes the
// user's series ineligible for scheduling.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Platform is the delivery platform a video is published to.
type Platform string

const (
	PlatformTikTok  Platform = "tiktok"
	PlatformYouTube Platform = "youtube"
	PlatformEmail   Platform = "email"
)
