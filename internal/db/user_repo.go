package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// UserRepository provides read access to accounts and keeps local
// subscription state synchronized with Stripe webhooks.
//
// UpdateSubscriptionStatus uses optimistic locking via
// last_subscription_event_at so out-of-order Stripe deliveries cannot
// regress the local plan state.
type UserRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewUserRepository creates a new UserRepository backed by the given database
// connection (pool or transaction).
func NewUserRepository(db DBTX, logger *slog.Logger) *UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserRepository{db: db, logger: logger}
}

// GetByID returns the user with the given ID, or a not_found_user error.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	var u types.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, plan, subscription_status,
		        COALESCE(stripe_customer_id, ''), last_subscription_event_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Plan, &u.SubscriptionStatus, &u.StripeCustomerID, &u.LastSubscriptionEventAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query user", err)
	}
	return &u, nil
}

// UpdateSubscriptionStatus applies a plan/status change coming from a Stripe
// event. The update only lands when the event is newer than the last one
// applied; stale or duplicate deliveries are silently ignored (idempotent
// no-op), which is logged at info level for traceability.
func (r *UserRepository) UpdateSubscriptionStatus(
	ctx context.Context,
	stripeCustomerID string,
	newPlan types.PlanTier,
	status types.SubscriptionStatus,
	eventTimestamp time.Time,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET plan = $1,
		     subscription_status = $2,
		     last_subscription_event_at = $3,
		     updated_at = NOW()
		 WHERE stripe_customer_id = $4
		   AND (last_subscription_event_at IS NULL OR last_subscription_event_at < $3)`,
		newPlan,
		status,
		eventTimestamp,
		stripeCustomerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription status", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.InfoContext(ctx, "stale subscription event ignored (optimistic lock)",
			"stripe_customer_id", stripeCustomerID,
			"event_timestamp", eventTimestamp,
		)
	}

	return nil
}

// UpdatePaymentFailure degrades the subscription status to past_due without
// touching the plan. The same optimistic lock applies, so a recovery event
// that arrived first is not clobbered by a late failure notice.
func (r *UserRepository) UpdatePaymentFailure(ctx context.Context, stripeCustomerID string, eventTimestamp time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET subscription_status = $1,
		     last_subscription_event_at = $2,
		     updated_at = NOW()
		 WHERE stripe_customer_id = $3
		   AND (last_subscription_event_at IS NULL OR last_subscription_event_at < $2)`,
		types.SubscriptionPastDue,
		eventTimestamp,
		stripeCustomerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record payment failure", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.InfoContext(ctx, "stale payment failure event ignored (optimistic lock)",
			"stripe_customer_id", stripeCustomerID,
			"event_timestamp", eventTimestamp,
		)
	}

	return nil
}
