package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// DefaultRefreshWindow is how far ahead of expiry a social token is
// refreshed. With an hourly job, a two hour window guarantees at least one
// refresh attempt before any token actually expires.
const DefaultRefreshWindow = 2 * time.Hour

// TokenStore provides the social account reads and writes the refresher
// needs. Accounts without a refresh token are never returned by
// ListExpiring.
type TokenStore interface {
	ListExpiring(ctx context.Context, before time.Time) ([]types.SocialAccount, error)
	UpdateTokens(ctx context.Context, id string, accessToken, refreshToken string, expiresAt time.Time) error
}

// TokenExchanger swaps a refresh token for a fresh grant at the provider.
type TokenExchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*types.TokenGrant, error)
}

// TokenRefresher keeps social account access tokens alive by refreshing any
// that expire within the lookahead window. It is meant to be driven by a
// cron entry; each invocation is one full pass.
type TokenRefresher struct {
	accounts TokenStore
	oauth    TokenExchanger
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// TokenRefresherConfig holds the configuration for creating a TokenRefresher.
type TokenRefresherConfig struct {
	Accounts TokenStore
	OAuth    TokenExchanger
	// Window defaults to DefaultRefreshWindow when zero.
	Window time.Duration
	Logger *slog.Logger
	Now    func() time.Time
}

// NewTokenRefresher creates a new token refresher.
func NewTokenRefresher(cfg TokenRefresherConfig) *TokenRefresher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultRefreshWindow
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TokenRefresher{
		accounts: cfg.Accounts,
		oauth:    cfg.OAuth,
		window:   window,
		logger:   logger,
		now:      now,
	}
}

// RunOnce refreshes every account whose token expires within the window and
// returns the number refreshed. A failed exchange for one account is logged
// and skipped; the stale token stays in place and the account is picked up
// again on the next pass.
func (t *TokenRefresher) RunOnce(ctx context.Context) (int, error) {
	cutoff := t.now().Add(t.window)

	accounts, err := t.accounts.ListExpiring(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, account := range accounts {
		grant, err := t.oauth.Refresh(ctx, account.RefreshToken)
		if err != nil {
			t.logger.ErrorContext(ctx, "token refresh failed",
				"account_id", account.ID,
				"platform", account.Platform,
				"error", err,
			)
			continue
		}

		// Some providers rotate the refresh token on every exchange; keep
		// the old one only when the response omits a replacement.
		refreshToken := grant.RefreshToken
		if refreshToken == "" {
			refreshToken = account.RefreshToken
		}

		if err := t.accounts.UpdateTokens(ctx, account.ID, grant.AccessToken, refreshToken, grant.ExpiresAt); err != nil {
			t.logger.ErrorContext(ctx, "token persist failed",
				"account_id", account.ID,
				"error", err,
			)
			continue
		}

		refreshed++
		t.logger.InfoContext(ctx, "token refreshed",
			"account_id", account.ID,
			"platform", account.Platform,
			"expires_at", grant.ExpiresAt.Format(time.RFC3339),
		)
	}

	if len(accounts) > 0 {
		t.logger.InfoContext(ctx, "token refresh pass complete",
			"candidates", len(accounts),
			"refreshed", refreshed,
		)
	}

	return refreshed, nil
}
