package db

import (
	"context"
	"time"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// SocialAccountRepository provides data access for the social_accounts
// table, used by the hourly token refresher.
type SocialAccountRepository struct {
	db DBTX
}

// NewSocialAccountRepository creates a new SocialAccountRepository backed by
// the given database connection (pool or transaction).
func NewSocialAccountRepository(db DBTX) *SocialAccountRepository {
	return &SocialAccountRepository{db: db}
}

// ListExpiring returns accounts whose access token expires before the given
// deadline, oldest expiry first. Accounts without a refresh token are
// excluded; there is nothing the refresher can do for them.
func (r *SocialAccountRepository) ListExpiring(ctx context.Context, before time.Time) ([]types.SocialAccount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, platform, access_token, refresh_token,
		        token_expires_at, updated_at
		 FROM social_accounts
		 WHERE token_expires_at < $1
		   AND refresh_token <> ''
		 ORDER BY token_expires_at`,
		before,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query expiring social accounts", err)
	}
	defer rows.Close()

	var accounts []types.SocialAccount
	for rows.Next() {
		var a types.SocialAccount
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Platform,
			&a.AccessToken,
			&a.RefreshToken,
			&a.TokenExpiresAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan social account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating social accounts", err)
	}

	return accounts, nil
}

// UpdateTokens persists a rotated token pair for an account.
func (r *SocialAccountRepository) UpdateTokens(ctx context.Context, id string, accessToken, refreshToken string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE social_accounts
		 SET access_token = $1,
		     refresh_token = $2,
		     token_expires_at = $3,
		     updated_at = NOW()
		 WHERE id = $4`,
		accessToken,
		refreshToken,
		expiresAt,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update social account tokens", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "social account not found", nil)
	}
	return nil
}
