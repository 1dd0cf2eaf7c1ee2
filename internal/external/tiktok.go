package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// DefaultTikTokTokenURL is the TikTok open API token endpoint.
const DefaultTikTokTokenURL = "https://open.tiktokapis.com/v2/oauth/token/"

// TikTokClient exchanges refresh tokens for fresh access tokens against the
// TikTok OAuth endpoint.
type TikTokClient struct {
	base         *BaseClient
	tokenURL     string
	clientKey    string
	clientSecret types.SecretString
	now          func() time.Time
}

// TikTokClientConfig holds the configuration for creating a TikTokClient.
type TikTokClientConfig struct {
	HTTPClient   *http.Client
	TokenURL     string
	ClientKey    string
	ClientSecret types.SecretString
	Now          func() time.Time
	Options      []BaseClientOption
}

// NewTikTokClient creates a TikTok OAuth client backed by a BaseClient with
// its own circuit breaker.
func NewTikTokClient(cfg TikTokClientConfig) *TikTokClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTikTokTokenURL
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TikTokClient{
		base:         NewBaseClient(httpClient, "tiktok-oauth", DefaultRetryPolicy(), cfg.Options...),
		tokenURL:     tokenURL,
		clientKey:    cfg.ClientKey,
		clientSecret: cfg.ClientSecret,
		now:          now,
	}
}

// tiktokTokenResponse mirrors the TikTok token endpoint body. Error fields
// arrive in the same object with a 200 status on some failure modes.
type tiktokTokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh performs the refresh_token grant and returns the new token pair.
func (t *TikTokClient) Refresh(ctx context.Context, refreshToken string) (*types.TokenGrant, error) {
	form := url.Values{}
	form.Set("client_key", t.clientKey)
	form.Set("client_secret", t.clientSecret.Unmask())
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building token refresh request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamOAuth, "reading token refresh response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamOAuth,
			fmt.Sprintf("token refresh rejected with status %d", resp.StatusCode),
			nil,
		)
	}

	var tokenResp tiktokTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamOAuth, "decoding token refresh response", err)
	}

	if tokenResp.Error != "" {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamOAuth,
			fmt.Sprintf("token refresh failed: %s: %s", tokenResp.Error, tokenResp.ErrorDescription),
			nil,
		)
	}
	if tokenResp.AccessToken == "" {
		return nil, types.NewAppError(types.ErrCodeUpstreamOAuth, "token refresh response missing access token", nil)
	}

	return &types.TokenGrant{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    t.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}
