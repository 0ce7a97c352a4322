package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"social-auth/internal/auth"
)

const maxProfileBytes = 64 << 10

// UserInfoFetcher reads the signed-in user's Google profile. Profiles are
// fetched fresh on every login.
type UserInfoFetcher struct {
	url    string
	client *http.Client
}

func NewUserInfoFetcher(userInfoURL string, client *http.Client) *UserInfoFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &UserInfoFetcher{url: userInfoURL, client: client}
}

// userInfo covers both the v2 (id, verified_email) and the v3/OIDC
// (sub, email_verified) response shapes.
type userInfo struct {
	Sub           string `json:"sub"`
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	VerifiedEmail *bool  `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Fetch returns the profile as a normalized identity. The email may be
// empty; callers decide whether that is acceptable.
func (f *UserInfoFetcher) Fetch(ctx context.Context, idToken, accessToken string) (*auth.Identity, error) {
	const op = "google.FetchProfile"

	if idToken == "" || accessToken == "" {
		return nil, auth.Errorf(auth.KindInvalidRequest, op, "missing required parameters: idToken, accessToken")
	}

	u, err := url.Parse(f.url)
	if err != nil {
		return nil, auth.E(auth.KindProfileFetchFailed, op, err)
	}
	q := u.Query()
	q.Set("alt", "json")
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, auth.E(auth.KindProfileFetchFailed, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+idToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, auth.E(auth.KindProfileFetchFailed, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return nil, auth.E(auth.KindProfileFetchFailed, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &auth.Error{
			Kind: auth.KindProfileFetchFailed,
			Op:   op,
			Err:  fmt.Errorf("userinfo returned %d", resp.StatusCode),
			Body: string(body),
		}
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, auth.E(auth.KindProfileFetchFailed, op, fmt.Errorf("decode userinfo: %w", err))
	}

	subject := info.Sub
	if subject == "" {
		subject = info.ID
	}
	if subject == "" {
		return nil, auth.Errorf(auth.KindMissingRequiredClaim, op, "userinfo has no subject")
	}

	verified := info.EmailVerified
	if verified == nil {
		verified = info.VerifiedEmail
	}

	return &auth.Identity{
		Provider:       providerName,
		ProviderUserID: subject,
		Email:          info.Email,
		EmailVerified:  verified != nil && *verified,
		Name:           info.Name,
		Picture:        info.Picture,
	}, nil
}
