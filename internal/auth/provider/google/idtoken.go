package google

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"social-auth/internal/auth"

	"github.com/coreos/go-oidc/v3/oidc"
)

const googleIssuer = "https://accounts.google.com"

// IDTokenChecker verifies the id_token returned by the code exchange so the
// fetched profile can be bound to a token issued for this client.
type IDTokenChecker struct {
	verifier *oidc.IDTokenVerifier
}

// NewIDTokenChecker verifies against Google's published certificates.
// ctx must outlive the checker; go-oidc uses it for background key fetches.
func NewIDTokenChecker(ctx context.Context, certsURL, clientID string, client *http.Client) *IDTokenChecker {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	keySet := oidc.NewRemoteKeySet(ctx, certsURL)
	return NewIDTokenCheckerWithKeySet(keySet, clientID, nil)
}

// NewIDTokenCheckerWithKeySet builds a checker over an arbitrary key set.
// A nil now uses the wall clock.
func NewIDTokenCheckerWithKeySet(keySet oidc.KeySet, clientID string, now func() time.Time) *IDTokenChecker {
	return &IDTokenChecker{
		verifier: oidc.NewVerifier(googleIssuer, keySet, &oidc.Config{
			ClientID: clientID,
			Now:      now,
		}),
	}
}

// Check verifies rawIDToken and returns its subject.
func (c *IDTokenChecker) Check(ctx context.Context, rawIDToken string) (string, error) {
	const op = "google.CheckIDToken"

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", auth.E(classifyOIDC(err), op, err)
	}
	if idToken.Subject == "" {
		return "", auth.Errorf(auth.KindMissingRequiredClaim, op, "id_token has no sub")
	}
	return idToken.Subject, nil
}

// classifyOIDC maps go-oidc errors, which are mostly untyped, onto kinds.
func classifyOIDC(err error) auth.Kind {
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return auth.KindTokenExpired
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "malformed"):
		return auth.KindMalformedToken
	case strings.Contains(msg, "signature"), strings.Contains(msg, "signing"):
		return auth.KindInvalidSignature
	case strings.Contains(msg, "fetching keys"):
		return auth.KindKeySourceUnavailable
	}
	return auth.KindClaimMismatch
}
