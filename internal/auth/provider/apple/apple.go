package apple

import (
	"context"
	"strings"

	"social-auth/internal/auth"
	"social-auth/internal/auth/provider"
	"social-auth/internal/auth/verifier"
	"social-auth/internal/logger"
)

const providerName = "apple"

// DefaultIssuer is the iss claim of Apple identity tokens.
const DefaultIssuer = "https://appleid.apple.com"

// TokenVerifier checks a signed identity token.
type TokenVerifier interface {
	Verify(ctx context.Context, token, expectedIssuer, expectedAudience string) (*verifier.VerifiedClaims, error)
}

// Provider proves Sign in with Apple identity tokens. There is no code
// exchange; the token signature is the proof.
type Provider struct {
	verifier TokenVerifier
	clientID string
	issuer   string
}

// New returns an Apple provider. An empty issuer uses DefaultIssuer.
func New(v TokenVerifier, clientID, issuer string) *Provider {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Provider{verifier: v, clientID: clientID, issuer: issuer}
}

func (p *Provider) Name() string {
	return providerName
}

// Identify verifies the identity token. Apple sends the user's name only to
// the client and only on first authorization, so it comes from creds.
func (p *Provider) Identify(ctx context.Context, creds provider.Credentials) (*auth.Identity, error) {
	const op = "apple.Identify"

	if creds.IdentityToken == "" {
		return nil, auth.Errorf(auth.KindInvalidRequest, op, "missing required parameters: identityToken")
	}
	if p.clientID == "" {
		return nil, auth.Errorf(auth.KindInvalidRequest, op, "apple client id not configured")
	}

	claims, err := p.verifier.Verify(ctx, creds.IdentityToken, p.issuer, p.clientID)
	if err != nil {
		return nil, err
	}

	identity := &auth.Identity{
		Provider:       providerName,
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		EmailVerified:  claims.EmailVerified != nil && *claims.EmailVerified,
		Name:           strings.TrimSpace(creds.FullName),
	}

	logger.Info("apple identity token verified", map[string]any{
		"issuer":        claims.Issuer,
		"email_present": claims.Email != "",
		"private_email": claims.IsPrivateEmail,
		"expiry_unix":   claims.Expiry.Unix(),
	})

	return identity, nil
}
