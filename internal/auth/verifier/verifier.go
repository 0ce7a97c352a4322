// Package verifier validates provider-signed identity tokens (JWS compact
// JWTs) against a key resolver, a fixed algorithm allow-list and the
// expected issuer and audience.
package verifier

import (
	"context"
	"errors"
	"slices"
	"time"

	"social-auth/internal/auth"
	"social-auth/internal/auth/keyset"

	"github.com/golang-jwt/jwt/v5"
)

// KeyResolver looks up a provider signing key by key id.
type KeyResolver interface {
	GetKey(ctx context.Context, keyID string) (keyset.SigningKey, error)
}

// DefaultAlgorithms are the asymmetric algorithms accepted when none are
// configured. "none" and HMAC algorithms are never accepted.
var DefaultAlgorithms = []string{"RS256", "ES256"}

// Verifier checks identity tokens. It holds no per-request state and is
// safe for concurrent use.
type Verifier struct {
	keys       KeyResolver
	algorithms []string
	leeway     time.Duration
	now        func() time.Time
}

type Option func(*Verifier)

// WithAlgorithms replaces the allow-list. Symmetric algorithms and "none"
// are dropped.
func WithAlgorithms(algs ...string) Option {
	return func(v *Verifier) {
		allowed := make([]string, 0, len(algs))
		for _, alg := range algs {
			if isAsymmetric(alg) {
				allowed = append(allowed, alg)
			}
		}
		if len(allowed) > 0 {
			v.algorithms = allowed
		}
	}
}

// WithLeeway tolerates clock skew on exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) { v.leeway = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New creates a Verifier backed by keys.
func New(keys KeyResolver, opts ...Option) *Verifier {
	v := &Verifier{
		keys:       keys,
		algorithms: DefaultAlgorithms,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates token and returns its claims. Structure and signature are
// checked before any claim is read; each failure maps to one auth.Kind.
func (v *Verifier) Verify(
	ctx context.Context,
	token string,
	expectedIssuer string,
	expectedAudience string,
) (*VerifiedClaims, error) {
	const op = "verifier.Verify"

	if token == "" {
		return nil, auth.Errorf(auth.KindMalformedToken, op, "empty token")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.algorithms),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.resolveKey(ctx, t)
	})
	if err != nil {
		return nil, classify(op, err)
	}

	iss, _ := claims.GetIssuer()
	if iss != expectedIssuer {
		return nil, auth.Errorf(auth.KindClaimMismatch, op, "issuer %q, want %q", iss, expectedIssuer)
	}

	aud, _ := claims.GetAudience()
	if !slices.Contains(aud, expectedAudience) {
		return nil, auth.Errorf(auth.KindClaimMismatch, op, "audience %v does not contain %q", []string(aud), expectedAudience)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, auth.Errorf(auth.KindMissingRequiredClaim, op, "sub")
	}

	out := &VerifiedClaims{
		Subject:       sub,
		Issuer:        iss,
		Audience:      expectedAudience,
		Email:         stringClaim(claims, "email"),
		EmailVerified: flexBool(claims, "email_verified"),
		Nonce:         stringClaim(claims, "nonce"),
		Raw:           map[string]any(claims),
	}
	if private := flexBool(claims, "is_private_email"); private != nil {
		out.IsPrivateEmail = *private
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		out.Expiry = exp.Time
	}
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		out.IssuedAt = iat.Time
	}

	return out, nil
}

// resolveKey runs after the parser has checked the segment layout and the
// algorithm allow-list.
func (v *Verifier) resolveKey(ctx context.Context, t *jwt.Token) (any, error) {
	const op = "verifier.resolveKey"

	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, auth.Errorf(auth.KindMalformedToken, op, "missing kid header")
	}

	key, err := v.keys.GetKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	if key.Algorithm != "" && key.Algorithm != t.Method.Alg() {
		return nil, auth.Errorf(auth.KindInvalidSignature, op,
			"token alg %s does not match key alg %s", t.Method.Alg(), key.Algorithm)
	}

	return key.PublicKey, nil
}

// classify maps jwt parser errors onto auth kinds. Errors raised by the key
// function already carry a kind and are returned as is.
func classify(op string, err error) error {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return authErr
	}

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrInvalidType):
		// ErrInvalidType: a time claim that is not a number.
		return auth.E(auth.KindMalformedToken, op, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return auth.E(auth.KindInvalidSignature, op, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return auth.E(auth.KindTokenExpired, op, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return auth.E(auth.KindMissingRequiredClaim, op, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return auth.E(auth.KindClaimMismatch, op, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return auth.E(auth.KindInvalidSignature, op, err)
	}
	return auth.E(auth.KindMalformedToken, op, err)
}

func isAsymmetric(alg string) bool {
	switch alg {
	case "RS256", "RS384", "RS512",
		"PS256", "PS384", "PS512",
		"ES256", "ES384", "ES512",
		"EdDSA":
		return true
	}
	return false
}
