// Package session issues and parses the service's own access and refresh
// tokens. Tokens are stateless; nothing is stored server side.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social-auth/internal/user"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Tokens is the session returned to clients. Expiry times are Unix
// milliseconds.
type Tokens struct {
	AccessToken        string `json:"accessToken"`
	TimeExpired        int64  `json:"timeExpired"`
	RefreshToken       string `json:"refreshToken"`
	TimeRefreshExpired int64  `json:"timeRefreshExpired"`
}

// Claims are the claims of a service-issued token.
type Claims struct {
	jwt.RegisteredClaims
	Type  string `json:"typ"`
	Email string `json:"email,omitempty"`
}

type JWTIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*JWTIssuer)

func WithClock(now func() time.Time) Option {
	return func(i *JWTIssuer) { i.now = now }
}

// NewJWTIssuer signs tokens with HS256 using secret.
func NewJWTIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration, opts ...Option) (*JWTIssuer, error) {
	if len(secret) < 32 {
		return nil, errors.New("session: token secret must be at least 32 bytes")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("session: token ttl must be positive")
	}
	i := &JWTIssuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// GenerateAuthTokens issues an access and a refresh token for u.
func (i *JWTIssuer) GenerateAuthTokens(_ context.Context, u *user.User) (Tokens, error) {
	if u == nil {
		return Tokens{}, errors.New("session: user is nil")
	}

	now := i.now()
	accessExp := now.Add(i.accessTTL)
	refreshExp := now.Add(i.refreshTTL)

	access, err := i.sign(u, TypeAccess, now, accessExp)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := i.sign(u, TypeRefresh, now, refreshExp)
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:        access,
		TimeExpired:        accessExp.UnixMilli(),
		RefreshToken:       refresh,
		TimeRefreshExpired: refreshExp.UnixMilli(),
	}, nil
}

func (i *JWTIssuer) sign(u *user.User, typ string, now, exp time.Time) (string, error) {
	jti, err := GenerateID()
	if err != nil {
		return "", err
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    i.issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Type:  typ,
		Email: u.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("session: failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

// ParseAccessToken validates an access token and returns the user id.
func (i *JWTIssuer) ParseAccessToken(token string) (string, error) {
	return i.parse(token, TypeAccess)
}

// ParseRefreshToken validates a refresh token and returns the user id.
func (i *JWTIssuer) ParseRefreshToken(token string) (string, error) {
	return i.parse(token, TypeRefresh)
}

func (i *JWTIssuer) parse(token, typ string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("session: invalid token: %w", err)
	}
	if claims.Type != typ {
		return "", fmt.Errorf("session: expected %s token, got %q", typ, claims.Type)
	}
	if claims.Subject == "" {
		return "", errors.New("session: token has no subject")
	}
	return claims.Subject, nil
}
