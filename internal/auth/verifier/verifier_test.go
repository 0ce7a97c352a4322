package verifier

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"social-auth/internal/auth"
	"social-auth/internal/auth/keyset"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://appleid.apple.com"
	testAudience = "com.example.app"
	testKid      = "kid-1"
)

// staticKeys resolves from a fixed map and counts lookups.
type staticKeys struct {
	keys  map[string]keyset.SigningKey
	calls atomic.Int64
}

func (s *staticKeys) GetKey(_ context.Context, kid string) (keyset.SigningKey, error) {
	s.calls.Add(1)
	k, ok := s.keys[kid]
	if !ok {
		return keyset.SigningKey{}, auth.Errorf(auth.KindKeyNotFound, "test", "kid %q", kid)
	}
	return k, nil
}

type fixture struct {
	priv *rsa.PrivateKey
	keys *staticKeys
	v    *Verifier
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keys := &staticKeys{keys: map[string]keyset.SigningKey{
		testKid: {KeyID: testKid, Algorithm: "RS256", PublicKey: &priv.PublicKey},
	}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	return &fixture{
		priv: priv,
		keys: keys,
		now:  now,
		v:    New(keys, WithClock(func() time.Time { return now })),
	}
}

func (f *fixture) claims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testAudience,
		"sub":            "001234.abcd",
		"email":          "a@b.com",
		"email_verified": "true",
		"iat":            f.now.Add(-time.Minute).Unix(),
		"exp":            f.now.Add(time.Hour).Unix(),
	}
}

func (f *fixture) sign(t *testing.T, claims jwt.MapClaims, kid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(f.priv)
	require.NoError(t, err)
	return s
}

func TestVerifyValidToken(t *testing.T) {
	f := newFixture(t)
	token := f.sign(t, f.claims(), testKid)

	got, err := f.v.Verify(context.Background(), token, testIssuer, testAudience)
	require.NoError(t, err)

	assert.Equal(t, "001234.abcd", got.Subject)
	assert.Equal(t, testIssuer, got.Issuer)
	assert.Equal(t, testAudience, got.Audience)
	assert.Equal(t, "a@b.com", got.Email)
	require.NotNil(t, got.EmailVerified)
	assert.True(t, *got.EmailVerified)
	assert.Equal(t, f.now.Add(time.Hour).Unix(), got.Expiry.Unix())
	assert.Equal(t, "a@b.com", got.Raw["email"])
}

func TestVerifyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	token := f.sign(t, f.claims(), testKid)

	first, err := f.v.Verify(context.Background(), token, testIssuer, testAudience)
	require.NoError(t, err)
	second, err := f.v.Verify(context.Background(), token, testIssuer, testAudience)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestVerifyAudienceList(t *testing.T) {
	f := newFixture(t)
	c := f.claims()
	c["aud"] = []string{"other.client", testAudience}

	got, err := f.v.Verify(context.Background(), f.sign(t, c, testKid), testIssuer, testAudience)
	require.NoError(t, err)
	assert.Equal(t, testAudience, got.Audience)
}

func TestVerifyMalformedNeverResolvesKey(t *testing.T) {
	f := newFixture(t)
	valid := f.sign(t, f.claims(), testKid)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"one segment", "abc"},
		{"two segments", "abc.def"},
		{"four segments", valid + ".extra"},
		{"bad header encoding", "!!!." + base64.RawURLEncoding.EncodeToString([]byte(`{}`)) + ".sig"},
		{"header not json", base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".e30.sig"},
		{"payload not json", base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","kid":"kid-1"}`)) + ".bm9wZQ.sig"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.v.Verify(context.Background(), tc.token, testIssuer, testAudience)
			require.Error(t, err)
			assert.True(t, errors.Is(err, auth.ErrMalformedToken), "got %v", err)
		})
	}
	assert.EqualValues(t, 0, f.keys.calls.Load())
}

func TestVerifyMissingKidIsMalformed(t *testing.T) {
	f := newFixture(t)
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, f.claims())
	s, err := tok.SignedString(f.priv)
	require.NoError(t, err)

	_, err = f.v.Verify(context.Background(), s, testIssuer, testAudience)
	assert.True(t, errors.Is(err, auth.ErrMalformedToken))
	assert.EqualValues(t, 0, f.keys.calls.Load())
}

func TestVerifyUnknownKidPropagatesKeyNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.v.Verify(context.Background(), f.sign(t, f.claims(), "rotated-away"), testIssuer, testAudience)
	assert.True(t, errors.Is(err, auth.ErrKeyNotFound))
}

func TestVerifyRejectsDowngradeAlgorithms(t *testing.T) {
	f := newFixture(t)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, f.claims())
	none.Header["kid"] = testKid
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, f.claims())
	hs.Header["kid"] = testKid
	// Key confusion: HMAC keyed with the public modulus.
	hsToken, err := hs.SignedString(f.priv.PublicKey.N.Bytes())
	require.NoError(t, err)

	for name, token := range map[string]string{"none": noneToken, "HS256": hsToken} {
		t.Run(name, func(t *testing.T) {
			_, err := f.v.Verify(context.Background(), token, testIssuer, testAudience)
			require.Error(t, err)
			assert.True(t, errors.Is(err, auth.ErrInvalidSignature), "got %v", err)
		})
	}
	assert.EqualValues(t, 0, f.keys.calls.Load())
}

func TestWithAlgorithmsDropsSymmetric(t *testing.T) {
	v := New(&staticKeys{}, WithAlgorithms("HS256", "none", "ES256"))
	assert.Equal(t, []string{"ES256"}, v.algorithms)

	v = New(&staticKeys{}, WithAlgorithms("HS512"))
	assert.Equal(t, DefaultAlgorithms, v.algorithms)
}

func TestVerifyWrongSigningKey(t *testing.T) {
	f := newFixture(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, f.claims())
	tok.Header["kid"] = testKid
	s, err := tok.SignedString(other)
	require.NoError(t, err)

	_, err = f.v.Verify(context.Background(), s, testIssuer, testAudience)
	assert.True(t, errors.Is(err, auth.ErrInvalidSignature))
}

func TestVerifyKeyAlgorithmMismatch(t *testing.T) {
	f := newFixture(t)
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	f.keys.keys["ec"] = keyset.SigningKey{KeyID: "ec", Algorithm: "ES256", PublicKey: &ec.PublicKey}

	_, err = f.v.Verify(context.Background(), f.sign(t, f.claims(), "ec"), testIssuer, testAudience)
	assert.True(t, errors.Is(err, auth.ErrInvalidSignature))
}

func TestVerifyES256(t *testing.T) {
	f := newFixture(t)
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	f.keys.keys["ec"] = keyset.SigningKey{KeyID: "ec", PublicKey: &ec.PublicKey}

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, f.claims())
	tok.Header["kid"] = "ec"
	s, err := tok.SignedString(ec)
	require.NoError(t, err)

	got, err := f.v.Verify(context.Background(), s, testIssuer, testAudience)
	require.NoError(t, err)
	assert.Equal(t, "001234.abcd", got.Subject)
}

func TestVerifyExpiredEvenWhenOtherwiseValid(t *testing.T) {
	f := newFixture(t)
	c := f.claims()
	c["iat"] = f.now.Add(-2 * time.Hour).Unix()
	c["exp"] = f.now.Add(-time.Hour).Unix()

	_, err := f.v.Verify(context.Background(), f.sign(t, c, testKid), testIssuer, testAudience)
	assert.True(t, errors.Is(err, auth.ErrTokenExpired), "got %v", err)
}

func TestVerifyLeewayAcceptsSmallSkew(t *testing.T) {
	f := newFixture(t)
	v := New(f.keys, WithLeeway(time.Minute), WithClock(func() time.Time { return f.now }))
	c := f.claims()
	c["exp"] = f.now.Add(-30 * time.Second).Unix()

	_, err := v.Verify(context.Background(), f.sign(t, c, testKid), testIssuer, testAudience)
	assert.NoError(t, err)
}

func TestVerifyClaimFailures(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		want   *auth.Error
	}{
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }, auth.ErrClaimMismatch},
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "com.other.app" }, auth.ErrClaimMismatch},
		{"missing audience", func(c jwt.MapClaims) { delete(c, "aud") }, auth.ErrClaimMismatch},
		{"issued in future", func(c jwt.MapClaims) { c["iat"] = f.now.Add(time.Hour).Unix() }, auth.ErrClaimMismatch},
		{"missing exp", func(c jwt.MapClaims) { delete(c, "exp") }, auth.ErrMissingRequiredClaim},
		{"missing sub", func(c jwt.MapClaims) { delete(c, "sub") }, auth.ErrMissingRequiredClaim},
		{"exp not a number", func(c jwt.MapClaims) { c["exp"] = "soon" }, auth.ErrMalformedToken},
		{"iat not a number", func(c jwt.MapClaims) { c["iat"] = "yesterday" }, auth.ErrMalformedToken},
		{"nbf not a number", func(c jwt.MapClaims) { c["nbf"] = true }, auth.ErrMalformedToken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := f.claims()
			tc.mutate(c)
			_, err := f.v.Verify(context.Background(), f.sign(t, c, testKid), testIssuer, testAudience)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestFlexBool(t *testing.T) {
	raw := map[string]any{
		"a": true,
		"b": "false",
		"c": "TRUE",
		"d": "maybe",
		"e": 1.0,
	}

	require.NotNil(t, flexBool(raw, "a"))
	assert.True(t, *flexBool(raw, "a"))
	assert.False(t, *flexBool(raw, "b"))
	assert.True(t, *flexBool(raw, "c"))
	assert.Nil(t, flexBool(raw, "d"))
	assert.Nil(t, flexBool(raw, "e"))
	assert.Nil(t, flexBool(raw, "missing"))
}
