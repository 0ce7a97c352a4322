package google

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"social-auth/internal/auth"

	"golang.org/x/oauth2"
)

// Platforms accepted from clients; anything else is treated as android.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWeb     = "web"
)

// ProviderTokens is the token endpoint response.
type ProviderTokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	TokenType    string
	Scope        string
	Expiry       time.Time
}

// ExchangeRequest holds the per-request exchange inputs. Client credentials
// and the redirect URI come from the exchanger's oauth2 config.
type ExchangeRequest struct {
	Code         string
	Platform     string
	CodeVerifier string // set only for browser logins using PKCE
}

// Exchanger trades an authorization code for Google tokens.
// Codes are single-use, so a failed exchange is never retried.
type Exchanger struct {
	config *oauth2.Config
	client *http.Client
}

// NewExchanger returns an exchanger that posts to config.Endpoint.TokenURL
// with HTTP Basic client authentication.
func NewExchanger(config *oauth2.Config, client *http.Client) *Exchanger {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg := *config
	cfg.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
	return &Exchanger{config: &cfg, client: client}
}

func (e *Exchanger) Exchange(ctx context.Context, req ExchangeRequest) (*ProviderTokens, error) {
	const op = "google.Exchange"

	if req.Code == "" || e.config.ClientID == "" || e.config.ClientSecret == "" {
		return nil, auth.Errorf(auth.KindInvalidRequest, op, "missing required parameters: code, clientId, clientSecret")
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("client_id", e.config.ClientID),
		oauth2.SetAuthURLParam("client_secret", e.config.ClientSecret),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	}
	if len(e.config.Scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(e.config.Scopes, " ")))
	}
	if req.CodeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(req.CodeVerifier))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)

	token, err := e.config.Exchange(ctx, req.Code, opts...)
	if err != nil {
		failure := auth.E(auth.KindExchangeFailed, op, err)
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			failure.Body = string(re.Body)
		}
		return nil, failure
	}

	idToken, _ := token.Extra("id_token").(string)
	scope, _ := token.Extra("scope").(string)

	return &ProviderTokens{
		AccessToken:  token.AccessToken,
		IDToken:      idToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        scope,
		Expiry:       token.Expiry,
	}, nil
}

// NormalizePlatform maps a client-supplied platform onto a known value.
func NormalizePlatform(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case PlatformIOS:
		return PlatformIOS
	case PlatformWeb:
		return PlatformWeb
	default:
		return PlatformAndroid
	}
}
