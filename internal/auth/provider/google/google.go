package google

import (
	"context"
	"errors"
	"net/http"

	"social-auth/internal/auth"
	"social-auth/internal/auth/provider"
	"social-auth/internal/logger"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const providerName = "google"

// Default endpoint not covered by googleoauth.Endpoint.
const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// DefaultScopes are the scopes sent with the code exchange.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoints default to Google's production URLs when empty.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	Scopes     []string
	HTTPClient *http.Client
}

type Provider struct {
	oauthConfig *oauth2.Config
	exchanger   *Exchanger
	userInfo    *UserInfoFetcher
	idTokens    *IDTokenChecker
}

type Option func(*Provider)

// WithIDTokenChecker enables verification of the exchanged id_token. The
// profile subject must then match the token subject.
func WithIDTokenChecker(c *IDTokenChecker) Option {
	return func(p *Provider) { p.idTokens = c }
}

func New(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	endpoint := googleoauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInHeader

	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = DefaultUserInfoURL
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}

	p := &Provider{
		oauthConfig: oauthCfg,
		exchanger:   NewExchanger(oauthCfg, cfg.HTTPClient),
		userInfo:    NewUserInfoFetcher(userInfoURL, cfg.HTTPClient),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Identify exchanges the authorization code and fetches the profile.
func (p *Provider) Identify(ctx context.Context, creds provider.Credentials) (*auth.Identity, error) {
	const op = "google.Identify"

	tokens, err := p.exchanger.Exchange(ctx, ExchangeRequest{
		Code:         creds.Code,
		Platform:     NormalizePlatform(creds.Platform),
		CodeVerifier: creds.CodeVerifier,
	})
	if err != nil {
		return nil, err
	}

	var tokenSubject string
	if p.idTokens != nil && tokens.IDToken != "" {
		tokenSubject, err = p.idTokens.Check(ctx, tokens.IDToken)
		if err != nil {
			return nil, err
		}
	}

	identity, err := p.userInfo.Fetch(ctx, tokens.IDToken, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	if tokenSubject != "" && identity.ProviderUserID != tokenSubject {
		return nil, auth.Errorf(auth.KindClaimMismatch, op, "profile subject does not match id_token")
	}

	logger.Info("google profile fetched", map[string]any{
		"subject_present":  identity.ProviderUserID != "",
		"email_present":    identity.Email != "",
		"email_verified":   identity.EmailVerified,
		"id_token_checked": tokenSubject != "",
		"platform":         NormalizePlatform(creds.Platform),
	})

	return identity, nil
}
