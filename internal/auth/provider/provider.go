package provider

import (
	"context"

	"social-auth/internal/auth"
)

// Credentials carries the provider-issued material received from the client.
// Code-flow providers read Code (and CodeVerifier for browser logins);
// signed-token providers read IdentityToken.
type Credentials struct {
	Code         string
	CodeVerifier string
	Platform     string

	IdentityToken string
	FullName      string
}

// Provider defines the contract every external identity provider must
// implement. Implementations return identity facts only and must not
// perform user creation, linking, or session management.
type Provider interface {
	// Name returns the provider identifier (e.g. "google", "apple").
	Name() string

	// Identify proves the credentials with the provider and returns a
	// normalized identity. No auth decisions are made here.
	Identify(ctx context.Context, creds Credentials) (*auth.Identity, error)
}

// WebLoginProvider is implemented by providers that support a browser
// redirect login. State and PKCE parameters are provided by the caller.
type WebLoginProvider interface {
	Provider
	AuthCodeURL(state string, codeChallenge string) string
}
