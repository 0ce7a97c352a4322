package auth

import "strings"

// Identity represents a normalized external authentication identity
// returned by an OAuth provider. It contains facts only, no decisions.
type Identity struct {
	Provider       string // e.g. "google", "apple"
	ProviderUserID string // provider-scoped unique user identifier (sub)
	Email          string // email asserted by the provider, may be empty
	EmailVerified  bool   // whether provider asserts email ownership
	Name           string
	Picture        string
}

// NormalizedEmail returns the lookup form of the identity email.
func (i *Identity) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(i.Email))
}

// ClientContext carries request metadata supplied by the transport layer.
// It is passed through unchanged to user provisioning.
type ClientContext struct {
	SourceIP string
	Country  string
}
