package orchestrator

import (
	"context"

	"social-auth/internal/session"
	"social-auth/internal/user"
)

// TokenIssuer mints the service session for a resolved user.
type TokenIssuer interface {
	GenerateAuthTokens(ctx context.Context, u *user.User) (session.Tokens, error)
}

// ProfileFormatter produces the client-facing user shape. The result is
// treated as opaque.
type ProfileFormatter interface {
	FormatUser(u *user.User) any
}

// FormatterFunc adapts a function to ProfileFormatter.
type FormatterFunc func(u *user.User) any

func (f FormatterFunc) FormatUser(u *user.User) any { return f(u) }

// DefaultFormatter renders user.Profile.
var DefaultFormatter = FormatterFunc(func(u *user.User) any { return u.FormatResponse() })

// ConfigSource supplies client configuration returned with a successful
// login.
type ConfigSource interface {
	ClientConfig(ctx context.Context) (map[string]any, error)
}

// StaticConfig is a ConfigSource with fixed values.
type StaticConfig map[string]any

func (s StaticConfig) ClientConfig(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}
