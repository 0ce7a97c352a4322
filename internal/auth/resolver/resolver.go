package resolver

import (
	"context"

	"social-auth/internal/auth"
	"social-auth/internal/user"
)

// Resolution is the account an identity was mapped to.
type Resolution struct {
	User    *user.User
	Created bool
}

// Resolver determines which internal user an external identity belongs to,
// creating the account on first login.
// It is the ONLY place where identity-to-user mapping logic lives.
type Resolver interface {
	Resolve(
		ctx context.Context,
		identity *auth.Identity,
		client auth.ClientContext,
		adsID string,
	) (*Resolution, error)
}
