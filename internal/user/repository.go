package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateEmail is returned by Create when a live account already uses
// the email.
var ErrDuplicateEmail = errors.New("user: email already registered")

// ErrNotFound is returned by Update when the account does not exist.
var ErrNotFound = errors.New("user: not found")

// Repository is the user storage port. Lookups return nil, nil when no
// account matches; deleted accounts never match.
//
// An account can be linked to several (provider, subject) pairs. Create
// links the pair in u.OAuthType and u.ProviderUserID; LinkIdentity adds
// more. A pair already linked to another account is left untouched.
type Repository interface {
	FindOne(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByProvider(ctx context.Context, provider, subject string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	LinkIdentity(ctx context.Context, userID uuid.UUID, provider, subject string) error
}
