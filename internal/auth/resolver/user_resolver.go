package resolver

import (
	"context"
	"errors"
	"time"

	"social-auth/internal/auth"
	"social-auth/internal/logger"
	"social-auth/internal/user"
)

// UserResolver maps identities to accounts by email. An existing account is
// only linked to a new (provider, subject) on a provider-verified email.
type UserResolver struct {
	users           user.Repository
	startingCoin    int64
	subjectFallback map[string]bool
	now             func() time.Time
}

type Option func(*UserResolver)

// WithStartingCoin sets the balance credited to new accounts.
func WithStartingCoin(coin int64) Option {
	return func(r *UserResolver) { r.startingCoin = coin }
}

// WithSubjectFallback lets the named providers log in an already linked
// account by provider subject when the identity carries no email.
// Accounts are never created without an email.
func WithSubjectFallback(providers ...string) Option {
	return func(r *UserResolver) {
		for _, p := range providers {
			r.subjectFallback[p] = true
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *UserResolver) { r.now = now }
}

func NewUserResolver(users user.Repository, opts ...Option) *UserResolver {
	r := &UserResolver{
		users:           users,
		startingCoin:    user.DefaultStartingCoin,
		subjectFallback: make(map[string]bool),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *UserResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
	client auth.ClientContext,
	adsID string,
) (*Resolution, error) {
	const op = "resolver.Resolve"

	if identity == nil {
		return nil, auth.Errorf(auth.KindInvalidRequest, op, "identity is nil")
	}

	email := identity.NormalizedEmail()
	if email == "" {
		return r.resolveBySubject(ctx, identity, client, adsID)
	}

	// 1. Existing live account with this email
	existing, err := r.users.FindOne(ctx, email)
	if err != nil {
		return nil, auth.E(auth.KindDependencyFailed, op, err)
	}
	if existing != nil {
		return r.link(ctx, existing, identity, client, adsID)
	}

	// 2. First login: create
	created := user.New(user.NewAccount{
		Email:          email,
		EmailVerified:  identity.EmailVerified,
		Name:           identity.Name,
		Picture:        identity.Picture,
		OAuthType:      identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		LastIP:         client.SourceIP,
		Country:        client.Country,
		AdsID:          adsID,
		StartingCoin:   r.startingCoin,
	}, r.now().UTC())

	err = r.users.Create(ctx, created)
	if errors.Is(err, user.ErrDuplicateEmail) {
		// Lost a race with a concurrent first login for the same email.
		existing, err = r.users.FindOne(ctx, email)
		if err != nil {
			return nil, auth.E(auth.KindDependencyFailed, op, err)
		}
		if existing == nil {
			return nil, auth.Errorf(auth.KindDependencyFailed, op, "account for %s vanished after conflict", identity.Provider)
		}
		return r.link(ctx, existing, identity, client, adsID)
	}
	if err != nil {
		return nil, auth.E(auth.KindDependencyFailed, op, err)
	}

	return &Resolution{User: created, Created: true}, nil
}

func (r *UserResolver) resolveBySubject(
	ctx context.Context,
	identity *auth.Identity,
	client auth.ClientContext,
	adsID string,
) (*Resolution, error) {
	const op = "resolver.resolveBySubject"

	if !r.subjectFallback[identity.Provider] || identity.ProviderUserID == "" {
		return nil, auth.Errorf(auth.KindMissingRequiredClaim, op, "%s identity has no email", identity.Provider)
	}

	linked, err := r.users.FindByProvider(ctx, identity.Provider, identity.ProviderUserID)
	if err != nil {
		return nil, auth.E(auth.KindDependencyFailed, op, err)
	}
	if linked == nil {
		return nil, auth.Errorf(auth.KindMissingRequiredClaim, op, "%s identity has no email and no linked account", identity.Provider)
	}

	return r.touch(ctx, linked, identity, client, adsID)
}

// link logs identity into u, an account found by email. An unverified
// email only reaches an account already linked to the same subject.
func (r *UserResolver) link(
	ctx context.Context,
	u *user.User,
	identity *auth.Identity,
	client auth.ClientContext,
	adsID string,
) (*Resolution, error) {
	const op = "resolver.link"

	var linked *user.User
	if identity.ProviderUserID != "" {
		var err error
		linked, err = r.users.FindByProvider(ctx, identity.Provider, identity.ProviderUserID)
		if err != nil {
			return nil, auth.E(auth.KindDependencyFailed, op, err)
		}
	}

	switch {
	case linked != nil && linked.ID == u.ID:
		// already linked
	case !identity.EmailVerified:
		return nil, auth.Errorf(auth.KindClaimMismatch, op,
			"unverified %s email matches an account not linked to this subject", identity.Provider)
	case linked == nil && identity.ProviderUserID != "":
		if err := r.users.LinkIdentity(ctx, u.ID, identity.Provider, identity.ProviderUserID); err != nil {
			return nil, auth.E(auth.KindDependencyFailed, op, err)
		}
	case linked != nil:
		// The subject stays with its first account; the email decides.
		logger.Warn("provider subject linked to another account", map[string]any{
			"provider": identity.Provider,
		})
	}

	return r.touch(ctx, u, identity, client, adsID)
}

// touch records login metadata on an existing account. OAuthType and
// ProviderUserID track the last login only; links are kept separately.
func (r *UserResolver) touch(
	ctx context.Context,
	u *user.User,
	identity *auth.Identity,
	client auth.ClientContext,
	adsID string,
) (*Resolution, error) {
	const op = "resolver.touch"

	u.OAuthType = identity.Provider
	u.ProviderUserID = identity.ProviderUserID
	u.EmailVerified = u.EmailVerified || identity.EmailVerified
	u.LastIP = client.SourceIP
	u.Country = client.Country
	u.LastLoginAt = r.now().UTC()
	if adsID != "" {
		u.AdsID = adsID
	}
	if u.Name == "" {
		u.Name = identity.Name
	}
	if u.Picture == "" {
		u.Picture = identity.Picture
	}

	if err := r.users.Update(ctx, u); err != nil {
		return nil, auth.E(auth.KindDependencyFailed, op, err)
	}

	return &Resolution{User: u}, nil
}
