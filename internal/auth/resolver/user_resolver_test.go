package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"social-auth/internal/auth"
	"social-auth/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testClient = auth.ClientContext{SourceIP: "203.0.113.7", Country: "SE"}
)

func newResolver(repo user.Repository, opts ...Option) *UserResolver {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewUserResolver(repo, opts...)
}

func googleIdentity(email string) *auth.Identity {
	return &auth.Identity{
		Provider:       "google",
		ProviderUserID: "g-1",
		Email:          email,
		EmailVerified:  true,
		Name:           "Ann",
		Picture:        "https://img/ann.png",
	}
}

func TestResolveCreatesAccount(t *testing.T) {
	repo := user.NewMemoryRepository()
	r := newResolver(repo)

	res, err := r.Resolve(context.Background(), googleIdentity("Ann@Example.com"), testClient, "ads-1")
	require.NoError(t, err)

	assert.True(t, res.Created)
	u := res.User
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, user.DefaultStartingCoin, u.Coin)
	assert.Equal(t, user.DefaultStartingCoin, u.HighestCoin)
	assert.Equal(t, "google", u.OAuthType)
	assert.Equal(t, "g-1", u.ProviderUserID)
	assert.Equal(t, "203.0.113.7", u.LastIP)
	assert.Equal(t, "SE", u.Country)
	assert.Equal(t, "ads-1", u.AdsID)
	assert.Equal(t, testNow, u.LastLoginAt)

	creates, updates := repo.Counts()
	assert.Equal(t, 1, creates)
	assert.Zero(t, updates)
}

func TestResolveExistingAccountUpdatesLoginMetadata(t *testing.T) {
	existing := user.New(user.NewAccount{Email: "ann@example.com", Name: "Old Name", AdsID: "ads-old", OAuthType: "apple"}, testNow.Add(-24*time.Hour))
	existing.Coin = 42
	repo := user.NewMemoryRepository(existing)
	r := newResolver(repo, WithStartingCoin(5))

	res, err := r.Resolve(context.Background(), googleIdentity("ANN@example.com"), testClient, "")
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, existing.ID, res.User.ID)
	assert.Equal(t, int64(42), res.User.Coin)
	assert.Equal(t, "Old Name", res.User.Name)
	assert.Equal(t, "https://img/ann.png", res.User.Picture)
	assert.Equal(t, "ads-old", res.User.AdsID)
	assert.Equal(t, "google", res.User.OAuthType)
	assert.Equal(t, testNow, res.User.LastLoginAt)
	assert.Contains(t, repo.Links(existing.ID), "google")

	creates, updates := repo.Counts()
	assert.Zero(t, creates)
	assert.Equal(t, 1, updates)
}

func TestResolveIgnoresDeletedAccounts(t *testing.T) {
	deleted := user.New(user.NewAccount{Email: "ann@example.com"}, testNow)
	deleted.IsDeleted = true
	repo := user.NewMemoryRepository(deleted)

	res, err := newResolver(repo).Resolve(context.Background(), googleIdentity("ann@example.com"), testClient, "")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEqual(t, deleted.ID, res.User.ID)
}

func TestResolveWithoutEmailNeverCreates(t *testing.T) {
	repo := user.NewMemoryRepository()
	r := newResolver(repo, WithSubjectFallback("apple"))

	for _, provider := range []string{"google", "apple"} {
		t.Run(provider, func(t *testing.T) {
			id := &auth.Identity{Provider: provider, ProviderUserID: "sub-1"}
			_, err := r.Resolve(context.Background(), id, testClient, "")
			assert.True(t, errors.Is(err, auth.ErrMissingRequiredClaim), "got %v", err)
		})
	}
	assert.Zero(t, repo.Len())
}

func TestResolveWithoutEmailUsesLinkedSubject(t *testing.T) {
	linked := user.New(user.NewAccount{Email: "x@privaterelay.appleid.com", OAuthType: "apple", ProviderUserID: "001234.abcd"}, testNow)
	repo := user.NewMemoryRepository(linked)

	id := &auth.Identity{Provider: "apple", ProviderUserID: "001234.abcd"}

	_, err := newResolver(repo).Resolve(context.Background(), id, testClient, "")
	assert.True(t, errors.Is(err, auth.ErrMissingRequiredClaim), "fallback must be opted in")

	res, err := newResolver(repo, WithSubjectFallback("apple")).Resolve(context.Background(), id, testClient, "")
	require.NoError(t, err)
	assert.Equal(t, linked.ID, res.User.ID)
	assert.False(t, res.Created)
}

func TestResolveUnverifiedEmailCannotClaimExistingAccount(t *testing.T) {
	victim := user.New(user.NewAccount{Email: "victim@corp.com", OAuthType: "apple", ProviderUserID: "a-1"}, testNow)
	repo := user.NewMemoryRepository(victim)

	id := &auth.Identity{Provider: "google", ProviderUserID: "attacker", Email: "victim@corp.com"}
	res, err := newResolver(repo).Resolve(context.Background(), id, testClient, "")

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, auth.ErrClaimMismatch), "got %v", err)
	assert.ElementsMatch(t, []string{"apple"}, repo.Links(victim.ID))
	_, updates := repo.Counts()
	assert.Zero(t, updates)
}

func TestResolveUnverifiedEmailOnLinkedSubject(t *testing.T) {
	owner := user.New(user.NewAccount{Email: "ann@example.com", OAuthType: "google", ProviderUserID: "g-1"}, testNow)
	repo := user.NewMemoryRepository(owner)

	id := googleIdentity("ann@example.com")
	id.EmailVerified = false

	res, err := newResolver(repo).Resolve(context.Background(), id, testClient, "")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, res.User.ID)
}

func TestResolveUnverifiedEmailCreatesNewAccount(t *testing.T) {
	repo := user.NewMemoryRepository()

	id := googleIdentity("new@example.com")
	id.EmailVerified = false

	res, err := newResolver(repo).Resolve(context.Background(), id, testClient, "")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.User.EmailVerified)
}

func TestResolveKeepsEveryProviderLink(t *testing.T) {
	repo := user.NewMemoryRepository()
	r := newResolver(repo, WithSubjectFallback("apple"))
	ctx := context.Background()

	appleWithEmail := &auth.Identity{Provider: "apple", ProviderUserID: "001234.abcd", Email: "ann@example.com", EmailVerified: true}
	first, err := r.Resolve(ctx, appleWithEmail, testClient, "")
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := r.Resolve(ctx, googleIdentity("ann@example.com"), testClient, "")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "google", second.User.OAuthType)

	appleNoEmail := &auth.Identity{Provider: "apple", ProviderUserID: "001234.abcd"}
	third, err := r.Resolve(ctx, appleNoEmail, testClient, "")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, third.User.ID)
	assert.Equal(t, "apple", third.User.OAuthType)

	assert.ElementsMatch(t, []string{"apple", "google"}, repo.Links(first.User.ID))
	assert.Equal(t, 1, repo.Len())
}

type failingRepo struct {
	*user.MemoryRepository
	findErr   error
	createErr error
}

func (f *failingRepo) FindOne(ctx context.Context, email string) (*user.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.MemoryRepository.FindOne(ctx, email)
}

func (f *failingRepo) Create(ctx context.Context, u *user.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.MemoryRepository.Create(ctx, u)
}

func TestResolveStorageFailureIsDependencyFailure(t *testing.T) {
	repo := &failingRepo{MemoryRepository: user.NewMemoryRepository(), findErr: errors.New("db down")}

	_, err := newResolver(repo).Resolve(context.Background(), googleIdentity("a@b.com"), testClient, "")
	assert.True(t, errors.Is(err, auth.ErrDependencyFailed))
	assert.False(t, auth.KindOf(err).CallerError())
}

// racingRepo reports a duplicate on the first create, after inserting the
// competing account.
type racingRepo struct {
	*user.MemoryRepository
	raced bool
}

func (r *racingRepo) Create(ctx context.Context, u *user.User) error {
	if !r.raced {
		r.raced = true
		winner := *u
		winner.ID = [16]byte{1}
		_ = r.MemoryRepository.Create(ctx, &winner)
		return user.ErrDuplicateEmail
	}
	return r.MemoryRepository.Create(ctx, u)
}

func TestResolveConcurrentFirstLoginFallsBackToExisting(t *testing.T) {
	repo := &racingRepo{MemoryRepository: user.NewMemoryRepository()}

	res, err := newResolver(repo).Resolve(context.Background(), googleIdentity("a@b.com"), testClient, "")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, [16]byte{1}, [16]byte(res.User.ID))
	assert.Equal(t, 1, repo.Len())
}

func TestResolveNilIdentity(t *testing.T) {
	_, err := newResolver(user.NewMemoryRepository()).Resolve(context.Background(), nil, testClient, "")
	assert.True(t, errors.Is(err, auth.ErrInvalidRequest))
}
