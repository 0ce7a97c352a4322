package keyset

import (
	"context"
	"sync/atomic"
	"time"

	"social-auth/internal/auth"
	"social-auth/internal/logger"

	"golang.org/x/sync/singleflight"
)

// Fetcher returns a raw JWKS document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SnapshotStore persists the last fetched JWKS document so a new process
// can start with a warm cache.
type SnapshotStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, raw []byte) error
}

// Resolver caches one provider's signing keys by key id.
//
// Lookups read an immutable map through an atomic pointer and never block.
// A miss refreshes the whole set; concurrent refreshes collapse into a
// single fetch. A key id still missing after that refresh is not found.
// With a minimum refresh interval, misses inside the interval reuse the
// outcome of the last fetch instead of fetching again.
type Resolver struct {
	name        string
	fetcher     Fetcher
	snapshots   SnapshotStore
	timeout     time.Duration
	minInterval time.Duration
	now         func() time.Time

	keys    atomic.Pointer[map[string]SigningKey]
	last    atomic.Pointer[refreshOutcome]
	group   singleflight.Group
	fetches atomic.Int64
}

type refreshOutcome struct {
	at  time.Time
	err error
}

type Option func(*Resolver)

// WithSnapshots stores every fetched key set and enables Warm.
func WithSnapshots(s SnapshotStore) Option {
	return func(r *Resolver) { r.snapshots = s }
}

// WithFetchTimeout bounds a single key set fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMinRefreshInterval limits network fetches to one per d. Zero
// disables the limit.
func WithMinRefreshInterval(d time.Duration) Option {
	return func(r *Resolver) { r.minInterval = d }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates an empty key cache for the named provider.
func NewResolver(name string, fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		name:    name,
		fetcher: fetcher,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetKey returns the signing key for keyID, refreshing the key set once on
// a miss.
func (r *Resolver) GetKey(ctx context.Context, keyID string) (SigningKey, error) {
	const op = "keyset.GetKey"

	seen := r.keys.Load()
	if key, ok := lookup(seen, keyID); ok {
		return key, nil
	}

	if err := r.refresh(ctx, seen); err != nil {
		return SigningKey{}, err
	}

	if key, ok := lookup(r.keys.Load(), keyID); ok {
		return key, nil
	}

	return SigningKey{}, auth.Errorf(auth.KindKeyNotFound, op,
		"%s key set has no kid %q", r.name, keyID)
}

// Warm loads the stored snapshot into an empty cache.
func (r *Resolver) Warm(ctx context.Context) error {
	if r.snapshots == nil || r.keys.Load() != nil {
		return nil
	}

	raw, err := r.snapshots.Load(ctx, r.name)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	keys, err := ParseKeySet(raw)
	if err != nil {
		return err
	}

	r.keys.CompareAndSwap(nil, &keys)

	logger.Info("key set warmed from snapshot", map[string]any{
		"provider": r.name,
		"keys":     len(keys),
	})
	return nil
}

// Stats reports cache size and the number of completed network fetches.
func (r *Resolver) Stats() (cachedKeys int, fetches int64) {
	if m := r.keys.Load(); m != nil {
		cachedKeys = len(*m)
	}
	return cachedKeys, r.fetches.Load()
}

// refresh fetches the key set unless another caller has replaced the cache
// since seen was read. The shared fetch is detached from the caller's
// cancellation so one aborted request cannot fail the others waiting on it.
func (r *Resolver) refresh(ctx context.Context, seen *map[string]SigningKey) error {
	const op = "keyset.refresh"

	if current := r.keys.Load(); current != seen {
		return nil
	}

	if last := r.last.Load(); last != nil && r.minInterval > 0 && r.now().Sub(last.at) < r.minInterval {
		return last.err
	}

	ch := r.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		err := r.fetch(fetchCtx)
		r.last.Store(&refreshOutcome{at: r.now(), err: err})
		return nil, err
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return auth.E(auth.KindKeySourceUnavailable, op, ctx.Err())
	}
}

func (r *Resolver) fetch(ctx context.Context) error {
	const op = "keyset.fetch"

	raw, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return auth.E(auth.KindKeySourceUnavailable, op, err)
	}

	keys, err := ParseKeySet(raw)
	if err != nil {
		return auth.E(auth.KindKeySourceUnavailable, op, err)
	}

	r.keys.Store(&keys)
	r.fetches.Add(1)

	logger.Debug("key set refreshed", map[string]any{
		"provider": r.name,
		"keys":     len(keys),
	})

	if r.snapshots != nil {
		if err := r.snapshots.Save(ctx, r.name, raw); err != nil {
			logger.Warn("key set snapshot save failed", map[string]any{
				"provider": r.name,
				"error":    err,
			})
		}
	}

	return nil
}

func lookup(m *map[string]SigningKey, keyID string) (SigningKey, bool) {
	if m == nil {
		return SigningKey{}, false
	}
	key, ok := (*m)[keyID]
	return key, ok
}
