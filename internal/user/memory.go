package user

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository for tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
	links map[identityKey]uuid.UUID

	creates int
	updates int
}

type identityKey struct {
	provider string
	subject  string
}

// NewMemoryRepository stores copies of seed, each linked to its
// OAuthType and ProviderUserID.
func NewMemoryRepository(seed ...*User) *MemoryRepository {
	m := &MemoryRepository{
		users: make(map[string]*User),
		links: make(map[identityKey]uuid.UUID),
	}
	for _, u := range seed {
		c := *u
		m.users[u.ID.String()] = &c
		m.link(u.ID, u.OAuthType, u.ProviderUserID)
	}
	return m
}

// link must be called with mu held.
func (m *MemoryRepository) link(id uuid.UUID, provider, subject string) {
	if provider == "" || subject == "" {
		return
	}
	k := identityKey{provider, subject}
	if _, taken := m.links[k]; !taken {
		m.links[k] = id
	}
}

func (m *MemoryRepository) FindOne(_ context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if !u.IsDeleted && strings.ToLower(u.Email) == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok || u.IsDeleted {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *MemoryRepository) FindByProvider(_ context.Context, provider, subject string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.links[identityKey{provider, subject}]
	if !ok {
		return nil, nil
	}
	u, ok := m.users[id.String()]
	if !ok || u.IsDeleted {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *MemoryRepository) LinkIdentity(_ context.Context, userID uuid.UUID, provider, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID.String()]; !ok {
		return ErrNotFound
	}
	m.link(userID, provider, subject)
	return nil
}

func (m *MemoryRepository) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if !existing.IsDeleted && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	c := *u
	m.users[u.ID.String()] = &c
	m.link(u.ID, u.OAuthType, u.ProviderUserID)
	m.creates++
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID.String()]; !ok {
		return ErrNotFound
	}
	c := *u
	m.users[u.ID.String()] = &c
	m.updates++
	return nil
}

// Counts returns how many creates and updates have been applied.
func (m *MemoryRepository) Counts() (creates, updates int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creates, m.updates
}

// Len returns the number of stored accounts, deleted ones included.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// Links returns the providers linked to the account, in no order.
func (m *MemoryRepository) Links(userID uuid.UUID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var providers []string
	for k, id := range m.links {
		if id == userID {
			providers = append(providers, k.provider)
		}
	}
	return providers
}
