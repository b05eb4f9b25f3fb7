// Package memstore keeps users and refresh tokens in process memory. It backs
// DB_DRIVER=memory and the tests of the packages above it.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/userapi/backend/internal/users"
)

// UserStore implements users.Store.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*users.User
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*users.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*users.User, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return clone(user), nil
}

func (s *UserStore) Create(ctx context.Context, user *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return users.ErrEmailExists
	}
	user.ID = uuid.NewString()
	s.byID[user.ID] = clone(user)
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *UserStore) Update(ctx context.Context, id string, fields users.UpdateFields) (*users.User, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	if fields.Email != nil && *fields.Email != user.Email {
		if _, taken := s.byEmail[*fields.Email]; taken {
			return nil, users.ErrEmailExists
		}
		delete(s.byEmail, user.Email)
		user.Email = *fields.Email
		s.byEmail[user.Email] = id
	}
	if fields.Name != nil {
		user.Name = *fields.Name
	}
	if fields.PasswordHash != nil {
		user.PasswordHash = *fields.PasswordHash
	}
	user.UpdatedAt = fields.UpdatedAt
	return clone(user), nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	id, err := canonicalID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	delete(s.byEmail, user.Email)
	delete(s.byID, id)
	return nil
}

// List returns users ordered by creation time.
func (s *UserStore) List(ctx context.Context) ([]*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*users.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Ping always succeeds; it lets the health checker treat all backends alike.
func (s *UserStore) Ping(ctx context.Context) error {
	return nil
}

// canonicalID accepts any uuid spelling postgres would and returns the
// lower-case form ids are stored under.
func canonicalID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", users.ErrInvalidID
	}
	return parsed.String(), nil
}

func clone(u *users.User) *users.User {
	c := *u
	return &c
}
