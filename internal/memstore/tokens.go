package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/userapi/backend/internal/auth"
)

// TokenStore implements auth.TokenStore and auth.ExpiredPurger.
type TokenStore struct {
	mu      sync.Mutex
	records map[string]auth.RefreshRecord
	now     func() time.Time
}

// NewTokenStore uses time.Now when now is nil.
func NewTokenStore(now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{
		records: make(map[string]auth.RefreshRecord),
		now:     now,
	}
}

func (s *TokenStore) Save(ctx context.Context, ownerID, token string, ttl time.Duration) error {
	now := s.now()
	record := auth.RefreshRecord{
		TokenHash: auth.HashToken(token),
		OwnerID:   ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.TokenHash] = record
	return nil
}

func (s *TokenStore) Find(ctx context.Context, token string) (*auth.RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[auth.HashToken(token)]
	if !ok {
		return nil, auth.ErrRecordNotFound
	}
	return &record, nil
}

func (s *TokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	hash := auth.HashToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[hash]; !ok {
		return false, nil
	}
	delete(s.records, hash)
	return true, nil
}

func (s *TokenStore) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, record := range s.records {
		if record.OwnerID == ownerID {
			delete(s.records, hash)
			n++
		}
	}
	return n, nil
}

func (s *TokenStore) IsExpired(ctx context.Context, token string) (bool, error) {
	return auth.IsExpired(ctx, s, token, s.now())
}

func (s *TokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, record := range s.records {
		if record.Expired(now) {
			delete(s.records, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *TokenStore) Ping(ctx context.Context) error {
	return nil
}
