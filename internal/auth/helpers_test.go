package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/userapi/backend/internal/users"
)

const (
	testSecret        = "test-secret"
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "admin-pass"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeFinder struct {
	byEmail map[string]*users.User
}

func newFakeFinder(list ...*users.User) *fakeFinder {
	f := &fakeFinder{byEmail: make(map[string]*users.User)}
	for _, u := range list {
		f.byEmail[u.Email] = u
	}
	return f
}

func (f *fakeFinder) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

// fakeStore counts every call so tests can assert that admin sessions never
// reach storage.
type fakeStore struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]RefreshRecord
	calls   int
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{now: now, records: make(map[string]RefreshRecord)}
}

func (s *fakeStore) Save(ctx context.Context, ownerID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	now := s.now()
	s.records[HashToken(token)] = RefreshRecord{
		TokenHash: HashToken(token),
		OwnerID:   ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

func (s *fakeStore) Find(ctx context.Context, token string) (*RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	r, ok := s.records[HashToken(token)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &r, nil
}

func (s *fakeStore) Revoke(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	hash := HashToken(token)
	if _, ok := s.records[hash]; !ok {
		return false, nil
	}
	delete(s.records, hash)
	return true, nil
}

func (s *fakeStore) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var n int64
	for k, r := range s.records {
		if r.OwnerID == ownerID {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) IsExpired(ctx context.Context, token string) (bool, error) {
	return IsExpired(ctx, s, token, s.now())
}

func (s *fakeStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, r := range s.records {
		if r.Expired(s.now()) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingObserver struct {
	logins, refreshes, logouts []string
	revoked                    int64
}

func (o *recordingObserver) ObserveLogin(result string)   { o.logins = append(o.logins, result) }
func (o *recordingObserver) ObserveRefresh(result string) { o.refreshes = append(o.refreshes, result) }
func (o *recordingObserver) ObserveLogout(result string)  { o.logouts = append(o.logouts, result) }
func (o *recordingObserver) AddRevoked(n int64)           { o.revoked += n }

func newTestUser(id, email, password string) *users.User {
	hash, err := users.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return &users.User{
		ID:           id,
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Role:         users.RoleUser,
	}
}

type sessionFixture struct {
	clock    *fakeClock
	store    *fakeStore
	observer *recordingObserver
	issuer   *TokenIssuer
	manager  *SessionManager
}

func newSessionFixture(list ...*users.User) *sessionFixture {
	clock := newFakeClock()
	store := newFakeStore(clock.Now)
	observer := &recordingObserver{}
	issuer := NewTokenIssuer(IssuerConfig{Secret: testSecret, Now: clock.Now})
	verifier := NewCredentialVerifier(newFakeFinder(list...), AdminCredentials{
		Email:    testAdminEmail,
		Password: testAdminPassword,
	})
	return &sessionFixture{
		clock:    clock,
		store:    store,
		observer: observer,
		issuer:   issuer,
		manager: NewSessionManager(SessionConfig{
			Verifier: verifier,
			Issuer:   issuer,
			Store:    store,
			Observer: observer,
			Now:      clock.Now,
		}),
	}
}
