package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrRecordNotFound is returned by TokenStore.Find for unknown tokens.
var ErrRecordNotFound = errors.New("refresh token record not found")

// RefreshRecord is the persisted form of a non-admin refresh token. Records
// are immutable; only the SHA-256 of the token is kept.
type RefreshRecord struct {
	TokenHash string
	OwnerID   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *RefreshRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// RecordFinder looks up the record of a refresh token.
type RecordFinder interface {
	// Find returns ErrRecordNotFound when no record exists.
	Find(ctx context.Context, token string) (*RefreshRecord, error)
}

// TokenStore persists refresh tokens of non-admin identities.
type TokenStore interface {
	RecordFinder
	// Save inserts a record expiring ttl from now.
	Save(ctx context.Context, ownerID, token string, ttl time.Duration) error
	// Revoke reports whether a record existed and was removed.
	Revoke(ctx context.Context, token string) (bool, error)
	// RevokeAll removes every record of ownerID and returns how many.
	RevokeAll(ctx context.Context, ownerID string) (int64, error)
	// IsExpired is true when the record is absent or past its expiry.
	IsExpired(ctx context.Context, token string) (bool, error)
}

// ExpiredPurger is implemented by stores without native expiry.
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// HashToken is the storage key of a refresh token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// IsExpired implements TokenStore.IsExpired on top of Find for any store.
func IsExpired(ctx context.Context, store RecordFinder, token string, now time.Time) (bool, error) {
	record, err := store.Find(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return true, nil
		}
		return false, err
	}
	return record.Expired(now), nil
}
