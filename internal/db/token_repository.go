package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/userapi/backend/internal/auth"
)

// TokenRepository implements auth.TokenStore on PostgreSQL. Rows are removed
// on revocation; expired rows are purged by DeleteExpired.
type TokenRepository struct {
	db  *DB
	now func() time.Time
}

func NewTokenRepository(db *DB, now func() time.Time) *TokenRepository {
	if now == nil {
		now = time.Now
	}
	return &TokenRepository{db: db, now: now}
}

func (r *TokenRepository) Save(ctx context.Context, ownerID, token string, ttl time.Duration) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`

	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, query, auth.HashToken(token), ownerID, now, now.Add(ttl))
	return err
}

func (r *TokenRepository) Find(ctx context.Context, token string) (*auth.RefreshRecord, error) {
	query := `
		SELECT token_hash, user_id, created_at, expires_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	record := &auth.RefreshRecord{}
	err := r.db.QueryRowContext(ctx, query, auth.HashToken(token)).Scan(
		&record.TokenHash, &record.OwnerID, &record.CreatedAt, &record.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrRecordNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, auth.HashToken(token))
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *TokenRepository) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *TokenRepository) IsExpired(ctx context.Context, token string) (bool, error) {
	return auth.IsExpired(ctx, r, token, r.now())
}

func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, r.now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
