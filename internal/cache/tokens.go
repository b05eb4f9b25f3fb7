package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userapi/backend/internal/auth"
)

const (
	recordPrefix = "refresh:"
	ownerPrefix  = "refresh:owner:"
)

func recordKey(hash string) string { return recordPrefix + hash }

func ownerKey(ownerID string) string { return ownerPrefix + ownerID }

// TokenStore implements auth.TokenStore. Each record is a hash under
// refresh:<sha256> expiring with the token; refresh:owner:<id> indexes an
// owner's record hashes for RevokeAll.
type TokenStore struct {
	client *redis.Client
	now    func() time.Time
}

func (s *TokenStore) Save(ctx context.Context, ownerID, token string, ttl time.Duration) error {
	now := s.now().UTC()
	hash := auth.HashToken(token)
	key := recordKey(hash)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"ownerId", ownerID,
			"createdAt", now.Format(time.RFC3339Nano),
			"expiresAt", now.Add(ttl).Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, ownerKey(ownerID), hash)
		pipe.Expire(ctx, ownerKey(ownerID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save refresh record: %w", err)
	}
	return nil
}

func (s *TokenStore) Find(ctx context.Context, token string) (*auth.RefreshRecord, error) {
	hash := auth.HashToken(token)

	fields, err := s.client.HGetAll(ctx, recordKey(hash)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, auth.ErrRecordNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["createdAt"])
	if err != nil {
		return nil, fmt.Errorf("decode refresh record: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expiresAt"])
	if err != nil {
		return nil, fmt.Errorf("decode refresh record: %w", err)
	}

	return &auth.RefreshRecord{
		TokenHash: hash,
		OwnerID:   fields["ownerId"],
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *TokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	hash := auth.HashToken(token)
	key := recordKey(hash)

	ownerID, err := s.client.HGet(ctx, key, "ownerId").Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, key)
		pipe.SRem(ctx, ownerKey(ownerID), hash)
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted.Val() > 0, nil
}

func (s *TokenStore) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	hashes, err := s.client.SMembers(ctx, ownerKey(ownerID)).Result()
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, recordKey(h))
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, ownerKey(ownerID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted == nil {
		return 0, nil
	}
	return deleted.Val(), nil
}

func (s *TokenStore) IsExpired(ctx context.Context, token string) (bool, error) {
	return auth.IsExpired(ctx, s, token, s.now())
}
