package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userapi/backend/internal/auth"
)

func newTestStore(t *testing.T) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFromClient(client).Tokens(nil), mr
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Ping(context.Background()))

	mr.Close()
	_, err = New(context.Background(), mr.Addr(), "", 0)
	assert.Error(t, err)
}

func TestTokenStore_SaveFindRevoke(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "owner-1", "token-a", time.Hour))

	hash := auth.HashToken("token-a")
	assert.True(t, mr.Exists(recordKey(hash)))
	assert.Equal(t, time.Hour, mr.TTL(recordKey(hash)))
	assert.False(t, mr.Exists(recordKey("token-a")), "raw token must not be a key")

	record, err := store.Find(ctx, "token-a")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", record.OwnerID)
	assert.Equal(t, hash, record.TokenHash)
	assert.WithinDuration(t, record.CreatedAt.Add(time.Hour), record.ExpiresAt, time.Millisecond)

	removed, err := store.Revoke(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Revoke(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.Find(ctx, "token-a")
	assert.ErrorIs(t, err, auth.ErrRecordNotFound)
}

func TestTokenStore_NativeExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "owner-1", "token-a", time.Minute))
	mr.FastForward(2 * time.Minute)

	expired, err := store.IsExpired(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestTokenStore_RevokeAll(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "owner-1", "a", time.Hour))
	require.NoError(t, store.Save(ctx, "owner-1", "b", time.Hour))
	require.NoError(t, store.Save(ctx, "owner-2", "c", time.Hour))

	n, err := store.RevokeAll(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.RevokeAll(ctx, "owner-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Find(ctx, "c")
	assert.NoError(t, err)
}

var _ auth.TokenStore = (*TokenStore)(nil)
