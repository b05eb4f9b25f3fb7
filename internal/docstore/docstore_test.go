package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/userapi/backend/internal/auth"
	"github.com/userapi/backend/internal/users"
)

func TestParseID(t *testing.T) {
	oid := bson.NewObjectID()

	got, err := parseID(oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	_, err = parseID("not-an-object-id")
	assert.ErrorIs(t, err, users.ErrInvalidID)
}

func TestUserDoc_ToUser(t *testing.T) {
	doc := userDoc{ID: bson.NewObjectID(), Name: "Ann", Email: "ann@example.com", PasswordHash: "h", Role: users.RoleUser}

	u := doc.toUser()
	assert.Equal(t, doc.ID.Hex(), u.ID)
	assert.Equal(t, "h", u.PasswordHash)
}

// connect returns a client on a throwaway database, or skips when
// MONGODB_TEST_URI is unset.
func connect(t *testing.T) *Client {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := Connect(ctx, uri, "userapi_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	require.NoError(t, c.EnsureIndexes(ctx))

	t.Cleanup(func() {
		ctx := context.Background()
		_ = c.db.Drop(ctx)
		_ = c.Close(ctx)
	})
	return c
}

func TestUserStore_Integration(t *testing.T) {
	c := connect(t)
	store := c.Users()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	u := &users.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "h", Role: users.RoleUser, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Create(ctx, u))
	assert.ErrorIs(t, store.Create(ctx, &users.User{Email: "ann@example.com"}), users.ErrEmailExists)

	name := "Annie"
	updated, err := store.Update(ctx, u.ID, users.UpdateFields{Name: &name, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, "Annie", updated.Name)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, u.ID))
	_, err = store.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestTokenStore_Integration(t *testing.T) {
	c := connect(t)
	store := c.Tokens(nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "owner-1", "token-a", time.Hour))
	require.NoError(t, store.Save(ctx, "owner-1", "token-b", time.Hour))

	record, err := store.Find(ctx, "token-a")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", record.OwnerID)

	removed, err := store.Revoke(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = store.Find(ctx, "token-a")
	assert.ErrorIs(t, err, auth.ErrRecordNotFound)

	n, err := store.RevokeAll(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

var (
	_ users.Store     = (*UserStore)(nil)
	_ auth.TokenStore = (*TokenStore)(nil)
)
