package users_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/userapi/backend/internal/memstore"
	"github.com/userapi/backend/internal/users"
)

type countingRevoker struct {
	owners []string
}

func (r *countingRevoker) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	r.owners = append(r.owners, ownerID)
	return 1, nil
}

func newService(t *testing.T) (*users.Service, *countingRevoker) {
	t.Helper()
	revoker := &countingRevoker{}
	return users.NewService(users.ServiceConfig{
		Store:      memstore.NewUserStore(),
		Sessions:   revoker,
		BcryptCost: bcrypt.MinCost,
		AdminEmail: "Admin@Example.com",
	}), revoker
}

func ptr(s string) *string { return &s }

func TestService_Create(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, users.CreateInput{Name: "  Ann  ", Email: " ANN@example.com ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.Name)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, users.RoleUser, user.Role)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))

	_, err = svc.Create(ctx, users.CreateInput{Name: "Ann", Email: "ann@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, users.ErrEmailExists)
}

func TestService_CreateRejectsAdminEmail(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), users.CreateInput{Name: "Mallory", Email: "admin@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, users.ErrEmailExists)
}

func TestService_CreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   users.CreateInput
		want error
	}{
		{"missing name", users.CreateInput{Email: "a@example.com", Password: "secret123"}, users.ErrNameRequired},
		{"short name", users.CreateInput{Name: "A", Email: "a@example.com", Password: "secret123"}, users.ErrNameLength},
		{"bad email", users.CreateInput{Name: "Ann", Email: "nope", Password: "secret123"}, users.ErrInvalidEmail},
		{"short password", users.CreateInput{Name: "Ann", Email: "a@example.com", Password: "12345"}, users.ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			var verr *users.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Update(t *testing.T) {
	svc, revoker := newService(t)
	ctx := context.Background()

	ann, err := svc.Create(ctx, users.CreateInput{Name: "Ann", Email: "ann@example.com", Password: "secret123"})
	require.NoError(t, err)
	bob, err := svc.Create(ctx, users.CreateInput{Name: "Bob", Email: "bob@example.com", Password: "secret123"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, ann.ID, users.UpdateInput{Name: ptr("Annie"), Email: ptr("ann@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "Annie", updated.Name)
	assert.Empty(t, revoker.owners)

	_, err = svc.Update(ctx, ann.ID, users.UpdateInput{Email: ptr("BOB@example.com")})
	assert.ErrorIs(t, err, users.ErrEmailExists)

	_, err = svc.Update(ctx, bob.ID, users.UpdateInput{})
	assert.ErrorIs(t, err, users.ErrEmptyUpdate)

	updated, err = svc.Update(ctx, bob.ID, users.UpdateInput{Password: ptr("new-secret")})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("new-secret")))
	assert.Equal(t, []string{bob.ID}, revoker.owners)
}

func TestService_Delete(t *testing.T) {
	svc, revoker := newService(t)
	ctx := context.Background()

	ann, err := svc.Create(ctx, users.CreateInput{Name: "Ann", Email: "ann@example.com", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, ann.ID))
	assert.Equal(t, []string{ann.ID}, revoker.owners)

	_, err = svc.Get(ctx, ann.ID)
	assert.ErrorIs(t, err, users.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, ann.ID), users.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "xyz"), users.ErrInvalidID)
}

func TestService_UpperCaseIDResolvesToStoredUser(t *testing.T) {
	tokens := memstore.NewTokenStore(nil)
	svc := users.NewService(users.ServiceConfig{
		Store:      memstore.NewUserStore(),
		Sessions:   tokens,
		BcryptCost: bcrypt.MinCost,
	})
	ctx := context.Background()

	ann, err := svc.Create(ctx, users.CreateInput{Name: "Ann", Email: "ann@example.com", Password: "secret123"})
	require.NoError(t, err)
	upper := strings.ToUpper(ann.ID)

	updated, err := svc.Update(ctx, upper, users.UpdateInput{Name: ptr("Annie"), Email: ptr("ann@example.com")})
	require.NoError(t, err)
	assert.Equal(t, ann.ID, updated.ID)
	assert.Equal(t, "Annie", updated.Name)

	require.NoError(t, tokens.Save(ctx, ann.ID, "refresh-1", time.Hour))
	require.NoError(t, tokens.Save(ctx, ann.ID, "refresh-2", time.Hour))

	_, err = svc.Update(ctx, upper, users.UpdateInput{Password: ptr("new-secret")})
	require.NoError(t, err)
	assert.Equal(t, 0, tokens.Len())

	require.NoError(t, tokens.Save(ctx, ann.ID, "refresh-3", time.Hour))
	require.NoError(t, svc.Delete(ctx, upper))
	assert.Equal(t, 0, tokens.Len())

	_, err = svc.Get(ctx, ann.ID)
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestUser_PublicOmitsHash(t *testing.T) {
	u := &users.User{ID: "1", Name: "Ann", Email: "a@example.com", PasswordHash: "hash", Role: users.RoleUser}

	pub := u.Public()
	assert.Equal(t, u.ID, pub.ID)
	assert.Equal(t, u.Email, pub.Email)
}

func TestNormalizeName_NFC(t *testing.T) {
	assert.Equal(t, "Jos\u00e9", users.NormalizeName("  Jose\u0301 "))
}
