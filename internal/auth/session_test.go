package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userapi/backend/internal/metrics"
)

func TestSessionManager_LoginRefreshRoundTrip(t *testing.T) {
	user := newTestUser("user-1", "a@example.com", "secret123")
	f := newSessionFixture(user)
	ctx := context.Background()

	login, err := f.manager.Login(ctx, " A@Example.com ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, int(DefaultAccessTokenTTL.Seconds()), login.ExpiresIn)
	assert.Equal(t, "user-1", login.Identity.SubjectID)
	assert.Same(t, user, login.User)

	expired, err := f.store.IsExpired(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.False(t, expired)

	original, err := f.issuer.Verify(login.RefreshToken, ClassRefresh)
	require.NoError(t, err)
	firstAccess, err := f.issuer.Verify(login.AccessToken, ClassAccess)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	refreshed, err := f.manager.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)

	claims, err := f.issuer.Verify(refreshed.AccessToken, ClassAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.SubjectID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, firstAccess.Role, claims.Role)
	assert.GreaterOrEqual(t, claims.ExpiresAt.Unix(), firstAccess.ExpiresAt.Unix())

	// The refresh token stays valid and keeps its expiry.
	again, err := f.issuer.Verify(login.RefreshToken, ClassRefresh)
	require.NoError(t, err)
	assert.Equal(t, original.ExpiresAt.Unix(), again.ExpiresAt.Unix())

	assert.Equal(t, []string{metrics.ResultSuccess}, f.observer.logins)
	assert.Equal(t, []string{metrics.ResultSuccess}, f.observer.refreshes)
}

func TestSessionManager_LoginInvalidCredentials(t *testing.T) {
	f := newSessionFixture(newTestUser("user-1", "a@example.com", "secret123"))
	ctx := context.Background()

	_, err := f.manager.Login(ctx, "a@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.manager.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.manager.Login(ctx, testAdminEmail, "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, 0, f.store.callCount())
	assert.Equal(t, []string{metrics.ResultFailure, metrics.ResultFailure, metrics.ResultFailure}, f.observer.logins)
}

func TestSessionManager_RefreshRejectsAccessToken(t *testing.T) {
	f := newSessionFixture(newTestUser("user-1", "a@example.com", "secret123"))
	ctx := context.Background()

	login, err := f.manager.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)

	_, err = f.manager.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenClass)
}

func TestSessionManager_LogoutRevokes(t *testing.T) {
	f := newSessionFixture(newTestUser("user-1", "a@example.com", "secret123"))
	ctx := context.Background()

	login, err := f.manager.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.manager.Logout(ctx, login.Identity, login.RefreshToken))

	_, err = f.manager.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevokedOrUnknown)

	err = f.manager.Logout(ctx, login.Identity, login.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	expired, err := f.store.IsExpired(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, int64(1), f.observer.revoked)
}

func TestSessionManager_RefreshPurgesExpiredRecord(t *testing.T) {
	f := newSessionFixture(newTestUser("user-1", "a@example.com", "secret123"))
	ctx := context.Background()

	login, err := f.manager.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)

	// Shorten the stored record so it lapses before the JWT does.
	require.NoError(t, f.store.Save(ctx, "user-1", login.RefreshToken, time.Minute))
	f.clock.Advance(2 * time.Minute)

	_, err = f.manager.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = f.store.Find(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestSessionManager_RefreshAfterJWTExpiry(t *testing.T) {
	f := newSessionFixture(newTestUser("user-1", "a@example.com", "secret123"))
	ctx := context.Background()

	login, err := f.manager.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)

	f.clock.Advance(DefaultRefreshTokenTTL + time.Second)

	_, err = f.manager.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSessionManager_AdminNeverTouchesStore(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	login, err := f.manager.Login(ctx, "Admin@Example.com", testAdminPassword)
	require.NoError(t, err)
	assert.True(t, login.Identity.IsAdmin())
	assert.Equal(t, testAdminEmail, login.Identity.SubjectID)
	assert.Equal(t, AdminName, login.Identity.Name)
	assert.Nil(t, login.User)

	refreshed, err := f.manager.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.True(t, refreshed.Identity.IsAdmin())

	require.NoError(t, f.manager.Logout(ctx, login.Identity, login.RefreshToken))

	n, err := f.manager.LogoutAll(ctx, login.Identity)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, 0, f.store.callCount())
}

func TestSessionManager_LogoutAll(t *testing.T) {
	f := newSessionFixture(
		newTestUser("user-1", "a@example.com", "secret123"),
		newTestUser("user-2", "b@example.com", "secret123"),
	)
	ctx := context.Background()

	first, err := f.manager.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	_, err = f.manager.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	other, err := f.manager.Login(ctx, "b@example.com", "secret123")
	require.NoError(t, err)

	n, err := f.manager.LogoutAll(ctx, first.Identity)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = f.manager.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevokedOrUnknown)

	_, err = f.manager.Refresh(ctx, other.RefreshToken)
	assert.NoError(t, err)
}

func TestSweeper_SweepOnce(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "user-1", "short", time.Minute))
	require.NoError(t, store.Save(ctx, "user-1", "long", time.Hour))
	clock.Advance(2 * time.Minute)

	var swept int64
	sweeper := NewSweeper(store, time.Hour, func(n int64) { swept += n }, nil)

	assert.Equal(t, int64(1), sweeper.SweepOnce(ctx))
	assert.Equal(t, int64(1), swept)

	_, err := store.Find(ctx, "long")
	assert.NoError(t, err)
}

func TestSweeper_NonPositiveIntervalFallsBack(t *testing.T) {
	store := newFakeStore(time.Now)

	for _, interval := range []time.Duration{0, -time.Minute} {
		sweeper := NewSweeper(store, interval, nil, nil)
		assert.Equal(t, DefaultSweepInterval, sweeper.interval)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NotPanics(t, func() { sweeper.Run(ctx) })
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	store := newFakeStore(time.Now)
	sweeper := NewSweeper(store, time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
