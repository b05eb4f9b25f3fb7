package auth

import (
	"context"
	"errors"
	"time"

	"github.com/userapi/backend/internal/logger"
	"github.com/userapi/backend/internal/metrics"
	"github.com/userapi/backend/internal/users"
)

// Observer receives session outcomes; *metrics.Metrics implements it.
type Observer interface {
	ObserveLogin(result string)
	ObserveRefresh(result string)
	ObserveLogout(result string)
	AddRevoked(n int64)
}

type noopObserver struct{}

func (noopObserver) ObserveLogin(string)   {}
func (noopObserver) ObserveRefresh(string) {}
func (noopObserver) ObserveLogout(string)  {}
func (noopObserver) AddRevoked(int64)      {}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Identity     Identity
	// User is nil for the admin identity.
	User *users.User
}

// RefreshResult carries the newly minted access token.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int
	Identity    Identity
}

// SessionManager orchestrates login, refresh and logout.
type SessionManager struct {
	verifier *CredentialVerifier
	issuer   *TokenIssuer
	store    TokenStore
	observer Observer
	now      func() time.Time
	log      *logger.Logger
}

// SessionConfig wires a SessionManager.
type SessionConfig struct {
	Verifier *CredentialVerifier
	Issuer   *TokenIssuer
	Store    TokenStore
	Observer Observer
	Now      func() time.Time
	Logger   *logger.Logger
}

func NewSessionManager(cfg SessionConfig) *SessionManager {
	m := &SessionManager{
		verifier: cfg.Verifier,
		issuer:   cfg.Issuer,
		store:    cfg.Store,
		observer: cfg.Observer,
		now:      cfg.Now,
		log:      cfg.Logger,
	}
	if m.observer == nil {
		m.observer = noopObserver{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = logger.Default()
	}
	m.log = m.log.WithComponent("session")
	return m
}

// Issuer exposes the token issuer used by the guard.
func (m *SessionManager) Issuer() *TokenIssuer {
	return m.issuer
}

func (m *SessionManager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	identity, user, err := m.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			m.observer.ObserveLogin(metrics.ResultFailure)
			m.log.Warn(ctx, "login rejected", map[string]interface{}{"email": users.NormalizeEmail(email)})
		} else {
			m.observer.ObserveLogin(metrics.ResultError)
		}
		return nil, err
	}

	accessToken, err := m.issuer.IssueAccessToken(identity.SubjectID, identity.Email, identity.Role)
	if err != nil {
		m.observer.ObserveLogin(metrics.ResultError)
		return nil, err
	}
	refreshToken, err := m.issuer.IssueRefreshToken(identity.SubjectID, identity.Email, identity.Role)
	if err != nil {
		m.observer.ObserveLogin(metrics.ResultError)
		return nil, err
	}

	// Admin sessions are stateless.
	if !identity.IsAdmin() {
		if err := m.store.Save(ctx, identity.SubjectID, refreshToken, m.issuer.RefreshTTL()); err != nil {
			m.observer.ObserveLogin(metrics.ResultError)
			return nil, err
		}
	}

	m.observer.ObserveLogin(metrics.ResultSuccess)
	m.log.Info(ctx, "login succeeded", map[string]interface{}{
		"user_id": identity.SubjectID,
		"role":    string(identity.Role),
	})

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(m.issuer.AccessTTL().Seconds()),
		Identity:     identity,
		User:         user,
	}, nil
}

// Refresh mints a new access token. The refresh token itself is left as is;
// only logout revokes it.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := m.issuer.Verify(refreshToken, ClassRefresh)
	if err != nil {
		m.observer.ObserveRefresh(metrics.ResultFailure)
		return nil, err
	}
	identity := claims.Identity()

	if !identity.IsAdmin() {
		record, err := m.store.Find(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				m.observer.ObserveRefresh(metrics.ResultFailure)
				return nil, ErrTokenRevokedOrUnknown
			}
			m.observer.ObserveRefresh(metrics.ResultError)
			return nil, err
		}
		if record.Expired(m.now()) {
			if _, err := m.store.Revoke(ctx, refreshToken); err != nil {
				m.log.Warn(ctx, "purge of expired refresh record failed", map[string]interface{}{
					"user_id": record.OwnerID,
					"error":   err.Error(),
				})
			}
			m.observer.ObserveRefresh(metrics.ResultFailure)
			return nil, ErrTokenExpired
		}
	}

	accessToken, err := m.issuer.IssueAccessToken(identity.SubjectID, identity.Email, identity.Role)
	if err != nil {
		m.observer.ObserveRefresh(metrics.ResultError)
		return nil, err
	}

	m.observer.ObserveRefresh(metrics.ResultSuccess)
	return &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   int(m.issuer.AccessTTL().Seconds()),
		Identity:    identity,
	}, nil
}

// Logout revokes one refresh token. Admin callers succeed without touching
// the store.
func (m *SessionManager) Logout(ctx context.Context, caller Identity, refreshToken string) error {
	if caller.IsAdmin() {
		m.observer.ObserveLogout(metrics.ResultSuccess)
		return nil
	}

	removed, err := m.store.Revoke(ctx, refreshToken)
	if err != nil {
		m.observer.ObserveLogout(metrics.ResultError)
		return err
	}
	if !removed {
		m.observer.ObserveLogout(metrics.ResultFailure)
		return ErrTokenNotFound
	}

	m.observer.ObserveLogout(metrics.ResultSuccess)
	m.observer.AddRevoked(1)
	m.log.Info(ctx, "logout", map[string]interface{}{"user_id": caller.SubjectID})
	return nil
}

// LogoutAll revokes every refresh token of the caller.
func (m *SessionManager) LogoutAll(ctx context.Context, caller Identity) (int64, error) {
	if caller.IsAdmin() {
		m.observer.ObserveLogout(metrics.ResultSuccess)
		return 0, nil
	}

	n, err := m.store.RevokeAll(ctx, caller.SubjectID)
	if err != nil {
		m.observer.ObserveLogout(metrics.ResultError)
		return 0, err
	}

	m.observer.ObserveLogout(metrics.ResultSuccess)
	m.observer.AddRevoked(n)
	m.log.Info(ctx, "logout from all sessions", map[string]interface{}{
		"user_id": caller.SubjectID,
		"revoked": n,
	})
	return n, nil
}
