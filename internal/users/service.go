package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/userapi/backend/internal/logger"
)

// SessionRevoker drops every refresh token of an owner. The token store
// satisfies it.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, ownerID string) (int64, error)
}

// Service implements user CRUD on top of a Store.
type Service struct {
	store      Store
	sessions   SessionRevoker
	bcryptCost int
	adminEmail string
	now        func() time.Time
	log        *logger.Logger
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store    Store
	Sessions SessionRevoker
	// BcryptCost below bcrypt.DefaultCost is raised to it.
	BcryptCost int
	// AdminEmail is reserved and can never belong to a stored user.
	AdminEmail string
	Now        func() time.Time
	Logger     *logger.Logger
}

func NewService(cfg ServiceConfig) *Service {
	cost := cfg.BcryptCost
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		store:      cfg.Store,
		sessions:   cfg.Sessions,
		bcryptCost: cost,
		adminEmail: NormalizeEmail(cfg.AdminEmail),
		now:        now,
		log:        log.WithComponent("users"),
	}
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if s.isAdminEmail(in.Email) {
		return nil, ErrEmailExists
	}

	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// The unique index still decides races between concurrent creates.
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user created", map[string]interface{}{"user_id": user.ID})
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.store.List(ctx)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*User, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	// Backends accept several spellings of an id; compare and revoke by the
	// stored one.
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := UpdateFields{
		Name:      in.Name,
		Email:     in.Email,
		UpdatedAt: s.now().UTC(),
	}

	if in.Email != nil {
		if s.isAdminEmail(*in.Email) {
			return nil, ErrEmailExists
		}
		existing, err := s.store.FindByEmail(ctx, *in.Email)
		switch {
		case err == nil && existing.ID != current.ID:
			return nil, ErrEmailExists
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	if in.Password != nil {
		hash, err := HashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		fields.PasswordHash = &hash
	}

	user, err := s.store.Update(ctx, current.ID, fields)
	if err != nil {
		return nil, err
	}

	if fields.PasswordHash != nil {
		s.revokeSessions(ctx, user.ID, "password changed")
	}
	return user, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.revokeSessions(ctx, user.ID, "user deleted")
	s.log.Info(ctx, "user deleted", map[string]interface{}{"user_id": user.ID})
	return nil
}

// revokeSessions is best effort: records that survive expire on their own.
func (s *Service) revokeSessions(ctx context.Context, id, reason string) {
	if s.sessions == nil {
		return
	}
	n, err := s.sessions.RevokeAll(ctx, id)
	if err != nil {
		s.log.Error(ctx, "revoke sessions failed", err, map[string]interface{}{"user_id": id, "reason": reason})
		return
	}
	s.log.Info(ctx, "sessions revoked", map[string]interface{}{"user_id": id, "reason": reason, "revoked": n})
}

func (s *Service) isAdminEmail(email string) bool {
	return s.adminEmail != "" && email == s.adminEmail
}
