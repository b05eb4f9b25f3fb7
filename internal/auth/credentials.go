package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/userapi/backend/internal/users"
)

// UserFinder is the slice of user storage the verifier needs.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
}

// AdminCredentials is the single configuration-defined admin identity. An
// empty Email disables it.
type AdminCredentials struct {
	Email    string
	Password string
}

// CredentialVerifier checks an email/password pair against either the admin
// credentials or a stored bcrypt hash.
type CredentialVerifier struct {
	users UserFinder
	admin AdminCredentials
}

func NewCredentialVerifier(finder UserFinder, admin AdminCredentials) *CredentialVerifier {
	admin.Email = users.NormalizeEmail(admin.Email)
	return &CredentialVerifier{users: finder, admin: admin}
}

// IsAdminEmail reports whether email names the configured admin.
func (v *CredentialVerifier) IsAdminEmail(email string) bool {
	return v.admin.Email != "" && users.NormalizeEmail(email) == v.admin.Email
}

// Verify returns the identity for a valid pair. Unknown email and wrong
// password both yield ErrInvalidCredentials. The stored user is returned for
// non-admin identities so callers can render it without a second lookup.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (Identity, *users.User, error) {
	email = users.NormalizeEmail(email)

	if v.IsAdminEmail(email) {
		if subtle.ConstantTimeCompare([]byte(password), []byte(v.admin.Password)) != 1 {
			return Identity{}, nil, ErrInvalidCredentials
		}
		return Identity{
			SubjectID: v.admin.Email,
			Name:      AdminName,
			Email:     v.admin.Email,
			Role:      users.RoleAdmin,
		}, nil, nil
	}

	user, err := v.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Identity{}, nil, ErrInvalidCredentials
		}
		return Identity{}, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Identity{}, nil, ErrInvalidCredentials
	}

	role := user.Role
	if role == "" {
		role = users.RoleUser
	}
	return Identity{
		SubjectID: user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      role,
	}, user, nil
}
