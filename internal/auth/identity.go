package auth

import (
	"context"

	"github.com/userapi/backend/internal/users"
)

// AdminName is the display name of the configured admin identity.
const AdminName = "Admin"

// Identity is the authenticated principal: a stored user or the configured
// admin, whose SubjectID is its email.
type Identity struct {
	SubjectID string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email"`
	Role      users.Role `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == users.RoleAdmin
}

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity stores the request's identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity attached by Guard.Authenticate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}
