package auth

import (
	"net/http"
	"strings"

	apperrors "github.com/userapi/backend/internal/errors"
)

// Guard admits requests carrying a valid access token.
type Guard struct {
	issuer *TokenIssuer
}

func NewGuard(issuer *TokenIssuer) *Guard {
	return &Guard{issuer: issuer}
}

// Authenticate verifies the bearer access token and attaches the decoded
// identity to the request context.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := apperrors.GetRequestID(r.Context())

		tokenString, ok := BearerToken(r)
		if !ok {
			apperrors.WriteError(w, requestID, ToAppError(ErrMissingToken))
			return
		}

		claims, err := g.issuer.Verify(tokenString, ClassAccess)
		if err != nil {
			apperrors.WriteError(w, requestID, ToAppError(err).WithHint(RefreshHint))
			return
		}

		ctx := WithIdentity(r.Context(), claims.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after Authenticate.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := apperrors.GetRequestID(r.Context())

		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			apperrors.WriteError(w, requestID, apperrors.Unauthorized("Unauthorized"))
			return
		}
		if !identity.IsAdmin() {
			apperrors.WriteError(w, requestID, ToAppError(ErrForbidden).WithDetails(map[string]any{
				"userRole": string(identity.Role),
			}))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
