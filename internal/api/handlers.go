package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/userapi/backend/internal/auth"
	apperrors "github.com/userapi/backend/internal/errors"
	"github.com/userapi/backend/internal/users"
)

const (
	refreshCookieName = "refreshToken"
	maxBodyBytes      = 1 << 20
)

// Handlers serves the /api/users routes.
type Handlers struct {
	users         *users.Service
	sessions      *auth.SessionManager
	secureCookies bool
}

func NewHandlers(userService *users.Service, sessions *auth.SessionManager, secureCookies bool) *Handlers {
	return &Handlers{
		users:         userService,
		sessions:      sessions,
		secureCookies: secureCookies,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	User         any    `json:"user"`
}

type refreshResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

type logoutAllResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

// adminView is how the configured admin is rendered in place of a user record.
type adminView struct {
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  users.Role `json:"role"`
}

type createdUser struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  users.Role `json:"role"`
}

// decodeJSON reads a JSON body into v. An empty body is allowed when
// allowEmpty is set and leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.BadRequest("invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), status, data)
}

func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/users",
		MaxAge:   int(h.sessions.Issuer().RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/users",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func identityFromRequest(r *http.Request) (auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, apperrors.Unauthorized("Unauthorized")
	}
	return identity, nil
}

// Login handles POST /api/users/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	var in users.LoginInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		return err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return &users.ValidationError{Err: err}
	}

	result, err := h.sessions.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		return err
	}

	var user any
	if result.User != nil {
		user = result.User.Public()
	} else {
		user = adminView{Email: result.Identity.Email, Name: auth.AdminName, Role: result.Identity.Role}
	}

	h.setRefreshCookie(w, result.RefreshToken)
	writeJSON(w, r, http.StatusOK, loginResponse{
		Message:      "Login successful",
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         user,
	})
	return nil
}

// Refresh handles POST /api/users/refresh. The token comes from the body and
// falls back to the refreshToken cookie.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	var req refreshRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		return err
	}
	token := req.RefreshToken
	if token == "" {
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return apperrors.BadRequest("Refresh token required")
	}

	result, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		return err
	}

	writeJSON(w, r, http.StatusOK, refreshResponse{
		Message:     "Token refreshed successfully",
		AccessToken: result.AccessToken,
		ExpiresIn:   result.ExpiresIn,
	})
	return nil
}

// Logout handles POST /api/users/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return apperrors.BadRequest("Refresh token required")
	}

	if err := h.sessions.Logout(r.Context(), identity, req.RefreshToken); err != nil {
		return err
	}

	h.clearRefreshCookie(w)
	writeJSON(w, r, http.StatusOK, messageResponse{Message: "Logged out successfully"})
	return nil
}

// LogoutAll handles POST /api/users/logout-all
func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	n, err := h.sessions.LogoutAll(r.Context(), identity)
	if err != nil {
		return err
	}

	h.clearRefreshCookie(w)
	writeJSON(w, r, http.StatusOK, logoutAllResponse{Message: "Logged out from all sessions", Revoked: n})
	return nil
}

// Me handles GET /api/users/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	if identity.IsAdmin() {
		writeJSON(w, r, http.StatusOK, adminView{Email: identity.Email, Name: auth.AdminName, Role: identity.Role})
		return nil
	}

	user, err := h.users.Get(r.Context(), identity.SubjectID)
	if err != nil {
		return err
	}
	writeJSON(w, r, http.StatusOK, user.Public())
	return nil
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) error {
	var in users.CreateInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		return err
	}

	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		return err
	}

	writeJSON(w, r, http.StatusCreated, createdUser{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	})
	return nil
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) error {
	list, err := h.users.List(r.Context())
	if err != nil {
		return err
	}

	out := make([]*users.PublicUser, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	writeJSON(w, r, http.StatusOK, out)
	return nil
}

// GetUser handles GET /api/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) error {
	user, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, r, http.StatusOK, user.Public())
	return nil
}

// UpdateUser handles PUT /api/users/{id}
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) error {
	var in users.UpdateInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		return err
	}

	user, err := h.users.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		return err
	}
	writeJSON(w, r, http.StatusOK, user.Public())
	return nil
}

// DeleteUser handles DELETE /api/users/{id}
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) error {
	if err := h.users.Delete(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	writeJSON(w, r, http.StatusOK, messageResponse{Message: "User deleted successfully"})
	return nil
}
