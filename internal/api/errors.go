package api

import (
	"errors"
	"net/http"

	"github.com/userapi/backend/internal/auth"
	apperrors "github.com/userapi/backend/internal/errors"
	"github.com/userapi/backend/internal/logger"
	"github.com/userapi/backend/internal/users"
)

// toAppError maps domain errors to their HTTP form.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		return apperrors.ValidationError(verr.Error())
	case errors.Is(err, users.ErrEmailExists):
		return apperrors.EmailExists()
	case errors.Is(err, users.ErrNotFound):
		return apperrors.NotFound("User")
	case errors.Is(err, users.ErrInvalidID):
		return apperrors.BadRequest("Invalid user ID format")
	case auth.KindOf(err) != auth.KindUnknown:
		return auth.ToAppError(err)
	}
	return apperrors.AsAppError(err)
}

// errorLogger logs the cause of every 5xx before the generic body is written.
func errorLogger(log *logger.Logger) apperrors.ErrorObserver {
	return func(r *http.Request, err error) {
		if !apperrors.IsServerError(err) {
			return
		}
		cause := err
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Cause != nil {
			cause = appErr.Cause
		}
		log.Error(r.Context(), "request failed", cause, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}
}
