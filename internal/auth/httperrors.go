package auth

import (
	apperrors "github.com/userapi/backend/internal/errors"
)

// RefreshHint tells clients how to recover from a rejected access token.
const RefreshHint = "Access token expired or invalid. Use refresh token to get a new one."

// ToAppError maps an auth failure to its HTTP representation. Errors that are
// not *Error become internal errors.
func ToAppError(err error) *apperrors.AppError {
	switch KindOf(err) {
	case KindInvalidCredentials:
		return apperrors.InvalidCredentials()
	case KindMissingToken:
		return apperrors.MissingToken().WithHint("Use: Authorization: Bearer YOUR_ACCESS_TOKEN")
	case KindTokenInvalid:
		return apperrors.InvalidToken("invalid token")
	case KindTokenExpired:
		return apperrors.TokenExpired("token has expired")
	case KindWrongTokenClass:
		return apperrors.WrongTokenClass("invalid token type")
	case KindTokenRevokedOrUnknown:
		return apperrors.TokenRevoked()
	case KindTokenNotFound:
		return apperrors.TokenNotFound()
	case KindForbidden:
		return apperrors.Forbidden("Forbidden: Admin access required")
	default:
		return apperrors.AsAppError(err)
	}
}
