package auth

import "errors"

// Kind is the closed set of failures the auth core reports. The HTTP layer
// switches on it instead of comparing messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindMissingToken
	KindTokenInvalid
	KindTokenExpired
	KindWrongTokenClass
	KindTokenRevokedOrUnknown
	KindTokenNotFound
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindMissingToken:
		return "missing_token"
	case KindTokenInvalid:
		return "token_invalid"
	case KindTokenExpired:
		return "token_expired"
	case KindWrongTokenClass:
		return "wrong_token_class"
	case KindTokenRevokedOrUnknown:
		return "token_revoked_or_unknown"
	case KindTokenNotFound:
		return "token_not_found"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error is an auth failure of a given Kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error of the same Kind, so wrapped copies compare equal to
// the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ErrMissingToken          = &Error{Kind: KindMissingToken, Message: "no token provided"}
	ErrTokenInvalid          = &Error{Kind: KindTokenInvalid, Message: "invalid token"}
	ErrTokenExpired          = &Error{Kind: KindTokenExpired, Message: "token expired"}
	ErrWrongTokenClass       = &Error{Kind: KindWrongTokenClass, Message: "invalid token type"}
	ErrTokenRevokedOrUnknown = &Error{Kind: KindTokenRevokedOrUnknown, Message: "refresh token not found or revoked"}
	ErrTokenNotFound         = &Error{Kind: KindTokenNotFound, Message: "token not found"}
	ErrForbidden             = &Error{Kind: KindForbidden, Message: "admin access required"}
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
