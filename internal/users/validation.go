package users

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MinNameLength     = 2
	MaxNameLength     = 100
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72
)

var (
	ErrNameRequired     = errors.New("name is required")
	ErrNameLength       = errors.New("name must be between 2 and 100 characters")
	ErrEmailRequired    = errors.New("email is required")
	ErrInvalidEmail     = errors.New("email must be a valid email")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrEmptyUpdate      = errors.New("at least one of name, email or password is required")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail trims and lower-cases an address so lookups and the unique
// index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName trims and NFC-normalizes a display name.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateName(name string) error {
	if name == "" {
		return ErrNameRequired
	}
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return ErrNameLength
	}
	return nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// CreateInput is the payload of POST /api/users.
type CreateInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims and normalizes name and email in place.
func (in *CreateInput) Normalize() {
	in.Name = NormalizeName(in.Name)
	in.Email = NormalizeEmail(in.Email)
}

func (in *CreateInput) Validate() error {
	if err := ValidateName(in.Name); err != nil {
		return err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	return ValidatePassword(in.Password)
}

// UpdateInput is the payload of PUT /api/users/{id}; nil fields are left as is.
type UpdateInput struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (in *UpdateInput) Normalize() {
	if in.Name != nil {
		n := NormalizeName(*in.Name)
		in.Name = &n
	}
	if in.Email != nil {
		e := NormalizeEmail(*in.Email)
		in.Email = &e
	}
}

func (in *UpdateInput) Validate() error {
	if in.Name == nil && in.Email == nil && in.Password == nil {
		return ErrEmptyUpdate
	}
	if in.Name != nil {
		if err := ValidateName(*in.Name); err != nil {
			return err
		}
	}
	if in.Email != nil {
		if err := ValidateEmail(*in.Email); err != nil {
			return err
		}
	}
	if in.Password != nil {
		if err := ValidatePassword(*in.Password); err != nil {
			return err
		}
	}
	return nil
}

// LoginInput is the payload of POST /api/users/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *LoginInput) Normalize() {
	in.Email = NormalizeEmail(in.Email)
}

func (in *LoginInput) Validate() error {
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if in.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// ValidationError marks input errors so the HTTP layer can answer 400.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }
