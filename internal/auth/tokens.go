package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/userapi/backend/internal/users"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	tokenIssuer            = "userapi"
)

// TokenClass distinguishes access tokens from refresh tokens.
type TokenClass string

const (
	ClassAccess  TokenClass = "access"
	ClassRefresh TokenClass = "refresh"
)

// Claims is the signed payload of both token classes.
type Claims struct {
	SubjectID string     `json:"userId"`
	Email     string     `json:"email"`
	Role      users.Role `json:"role"`
	Class     TokenClass `json:"type"`
	jwt.RegisteredClaims
}

// Identity returns the principal the claims describe.
func (c *Claims) Identity() Identity {
	id := Identity{SubjectID: c.SubjectID, Email: c.Email, Role: c.Role}
	if id.IsAdmin() {
		id.Name = AdminName
	}
	return id
}

// TokenIssuer mints and verifies HS256 tokens with a process-wide secret.
// Verification never touches storage.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerConfig configures a TokenIssuer; zero TTLs use the defaults.
type IssuerConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func NewTokenIssuer(cfg IssuerConfig) *TokenIssuer {
	i := &TokenIssuer{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}
	if i.accessTTL <= 0 {
		i.accessTTL = DefaultAccessTokenTTL
	}
	if i.refreshTTL <= 0 {
		i.refreshTTL = DefaultRefreshTokenTTL
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i
}

// AccessTTL is the lifetime of access tokens.
func (i *TokenIssuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL is the lifetime of refresh tokens and of their store records.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *TokenIssuer) IssueAccessToken(subjectID, email string, role users.Role) (string, error) {
	return i.issue(subjectID, email, role, ClassAccess, i.accessTTL)
}

func (i *TokenIssuer) IssueRefreshToken(subjectID, email string, role users.Role) (string, error) {
	return i.issue(subjectID, email, role, ClassRefresh, i.refreshTTL)
}

func (i *TokenIssuer) issue(subjectID, email string, role users.Role, class TokenClass, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		SubjectID: subjectID,
		Email:     email,
		Role:      role,
		Class:     class,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature, expiry and class, in that order.
func (i *TokenIssuer) Verify(tokenString string, expected TokenClass) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.SubjectID == "" || !claims.Role.Valid() {
		return nil, ErrTokenInvalid
	}
	if claims.Class != expected {
		return nil, ErrWrongTokenClass
	}

	return claims, nil
}
