package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Common authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserRevoked        = errors.New("user is revoked")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrRateLimited        = errors.New("too many login attempts")
)

// Claims are the JWT claims carried by a session token. The jti (in
// RegisteredClaims.ID) ties the token to its auth_tokens row so it can
// be revoked on logout.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	JTI    string `json:"-"`
}

// LoginResult carries the issued token and the identity it names.
type LoginResult struct {
	Token    string
	Identity Identity
}
