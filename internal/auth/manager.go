package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/bucketview/bucketview/internal/db"
)

const issuer = "bucketview"

// Manager issues, validates and revokes session tokens.
type Manager interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Validate(ctx context.Context, token string) (*Identity, error)
	Logout(ctx context.Context, token string) error
}

type manager struct {
	store  *db.Store
	secret []byte
	ttl    time.Duration
}

// NewManager creates an auth manager signing tokens with secret. ttl
// bounds the lifetime of issued sessions.
func NewManager(store *db.Store, secret string, ttl time.Duration) Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &manager{store: store, secret: []byte(secret), ttl: ttl}
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// VerifyPassword verifies a password against a bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login verifies credentials and issues a JWT whose jti is recorded so
// the session can later be revoked. Revoked users cannot authenticate
// even with correct credentials.
func (m *manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := m.store.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if user.Status == db.UserStatusRevoked {
		return nil, ErrUserRevoked
	}

	now := time.Now()
	jti := uuid.NewString()
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, err
	}

	if err := m.store.InsertToken(&db.AuthToken{
		JTI:       jti,
		UserID:    user.ID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(m.ttl).Unix(),
	}); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User logged in")

	return &LoginResult{
		Token: token,
		Identity: Identity{
			UserID: user.ID,
			Name:   user.Name,
			Email:  user.Email,
			JTI:    jti,
		},
	}, nil
}

// Validate checks signature, expiry and revocation and resolves the
// caller's identity.
func (m *manager) Validate(ctx context.Context, token string) (*Identity, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}

	record, err := m.store.GetToken(claims.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if record.IsRevoked {
		return nil, ErrTokenRevoked
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrTokenExpired
	}

	return &Identity{
		UserID: claims.Subject,
		Name:   claims.Name,
		Email:  claims.Email,
		JTI:    claims.ID,
	}, nil
}

// Logout revokes the session named by the token's jti.
func (m *manager) Logout(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return err
	}
	return m.store.RevokeToken(claims.ID)
}

func (m *manager) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
