package db

import "errors"

// Common storage errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrConflict  = errors.New("conflicting assignment")
)

// Constants for user status
const (
	UserStatusActive  = "active"
	UserStatusRevoked = "revoked"
)

// Constants for user type
const (
	UserTypeUser       = "user"
	UserTypeAdmin      = "admin"
	UserTypeSuperadmin = "superadmin"
)

// RoleAdmin grants access to every bucket under every account.
const RoleAdmin = "admin"

// User is a console user.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Status       string `json:"status"`
	UserType     string `json:"user_type"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Role is a named set of bucket grants.
type Role struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// AuthToken is one issued session token, identified by its jti. A token
// is valid only while unexpired and unrevoked.
type AuthToken struct {
	JTI       string
	UserID    string
	IssuedAt  int64
	ExpiresAt int64
	IsRevoked bool
	RevokedAt int64
}

// StorageAccount is a logical AWS-style account owning buckets. The
// access key fields hold ciphertext; decryption happens at the caller.
type StorageAccount struct {
	ID              string `json:"id"`
	AccountName     string `json:"account_name"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

// Bucket is a registered bucket owned by exactly one account.
type Bucket struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	Alias      string `json:"alias"`
	BucketName string `json:"bucket_name"`
	BaseURL    string `json:"base_url"`
	CreatedAt  int64  `json:"created_at"`
}

// BucketConfig is the joined bucket+account row needed to build a store
// client for one request. Credential fields hold ciphertext.
type BucketConfig struct {
	BucketID        string
	AccountID       string
	BucketName      string
	Alias           string
	BaseURL         string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}
