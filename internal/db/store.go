package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/bucketview/bucketview/internal/db/migrations"
)

// Store is the relational store for users, roles, grants, accounts and
// buckets, backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database under dataDir and applies
// pending migrations.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "db", "bucketview.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	database, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrations.NewManager(database, logrus.StandardLogger()).Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	logrus.WithField("db_path", dbPath).Info("SQLite store initialized")
	return &Store{db: database}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Users ---

// CreateUser inserts a new user. The password must already be hashed.
func (s *Store) CreateUser(user *User) error {
	now := time.Now().Unix()
	if user.CreatedAt == 0 {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO users (id, name, email, password_hash, status, user_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Status, user.UserType, user.CreatedAt, user.UpdatedAt)

	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s", ErrDuplicate, user.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Status, &user.UserType, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, name, email, password_hash, status, user_type, created_at, updated_at
		FROM users WHERE email = ?
	`, email))
}

// GetUserByID retrieves a user by id.
func (s *Store) GetUserByID(id string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, name, email, password_hash, status, user_type, created_at, updated_at
		FROM users WHERE id = ?
	`, id))
}

// ListUsers returns all users ordered by email.
func (s *Store) ListUsers() ([]*User, error) {
	rows, err := s.db.Query(`
		SELECT id, name, email, password_hash, status, user_type, created_at, updated_at
		FROM users ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
			&user.Status, &user.UserType, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// CountUsers returns the total number of users.
func (s *Store) CountUsers() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// --- Sessions ---

// InsertToken records a newly issued session token.
func (s *Store) InsertToken(token *AuthToken) error {
	_, err := s.db.Exec(`
		INSERT INTO auth_tokens (jti, user_id, issued_at, expires_at, is_revoked)
		VALUES (?, ?, ?, ?, 0)
	`, token.JTI, token.UserID, token.IssuedAt, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// GetToken retrieves a session token by jti.
func (s *Store) GetToken(jti string) (*AuthToken, error) {
	var token AuthToken
	var revokedAt sql.NullInt64
	err := s.db.QueryRow(`
		SELECT jti, user_id, issued_at, expires_at, is_revoked, revoked_at
		FROM auth_tokens WHERE jti = ?
	`, jti).Scan(&token.JTI, &token.UserID, &token.IssuedAt, &token.ExpiresAt, &token.IsRevoked, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		token.RevokedAt = revokedAt.Int64
	}
	return &token, nil
}

// RevokeToken marks the token with the given jti as revoked.
func (s *Store) RevokeToken(jti string) error {
	_, err := s.db.Exec(`
		UPDATE auth_tokens SET is_revoked = 1, revoked_at = ? WHERE jti = ?
	`, time.Now().Unix(), jti)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// --- Roles ---

// CreateRole inserts a role. Role names are case-insensitively unique.
func (s *Store) CreateRole(role *Role) error {
	if role.CreatedAt == 0 {
		role.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.Exec(`INSERT INTO roles (id, name, created_at) VALUES (?, ?, ?)`,
		role.ID, role.Name, role.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: role %s", ErrDuplicate, role.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// GetRoleByID retrieves a role by id.
func (s *Store) GetRoleByID(id string) (*Role, error) {
	var role Role
	err := s.db.QueryRow(`SELECT id, name, created_at FROM roles WHERE id = ?`, id).
		Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles returns all roles ordered by name.
func (s *Store) ListRoles() ([]*Role, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

// FindRoleForUser returns the role assigned to the user, or ErrNotFound
// when none is assigned.
func (s *Store) FindRoleForUser(userID string) (*Role, error) {
	var role Role
	err := s.db.QueryRow(`
		SELECT r.id, r.name, r.created_at
		FROM roles r JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = ?
	`, userID).Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// AssignRoleToUser assigns a role. A user holds at most one role;
// assigning a second is a conflict, not a replacement.
func (s *Store) AssignRoleToUser(userID, roleID string) error {
	if _, err := s.GetUserByID(userID); err != nil {
		return err
	}
	if _, err := s.GetRoleByID(roleID); err != nil {
		return err
	}

	_, err := s.db.Exec(`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: user already has a role assigned", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// AssignBucketToRole grants the role access to the bucket. Inserting an
// existing grant is a no-op.
func (s *Store) AssignBucketToRole(roleID, bucketID string) error {
	if _, err := s.GetRoleByID(roleID); err != nil {
		return err
	}
	if _, err := s.GetBucket(bucketID); err != nil {
		return err
	}

	_, err := s.db.Exec(`INSERT OR IGNORE INTO role_buckets (role_id, bucket_id) VALUES (?, ?)`, roleID, bucketID)
	if err != nil {
		return fmt.Errorf("failed to assign bucket to role: %w", err)
	}
	return nil
}

// HasGrant reports whether an explicit grant links the role to the bucket.
func (s *Store) HasGrant(roleID, bucketID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM role_buckets WHERE role_id = ? AND bucket_id = ?
	`, roleID, bucketID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// --- Storage accounts ---

// CreateAccount inserts a storage account. Credentials arrive encrypted.
func (s *Store) CreateAccount(account *StorageAccount) error {
	now := time.Now().Unix()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO storage_accounts (id, account_name, region, endpoint, access_key_id, secret_access_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, account.ID, account.AccountName, account.Region, account.Endpoint,
		account.AccessKeyID, account.SecretAccessKey, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by id.
func (s *Store) GetAccount(id string) (*StorageAccount, error) {
	var account StorageAccount
	err := s.db.QueryRow(`
		SELECT id, account_name, region, endpoint, access_key_id, secret_access_key, created_at, updated_at
		FROM storage_accounts WHERE id = ?
	`, id).Scan(&account.ID, &account.AccountName, &account.Region, &account.Endpoint,
		&account.AccessKeyID, &account.SecretAccessKey, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) queryAccounts(query string, args ...interface{}) ([]*StorageAccount, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*StorageAccount
	for rows.Next() {
		var account StorageAccount
		if err := rows.Scan(&account.ID, &account.AccountName, &account.Region, &account.Endpoint,
			&account.AccessKeyID, &account.SecretAccessKey, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, &account)
	}
	return accounts, rows.Err()
}

// ListAccounts returns every storage account.
func (s *Store) ListAccounts() ([]*StorageAccount, error) {
	return s.queryAccounts(`
		SELECT id, account_name, region, endpoint, access_key_id, secret_access_key, created_at, updated_at
		FROM storage_accounts ORDER BY account_name
	`)
}

// ListAccountsForRole returns the accounts owning at least one bucket
// granted to the role.
func (s *Store) ListAccountsForRole(roleID string) ([]*StorageAccount, error) {
	return s.queryAccounts(`
		SELECT id, account_name, region, endpoint, access_key_id, secret_access_key, created_at, updated_at
		FROM storage_accounts
		WHERE id IN (
			SELECT b.account_id FROM buckets b
			JOIN role_buckets rb ON rb.bucket_id = b.id
			WHERE rb.role_id = ?
		)
		ORDER BY account_name
	`, roleID)
}

// UpdateAccountCredentials rotates the encrypted credentials of an
// account. Accounts are never mutated any other way.
func (s *Store) UpdateAccountCredentials(id, accessKeyEnc, secretKeyEnc string) error {
	result, err := s.db.Exec(`
		UPDATE storage_accounts SET access_key_id = ?, secret_access_key = ?, updated_at = ?
		WHERE id = ?
	`, accessKeyEnc, secretKeyEnc, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to rotate credentials: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Buckets ---

// CreateBucket registers a bucket under its owning account.
func (s *Store) CreateBucket(bucket *Bucket) error {
	if _, err := s.GetAccount(bucket.AccountID); err != nil {
		return err
	}
	if bucket.CreatedAt == 0 {
		bucket.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.Exec(`
		INSERT INTO buckets (id, account_id, alias, bucket_name, base_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, bucket.ID, bucket.AccountID, bucket.Alias, bucket.BucketName, bucket.BaseURL, bucket.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// GetBucket retrieves a bucket by id.
func (s *Store) GetBucket(id string) (*Bucket, error) {
	var bucket Bucket
	err := s.db.QueryRow(`
		SELECT id, account_id, alias, bucket_name, base_url, created_at
		FROM buckets WHERE id = ?
	`, id).Scan(&bucket.ID, &bucket.AccountID, &bucket.Alias, &bucket.BucketName, &bucket.BaseURL, &bucket.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bucket, nil
}

func (s *Store) queryBuckets(query string, args ...interface{}) ([]*Bucket, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []*Bucket
	for rows.Next() {
		var bucket Bucket
		if err := rows.Scan(&bucket.ID, &bucket.AccountID, &bucket.Alias,
			&bucket.BucketName, &bucket.BaseURL, &bucket.CreatedAt); err != nil {
			return nil, err
		}
		buckets = append(buckets, &bucket)
	}
	return buckets, rows.Err()
}

// ListBucketsByAccount returns every bucket under the account.
func (s *Store) ListBucketsByAccount(accountID string) ([]*Bucket, error) {
	return s.queryBuckets(`
		SELECT id, account_id, alias, bucket_name, base_url, created_at
		FROM buckets WHERE account_id = ? ORDER BY alias
	`, accountID)
}

// ListGrantedBuckets returns the buckets under the account that the
// role holds an explicit grant for.
func (s *Store) ListGrantedBuckets(roleID, accountID string) ([]*Bucket, error) {
	return s.queryBuckets(`
		SELECT b.id, b.account_id, b.alias, b.bucket_name, b.base_url, b.created_at
		FROM buckets b JOIN role_buckets rb ON rb.bucket_id = b.id
		WHERE rb.role_id = ? AND b.account_id = ?
		ORDER BY b.alias
	`, roleID, accountID)
}

// DeleteBucket removes a bucket and revokes its role grants in the same
// transaction so grants are never silently orphaned.
func (s *Store) DeleteBucket(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM role_buckets WHERE bucket_id = ?`, id); err != nil {
		return fmt.Errorf("failed to revoke bucket grants: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM buckets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// GetBucketConfig resolves the joined bucket and account row used to
// build a store client for one request.
func (s *Store) GetBucketConfig(bucketID string) (*BucketConfig, error) {
	var cfg BucketConfig
	err := s.db.QueryRow(`
		SELECT b.id, b.account_id, b.bucket_name, b.alias, b.base_url,
		       a.region, a.endpoint, a.access_key_id, a.secret_access_key
		FROM buckets b JOIN storage_accounts a ON a.id = b.account_id
		WHERE b.id = ?
	`, bucketID).Scan(&cfg.BucketID, &cfg.AccountID, &cfg.BucketName, &cfg.Alias, &cfg.BaseURL,
		&cfg.Region, &cfg.Endpoint, &cfg.AccessKeyID, &cfg.SecretAccessKey)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
