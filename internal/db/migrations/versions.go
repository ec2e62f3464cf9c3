package migrations

import (
	"database/sql"
)

func allMigrations() []Migration {
	return []Migration{
		migration1CoreTables(),
		migration2StorageTables(),
	}
}

// migration1CoreTables creates users, roles and session tables.
func migration1CoreTables() Migration {
	return Migration{
		Version:     1,
		Description: "Create users, roles and auth token tables",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL DEFAULT '',
					email TEXT NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'active',
					user_type TEXT NOT NULL DEFAULT 'user',
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)
			`); err != nil {
				return err
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`); err != nil {
				return err
			}

			// Role names are case-insensitively unique
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS roles (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL COLLATE NOCASE UNIQUE,
					created_at INTEGER NOT NULL
				)
			`); err != nil {
				return err
			}

			// Primary key on user_id enforces the single-role-per-user rule
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
					role_id TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE
				)
			`); err != nil {
				return err
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS auth_tokens (
					jti TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					issued_at INTEGER NOT NULL,
					expires_at INTEGER NOT NULL,
					is_revoked INTEGER NOT NULL DEFAULT 0,
					revoked_at INTEGER
				)
			`); err != nil {
				return err
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_auth_tokens_user ON auth_tokens(user_id)`); err != nil {
				return err
			}

			return nil
		},
	}
}

// migration2StorageTables creates account, bucket and grant tables.
func migration2StorageTables() Migration {
	return Migration{
		Version:     2,
		Description: "Create storage account, bucket and role grant tables",
		Up: func(tx *sql.Tx) error {
			// access_key_id and secret_access_key hold ciphertext
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS storage_accounts (
					id TEXT PRIMARY KEY,
					account_name TEXT NOT NULL,
					region TEXT NOT NULL,
					endpoint TEXT NOT NULL DEFAULT '',
					access_key_id TEXT NOT NULL,
					secret_access_key TEXT NOT NULL,
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)
			`); err != nil {
				return err
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS buckets (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL REFERENCES storage_accounts(id),
					alias TEXT NOT NULL,
					bucket_name TEXT NOT NULL,
					base_url TEXT NOT NULL DEFAULT '',
					created_at INTEGER NOT NULL
				)
			`); err != nil {
				return err
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_buckets_account ON buckets(account_id)`); err != nil {
				return err
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS role_buckets (
					role_id TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					bucket_id TEXT NOT NULL REFERENCES buckets(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, bucket_id)
				)
			`); err != nil {
				return err
			}

			return nil
		},
	}
}
