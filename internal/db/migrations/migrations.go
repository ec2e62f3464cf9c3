package migrations

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

// Manager applies pending migrations in version order, tracking the
// current version in the schema_version table.
type Manager struct {
	db         *sql.DB
	migrations []Migration
	logger     *logrus.Logger
}

// NewManager creates a migration manager over the given database.
func NewManager(db *sql.DB, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		db:         db,
		migrations: allMigrations(),
		logger:     logger,
	}
}

func (m *Manager) initialize() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// CurrentVersion returns the applied schema version, 0 when fresh.
func (m *Manager) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

func (m *Manager) targetVersion() int {
	target := 0
	for _, migration := range m.migrations {
		if migration.Version > target {
			target = migration.Version
		}
	}
	return target
}

// Migrate brings the schema up to the highest known version.
func (m *Manager) Migrate() error {
	if err := m.initialize(); err != nil {
		return err
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}

	target := m.targetVersion()
	if current == target {
		m.logger.Infof("Database schema is up to date (version %d)", current)
		return nil
	}
	if current > target {
		return fmt.Errorf("database schema version (%d) is newer than this build supports (%d)", current, target)
	}

	m.logger.Infof("Migrating database schema from version %d to %d", current, target)

	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}
		if err := m.apply(migration); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) apply(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
	}
	defer tx.Rollback()

	if err := migration.Up(tx); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, description) VALUES (?, ?)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	m.logger.Infof("Applied migration %d: %s", migration.Version, migration.Description)
	return nil
}
