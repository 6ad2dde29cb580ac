package migration

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/supreset/identity/internal/database"
)

// Migrator applies the SQL migrations for the configured driver to the
// database manager's pool. It does not own the pool.
type Migrator struct {
	db      *sql.DB
	dialect string
	dir     string
}

func NewMigrator(manager *database.Manager) (*Migrator, error) {
	db, err := manager.SQL()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	dir, err := getMigrationsDir(manager.Driver())
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations directory: %w", err)
	}

	return &Migrator{
		db:      db,
		dialect: manager.Dialect(),
		dir:     dir,
	}, nil
}

func (m *Migrator) setDialect() error {
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

func (m *Migrator) Up() error {
	if err := m.setDialect(); err != nil {
		return err
	}
	if err := goose.Up(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Down() error {
	if err := m.setDialect(); err != nil {
		return err
	}
	if err := goose.Down(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the version recorded in the database.
func (m *Migrator) GetCurrentVersion() (int64, error) {
	if err := m.setDialect(); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(m.db)
}

// GetLatestVersion returns the newest migration on disk.
func (m *Migrator) GetLatestVersion() (int64, error) {
	migrations, err := goose.CollectMigrations(m.dir, 0, goose.MaxVersion)
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	return migrations[len(migrations)-1].Version, nil
}

// DownTo rolls back until the database is at version.
func (m *Migrator) DownTo(version int64) error {
	if err := m.setDialect(); err != nil {
		return err
	}
	if err := goose.DownTo(m.db, m.dir, version); err != nil {
		return fmt.Errorf("failed to migrate down to version %d: %w", version, err)
	}
	return nil
}

func (m *Migrator) Status() error {
	if err := m.setDialect(); err != nil {
		return err
	}
	if err := goose.Status(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}

func (m *Migrator) Version() (int64, error) {
	return m.GetCurrentVersion()
}

// Reset rolls every migration back and applies them again.
func (m *Migrator) Reset() error {
	if err := m.setDialect(); err != nil {
		return err
	}
	if err := goose.Reset(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}
	return m.Up()
}
