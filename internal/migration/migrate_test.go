package migration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supreset/identity/internal/config"
	"github.com/supreset/identity/internal/database"
)

func newSQLiteMigrator(t *testing.T) (*Migrator, *database.Manager) {
	t.Helper()

	manager, err := database.NewManager(&config.DatabaseConfig{
		Driver:   database.DriverSQLite,
		Path:     filepath.Join(t.TempDir(), "migrate.db"),
		LogLevel: "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	migrator, err := NewMigrator(manager)
	require.NoError(t, err)
	return migrator, manager
}

func TestGetMigrationsDir(t *testing.T) {
	dir, err := getMigrationsDir("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", filepath.Base(dir))
	assert.Equal(t, "migrations", filepath.Base(filepath.Dir(dir)))

	t.Setenv("MIGRATIONS_DIR", "/srv/migrations")
	dir, err = getMigrationsDir("postgres")
	require.NoError(t, err)
	assert.Equal(t, "/srv/migrations/postgres", dir)
}

func TestSyncAppliesAllMigrations(t *testing.T) {
	migrator, manager := newSQLiteMigrator(t)

	require.NoError(t, Sync(migrator, zap.NewNop()))

	current, err := migrator.GetCurrentVersion()
	require.NoError(t, err)
	latest, err := migrator.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, current)
	assert.NotZero(t, latest)

	db := manager.DB()
	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("email_verification_codes"))

	// a second sync is a no-op
	require.NoError(t, Sync(migrator, zap.NewNop()))
}

func TestDownAndReset(t *testing.T) {
	migrator, manager := newSQLiteMigrator(t)
	require.NoError(t, migrator.Up())

	require.NoError(t, migrator.Down())
	assert.False(t, manager.DB().Migrator().HasTable("email_verification_codes"))
	assert.True(t, manager.DB().Migrator().HasTable("users"))

	require.NoError(t, migrator.Reset())
	assert.True(t, manager.DB().Migrator().HasTable("email_verification_codes"))

	require.NoError(t, migrator.DownTo(0))
	version, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}
