package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name    string
		db      func(t *testing.T) *DB
		path    string
		wantErr string
		needsDB bool
	}{
		{
			name:    "nil database",
			db:      func(*testing.T) *DB { return nil },
			path:    "/some/path",
			wantErr: "database is required",
		},
		{
			name:    "nil pool",
			db:      func(*testing.T) *DB { return &DB{pool: nil} },
			path:    "/some/path",
			wantErr: "database pool not initialized",
		},
		{
			name:    "empty migrations path",
			db:      setupTestDB,
			path:    "",
			wantErr: "migrations path is required",
			needsDB: true,
		},
		{
			name:    "nonexistent migrations path",
			db:      setupTestDB,
			path:    "/nonexistent/path",
			wantErr: "migrations path validation failed",
			needsDB: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.needsDB && testing.Short() {
				t.Skip("Skipping integration test in short mode")
			}

			db := tt.db(t)
			if tt.needsDB {
				defer db.Close()
			}

			migrator, err := NewMigrator(db, tt.path, logger)
			assert.Error(t, err)
			assert.Nil(t, migrator)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMigrator_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	logger := zerolog.Nop()
	migrationsPath := getMigrationsPath(t)

	newMigrator := func(t *testing.T) *Migrator {
		t.Helper()
		m, err := NewMigrator(db, migrationsPath, logger)
		require.NoError(t, err)
		require.NotNil(t, m)
		return m
	}

	t.Run("create and close", func(t *testing.T) {
		m := newMigrator(t)
		assert.NoError(t, m.Close())
	})

	t.Run("up then version reports applied", func(t *testing.T) {
		m := newMigrator(t)
		defer m.Close()

		require.NoError(t, m.Up())

		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.False(t, dirty)
		assert.Greater(t, version, uint(0))
	})

	t.Run("up is idempotent", func(t *testing.T) {
		m := newMigrator(t)
		defer m.Close()

		require.NoError(t, m.Up())
		assert.NoError(t, m.Up())
	})

	t.Run("force sets version without running migrations", func(t *testing.T) {
		m := newMigrator(t)
		defer m.Close()

		current, _, err := m.Version()
		require.NoError(t, err)
		assert.NoError(t, m.Force(int(current)))
	})
}

// getMigrationsPath resolves the repository's migrations directory relative
// to this package, skipping the test when it is missing.
func getMigrationsPath(t *testing.T) string {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	migrationsPath := filepath.Join(cwd, "..", "..", "migrations")
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		t.Skipf("Skipping test: migrations directory not found at %s", migrationsPath)
	}
	return migrationsPath
}
