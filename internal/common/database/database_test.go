package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripjournal/service-trips/internal/config"
)

func TestConnectSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "trips.db")}

	db, err := Connect(cfg, zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	assert.NoError(t, sqlDB.Close())
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}

func TestRunMigrationsMissingDir(t *testing.T) {
	err := RunMigrations("postgres://u:p@localhost:1/db?sslmode=disable", filepath.Join(t.TempDir(), "missing"), zap.NewNop())
	assert.Error(t, err)
}
