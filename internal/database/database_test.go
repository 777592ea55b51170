package database

import (
	"context"
	"testing"

	"treematch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.Config{DBDriver: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = Dialector(&config.Config{DBDriver: "postgres", DBHost: "localhost", DBPort: "5432"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = Dialector(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestRunMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(sqliteDSN(":memory:")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, configurePool(db, &config.Config{}))

	status, err := GetSchemaStatus(ctx, db)
	require.NoError(t, err)
	assert.Len(t, status.Pending, len(Migrations()))

	require.NoError(t, RunMigrations(ctx, db))
	for _, table := range []string{"users", "referrals", "likes", "blocks", "chats", "messages"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	// Re-running is a no-op.
	require.NoError(t, RunMigrations(ctx, db))

	status, err = GetSchemaStatus(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, status.Pending)
	assert.Len(t, status.Applied, len(Migrations()))

	require.NoError(t, RollbackLast(ctx, db))
	status, err = GetSchemaStatus(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"000005_create_chat_tables"}, status.Pending)
	assert.False(t, db.Migrator().HasTable("messages"))
	assert.True(t, db.Migrator().HasTable("blocks"))
}
