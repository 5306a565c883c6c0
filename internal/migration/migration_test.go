package migration

import (
	"testing"

	"github.com/smallbiznis/atelier/pkg/db"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrateCreatesTables(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(conn))

	for _, table := range []string{"accounts", "usage_records", "artifacts", "chat_sessions", "chat_messages"} {
		require.True(t, conn.Migrator().HasTable(table), table)
	}

	// idempotent
	require.NoError(t, AutoMigrate(conn))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := embeddedMigrations.ReadDir(migrationsDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
