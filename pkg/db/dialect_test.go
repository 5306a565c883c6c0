package db

import (
	"testing"

	"github.com/smallbiznis/atelier/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNPostgresEscapesCredentials(t *testing.T) {
	dsn, err := DSN(config.Config{
		DBType: "Postgres", DBHost: "db", DBPort: "5432", DBName: "atelier",
		DBUser: "app", DBPassword: "p@ss word",
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/atelier?TimeZone=UTC&sslmode=disable", dsn)
}

func TestDSNSQLiteDefaultsPath(t *testing.T) {
	dsn, err := DSN(config.Config{DBType: "sqlite"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "file:atelier.db?")
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.ErrorContains(t, err, "oracle")
}
