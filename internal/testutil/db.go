package testutil

import (
	"database/sql"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/config"
	"github.com/xxxsen/docrag/internal/db"
)

// OpenTestDB connects to the postgres test instance named by TEST_DB_HOST
// and skips the test when it is unset.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	port := 5432
	if v, err := strconv.Atoi(os.Getenv("TEST_DB_PORT")); err == nil && v > 0 {
		port = v
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     envOr("TEST_DB_USER", "docrag"),
		Password: envOr("TEST_DB_PASSWORD", "docrag_pass"),
		DBName:   envOr("TEST_DB_NAME", "docrag_test"),
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
