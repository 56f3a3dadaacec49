package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"mailer-server/internal/observability"

	"github.com/jmoiron/sqlx"
)

// TestDB wraps a test database instance
type TestDB struct {
	db     *sqlx.DB
	logger *observability.Logger
	Store  Store
}

// SetupTestDB connects to the test PostgreSQL instance. Tests calling it are
// skipped when TEST_DB_HOST is not set.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbHost := os.Getenv("TEST_DB_HOST")
	if dbHost == "" {
		t.Skip("TEST_DB_HOST not set; skipping database-backed test")
	}

	dbPort := os.Getenv("TEST_DB_PORT")
	dbUser := os.Getenv("TEST_DB_USER")
	dbPass := os.Getenv("TEST_DB_PASSWORD")
	dbName := os.Getenv("TEST_DB_NAME")

	// Defaults match docker-compose.services.yml
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "mailer_user"
	}
	if dbPass == "" {
		dbPass = "mailer_password"
	}
	if dbName == "" {
		dbName = "mailer_db"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPass, dbHost, dbPort, dbName)

	db, err := sqlx.Open("pgx", connStr)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("failed to ping database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	logger := observability.NewLogger()
	// Migrations are handled by Flyway in docker-compose.services.yml
	return &TestDB{
		db:     db,
		logger: logger,
		Store:  Store{db: db, logger: logger},
	}
}

// Truncate clears all data from tables while preserving schema
func (tdb *TestDB) Truncate(t *testing.T, tables ...string) {
	t.Helper()

	if len(tables) == 0 {
		// Truncate all tables (in reverse dependency order)
		tables = []string{
			"events",
			"email_message_webhooks",
			"email_message_attachments",
			"email_messages",
			"org_user_org_user_settings",
			"org_user_setting_defaults",
			"org_user_settings",
			"overridden_org_settings",
			"plan_org_settings",
			"org_settings",
			"global_settings",
			"org_users",
			"orgs",
			"plans",
		}
	}

	for _, table := range tables {
		_, err := tdb.db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}

// Close closes the database connection
func (tdb *TestDB) Close() error {
	return tdb.db.Close()
}

// GetDB returns the underlying sqlx.DB for direct access if needed
func (tdb *TestDB) GetDB() *sqlx.DB {
	return tdb.db
}

// ExecSQL executes raw SQL for test setup
func (tdb *TestDB) ExecSQL(t *testing.T, query string, args ...interface{}) sql.Result {
	t.Helper()
	result, err := tdb.db.Exec(query, args...)
	if err != nil {
		t.Fatalf("failed to execute SQL: %v", err)
	}
	return result
}

// WithContext returns a context for testing
func (tdb *TestDB) WithContext() context.Context {
	return context.Background()
}
