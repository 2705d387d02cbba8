//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/joho/godotenv"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// EnvDatabaseURL names the variable that points tests at an existing database.
const EnvDatabaseURL = "FORGE_TEST_DATABASE_URL"

// TestTimeout bounds container startup and schema setup.
const TestTimeout = 90 * time.Second

// Setup returns a migrated database that is closed when the test ends.
func Setup(t *testing.T) *sql.DB {
	t.Helper()

	if err := godotenv.Load(); err != nil {
		t.Logf("no .env file loaded: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		dsn = startContainer(ctx, t)
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, waitForPing(ctx, db), "test database is not reachable")
	require.NoError(t, migrations.Run(ctx, db, migrations.CommandUp, logger.Discard()),
		"failed to apply migrations")
	return db
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "forge",
			"POSTGRES_PASSWORD": "forge",
			"POSTGRES_DB":       "forge",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://forge:forge@%s:%s/forge?sslmode=disable", host, port.Port())
}

func waitForPing(ctx context.Context, db *sql.DB) error {
	var err error
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return err
}
