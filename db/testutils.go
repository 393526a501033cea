package db

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "docker.io/postgres:15.2-alpine"

var (
	db        *sqlx.DB
	getDbOnce sync.Once
)

// GetDb connects to POSTGRES_URL once per test binary and applies the schema, outbox tables
// included.
func GetDb(t *testing.T) *sqlx.DB {
	t.Helper()

	getDbOnce.Do(func() {
		var err error
		db, err = Open(os.Getenv("POSTGRES_URL"))
		require.NoError(t, err)

		require.NoError(t, InitializeDatabaseSchema(db))
	})
	require.NotNil(t, db, "database setup failed in an earlier test")

	return db
}

// PostgresContainer is a throwaway clubtickets database.
type PostgresContainer struct {
	testcontainers.Container
	URL string
}

// StartPostgresContainer runs a fresh Postgres and waits until it accepts connections. Callers
// terminate it.
func StartPostgresContainer(ctx context.Context) (PostgresContainer, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(postgresImage),
		postgres.WithDatabase("clubtickets"),
		postgres.WithUsername("clubtickets"),
		postgres.WithPassword("clubtickets"),
		testcontainers.WithWaitStrategy(
			// postgres logs readiness once for the init run and once for the real server
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return PostgresContainer{}, fmt.Errorf("could not start postgres: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable", "application_name=clubtickets-test")
	if err != nil {
		_ = container.Terminate(ctx)
		return PostgresContainer{}, fmt.Errorf("could not get postgres connection string: %w", err)
	}

	return PostgresContainer{Container: container, URL: url}, nil
}
