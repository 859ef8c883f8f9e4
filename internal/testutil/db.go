package testutil

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/config"
	"github.com/leadsengine/dashboard/migrations"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDBName     = "dashboard_test"
	testDBUser     = "dashboard"
	testDBPassword = "dashboard"
)

// NewTestDB creates a new Postgres test container, runs migrations, and returns a connection pool.
// The container is automatically cleaned up when the test finishes.
func NewTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	container := startPostgres(t)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Create connection pool with same configuration as production
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return pool
}

// NewTestDBConfig starts an empty Postgres container and returns a config
// pointing at it, for tests that exercise connection setup themselves.
func NewTestDBConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := PostgresConfig(context.Background(), startPostgres(t))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

// PostgresConfig returns a test config whose database settings point at
// container.
func PostgresConfig(ctx context.Context, container *postgres.PostgresContainer) (*config.Config, error) {
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get container endpoint: %w", err)
	}
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse container endpoint %q: %w", endpoint, err)
	}

	return &config.Config{
		Environment:   "test",
		DBHost:        host,
		DBPort:        port,
		DBUsername:    testDBUser,
		DBPassword:    testDBPassword,
		DBName:        testDBName,
		DBSSLMode:     "disable",
		JWTSecret:     "test-secret",
		SyncLimit:     50,
		OutboxWorkers: 1,
	}, nil
}

func startPostgres(t *testing.T) *postgres.PostgresContainer {
	t.Helper()

	ctx := context.Background()
	container, err := StartPostgres(ctx)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	return container
}

// StartPostgres runs a disposable Postgres 16 container. The caller
// terminates it.
func StartPostgres(ctx context.Context) (*postgres.PostgresContainer, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(testDBName),
		postgres.WithUsername(testDBUser),
		postgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start Postgres container: %w", err)
	}
	return container, nil
}
