// Package testutil starts the throwaway infrastructure used by integration suites.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/abgdnv/ordersync/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SkipIntegrationTests is the env var that disables container-backed suites when set to "1".
const SkipIntegrationTests = "ORDER_SVC_SKIP_INTEGRATION_TESTS"

// SkipIfDisabled skips t when integration tests are turned off.
func SkipIfDisabled(t *testing.T) {
	t.Helper()
	if os.Getenv(SkipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + SkipIntegrationTests + " env var")
	}
}

// Postgres is a migrated PostgreSQL container together with a pool connected to it.
type Postgres struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// StartPostgres runs a PostgreSQL container, waits until it accepts connections and applies migrations.
func StartPostgres(ctx context.Context, t *testing.T) *Postgres {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("orders_db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err, "Failed to run PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string from container")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err, "Failed to create pgxpool")

	for range 10 {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	require.NoError(t, err, "Failed to connect to PostgreSQL after retries")

	require.NoError(t, store.Migrate(connStr), "Failed to apply migrations")

	return &Postgres{Container: container, Pool: pool, ConnStr: connStr}
}

// Reset empties every table and restarts identities.
func (p *Postgres) Reset(ctx context.Context, t *testing.T) {
	t.Helper()
	_, err := p.Pool.Exec(ctx, "TRUNCATE TABLE order_items, orders, products RESTART IDENTITY CASCADE")
	require.NoError(t, err, "Failed to truncate tables")
}

// SeedProduct inserts a product and returns its id.
func (p *Postgres) SeedProduct(ctx context.Context, t *testing.T, name, price string) int64 {
	t.Helper()
	var id int64
	err := p.Pool.QueryRow(ctx,
		"INSERT INTO products (name, sku, price) VALUES ($1, $1, $2::numeric) RETURNING id",
		name, price,
	).Scan(&id)
	require.NoError(t, err, "Failed to seed product %s", name)
	return id
}

// Close releases the pool and terminates the container.
func (p *Postgres) Close(ctx context.Context) {
	if p.Pool != nil {
		p.Pool.Close()
	}
	if p.Container != nil {
		_ = p.Container.Terminate(ctx)
	}
}

// Redis is a Redis container together with a client connected to it.
type Redis struct {
	Container *tcredis.RedisContainer
	Client    *redis.Client
}

// StartRedis runs a Redis container and connects a client to it.
func StartRedis(ctx context.Context, t *testing.T) *Redis {
	t.Helper()

	container, err := tcredis.Run(ctx, "redis:7.4-alpine")
	require.NoError(t, err, "Failed to run Redis container")

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get Redis connection string")

	opts, err := redis.ParseURL(uri)
	require.NoError(t, err, "Failed to parse Redis connection string")

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err(), "Failed to ping Redis")

	return &Redis{Container: container, Client: client}
}

// Close closes the client and terminates the container.
func (r *Redis) Close(ctx context.Context) {
	if r.Client != nil {
		_ = r.Client.Close()
	}
	if r.Container != nil {
		_ = r.Container.Terminate(ctx)
	}
}
