//go:build integration

package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisContainer(t *testing.T) *redis.Client {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisStoreMarksOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rdb := setupRedisContainer(t)
	store := NewRedisStore(rdb, "orders:", time.Hour)

	seen, err := store.Seen(ctx, "reactions:order-1:3:0")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, store.Mark(ctx, "reactions:order-1:3:0"))
	require.NoError(t, store.Mark(ctx, "reactions:order-1:3:0"))

	seen, err = store.Seen(ctx, "reactions:order-1:3:0")
	require.NoError(t, err)
	require.True(t, seen)

	ttl, err := rdb.TTL(ctx, "orders:reactions:order-1:3:0").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
