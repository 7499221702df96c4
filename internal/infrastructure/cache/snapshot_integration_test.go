//go:build integration
// +build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/infrastructure/cache"
)

func startRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: host + ":" + port.Port()})
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// countingLoader records how many times the wrapped loader was actually hit.
type countingLoader struct {
	calls int
	snap  *canvas.Snapshot
}

func (c *countingLoader) LoadCanvasEntities(ctx context.Context, canvasID, userID string) (*canvas.Snapshot, error) {
	c.calls++
	return c.snap, nil
}

func TestCachedCanvasSnapshotLoader_CachesGraphShape_Integration(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	snap := &canvas.Snapshot{
		Canvas: canvas.Canvas{ID: "canvas-1", UserID: "user-1"},
		Nodes: []canvas.Node{
			{ID: "node-1", Type: "text", Name: "greeting"},
		},
	}
	inner := &countingLoader{snap: snap}

	loader := cache.NewCachedCanvasSnapshotLoader(inner, cache.NewRedisCacheFromClient(client), time.Minute)

	got1, err := loader.LoadCanvasEntities(ctx, "canvas-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "node-1", got1.Nodes[0].ID)
	require.Equal(t, 1, inner.calls)

	got2, err := loader.LoadCanvasEntities(ctx, "canvas-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "node-1", got2.Nodes[0].ID)
	require.Equal(t, 1, inner.calls, "second load should be served from cache")

	// Mutating a node's Result on one returned snapshot must never affect
	// another snapshot served from the same cache entry.
	got2.Nodes[0].Result = &canvas.NodeResult{}
	require.Nil(t, got1.Nodes[0].Result)

	require.NoError(t, loader.Invalidate(ctx, "canvas-1"))
	_, err = loader.LoadCanvasEntities(ctx, "canvas-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls, "load after invalidate must call through")
}
