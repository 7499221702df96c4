//go:build integration
// +build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/duragraph/duragraph/internal/domain/session"
	redisstore "github.com/duragraph/duragraph/internal/infrastructure/cache/redis"
)

// startRedis spins up a disposable redis:7-alpine container for the
// session-store atomicity tests. Uses testcontainers-go's GenericContainer
// directly since only the postgres module is wired elsewhere in this repo.
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

func TestSessionStore_CreateGetDelete_Integration(t *testing.T) {
	client := startRedis(t)
	store := redisstore.NewStore(client, nil)
	ctx := context.Background()

	sess, err := store.Create(ctx, "app1", "user1", "", map[string]interface{}{"a": float64(1)})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	_, err = store.Create(ctx, "app1", "user1", sess.ID, nil)
	require.Error(t, err, "creating with an occupied sessionId must fail")

	got, err := store.Get(ctx, "app1", "user1", sess.ID, session.GetFilter{})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, float64(1), got.State["a"])

	summaries, err := store.List(ctx, "app1", "user1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	require.NoError(t, store.Delete(ctx, "app1", "user1", sess.ID))
	got, err = store.Get(ctx, "app1", "user1", sess.ID, session.GetFilter{})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStore_AppendEvent_AtomicConcurrentAppends_Integration(t *testing.T) {
	client := startRedis(t)
	store := redisstore.NewStore(client, nil)
	ctx := context.Background()

	sess, err := store.Create(ctx, "app1", "user1", "", map[string]interface{}{"a": float64(1)})
	require.NoError(t, err)

	event1 := session.NewEvent(map[string]interface{}{"a": float64(2), "b": float64(3)})
	event2 := session.NewEvent(map[string]interface{}{"a": session.Tombstone, "c": float64(4)})

	done := make(chan error, 2)
	go func() {
		_, err := store.AppendEvent(ctx, "app1", "user1", sess.ID, event1)
		done <- err
	}()
	go func() {
		_, err := store.AppendEvent(ctx, "app1", "user1", sess.ID, event2)
		done <- err
	}()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	time.Sleep(50 * time.Millisecond)

	got, err := store.Get(ctx, "app1", "user1", sess.ID, session.GetFilter{})
	require.NoError(t, err)
	require.Len(t, got.Events, 2)

	_, hasA := got.State["a"]
	if hasA {
		// event2 (tombstone+c) applied before event1 (a:2,b:3)
		require.Equal(t, float64(2), got.State["a"])
	} else {
		// event1 applied before event2's tombstone on "a"
		require.NotContains(t, got.State, "a")
	}
	require.Equal(t, float64(3), got.State["b"])
	require.Equal(t, float64(4), got.State["c"])
}
