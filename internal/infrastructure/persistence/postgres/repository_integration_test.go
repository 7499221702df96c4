//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/run"
	"github.com/duragraph/duragraph/internal/infrastructure/persistence/postgres"
)

// startPostgres boots a disposable Postgres container, applies every
// migration in this package's migrations/ directory, and returns a pool
// connected to it.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("enginetest"),
		tcpostgres.WithUsername("enginetest"),
		tcpostgres.WithPassword("enginetest"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://migrations", connStr)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func seedCanvas(t *testing.T, ctx context.Context, pool *pgxpool.Pool, canvasID, userID string) {
	t.Helper()
	_, err := pool.Exec(ctx, `INSERT INTO canvases (id, user_id) VALUES ($1, $2)`, canvasID, userID)
	require.NoError(t, err)
}

func seedTemplate(t *testing.T, ctx context.Context, pool *pgxpool.Pool, nodeType string) {
	t.Helper()
	_, err := pool.Exec(ctx, `INSERT INTO templates (type) VALUES ($1) ON CONFLICT DO NOTHING`, nodeType)
	require.NoError(t, err)
}

func TestCanvasRepository_LoadCanvasEntities_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := postgres.NewCanvasRepository(pool)

	seedCanvas(t, ctx, pool, "canvas-1", "user-1")
	seedTemplate(t, ctx, pool, "text")
	_, err := pool.Exec(ctx, `INSERT INTO nodes (id, canvas_id, type, name, config, is_dirty) VALUES
		($1, $2, 'text', 'greeting', '{"value":"hi"}', false)`, "node-1", "canvas-1")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO handles (id, node_id, type, data_types, label, order_idx, required) VALUES
		($1, $2, 'output', ARRAY['Text'], 'out', 0, false)`, "handle-1", "node-1")
	require.NoError(t, err)

	snap, err := repo.LoadCanvasEntities(ctx, "canvas-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "canvas-1", snap.Canvas.ID)
	require.Len(t, snap.Nodes, 1)
	require.Equal(t, "node-1", snap.Nodes[0].ID)
	require.Len(t, snap.Handles, 1)

	_, err = repo.LoadCanvasEntities(ctx, "canvas-1", "wrong-user")
	require.Error(t, err, "loading with the wrong owner must fail")

	_, err = repo.LoadCanvasEntities(ctx, "no-such-canvas", "user-1")
	require.Error(t, err, "loading an unknown canvas must fail")
}

func TestCanvasRepository_UpdateNodeResult_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := postgres.NewCanvasRepository(pool)

	seedCanvas(t, ctx, pool, "canvas-1", "user-1")
	seedTemplate(t, ctx, pool, "text")
	_, err := pool.Exec(ctx, `INSERT INTO nodes (id, canvas_id, type, name, is_dirty) VALUES
		($1, $2, 'text', 'greeting', false)`, "node-1", "canvas-1")
	require.NoError(t, err)

	handleID := "handle-1"
	result := &canvas.NodeResult{Outputs: []canvas.Output{{Items: []canvas.OutputItem{
		{Type: canvas.DataTypeText, Data: "hi", OutputHandleID: &handleID},
	}}}}
	require.NoError(t, repo.UpdateNodeResult(ctx, "canvas-1", "node-1", result))

	node, err := repo.FindNodeByID(ctx, "canvas-1", "node-1")
	require.NoError(t, err)
	require.NotNil(t, node.Result)
	require.Len(t, node.Result.Outputs, 1)

	err = repo.UpdateNodeResult(ctx, "canvas-1", "no-such-node", result)
	require.Error(t, err, "updating a missing node must fail")
}

func TestBatchAndTaskRepositories_CreateAndFind_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	seedCanvas(t, ctx, pool, "canvas-1", "user-1")
	eventStore := postgres.NewEventStore(pool)
	batchRepo := postgres.NewBatchRepository(pool, eventStore)
	taskRepo := postgres.NewTaskRepository(pool, eventStore)

	batch, err := run.NewBatch("canvas-1", "user-1")
	require.NoError(t, err)
	require.NoError(t, batchRepo.CreateBatch(ctx, batch))

	task, err := run.NewTask("node-1", batch.ID())
	require.NoError(t, err)
	require.NoError(t, taskRepo.CreateTask(ctx, task))

	require.NoError(t, task.Start())
	require.NoError(t, taskRepo.UpdateTask(ctx, task))

	tasks, err := taskRepo.FindByBatchID(ctx, batch.ID())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, canvas.TaskStatusExecuting, tasks[0].Status())

	require.NoError(t, batch.Finish())
	require.NoError(t, batchRepo.UpdateBatchFinishedAt(ctx, batch))

	found, err := batchRepo.FindByID(ctx, batch.ID())
	require.NoError(t, err)
	require.True(t, found.IsFinished())
}
