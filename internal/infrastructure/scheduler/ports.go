package scheduler

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/run"
)

// SnapshotLoader loads a canvas's nodes/edges/handles, scoped to the owning
// user. Fails with CANVAS_NOT_FOUND if canvasID is unknown or not owned by
// userID — spec.md §6 Consumed #1.
type SnapshotLoader interface {
	LoadCanvasEntities(ctx context.Context, canvasID, userID string) (*canvas.Snapshot, error)
}

// Persistence is the narrow write-path the scheduler core talks to — it
// never touches a DB driver directly (spec.md §6 Consumed #2).
type Persistence interface {
	CreateBatch(ctx context.Context, batch *run.Batch) error
	CreateTask(ctx context.Context, task *run.Task) error
	UpdateTask(ctx context.Context, task *run.Task) error
	UpdateBatchFinishedAt(ctx context.Context, batch *run.Batch) error

	// UpdateNodeResult persists a non-transient node's result into its node
	// row. "Not found" errors are swallowed by the caller (the row may have
	// been deleted concurrently); anything else is a PersistenceFailure.
	UpdateNodeResult(ctx context.Context, canvasID, nodeID string, result *canvas.NodeResult) error

	FindNodeByID(ctx context.Context, canvasID, nodeID string) (*canvas.Node, error)
	FindTemplateByType(ctx context.Context, nodeType canvas.NodeType) (*canvas.Template, error)
}
