package app

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/run"
	"github.com/duragraph/duragraph/internal/infrastructure/persistence/postgres"
	"github.com/duragraph/duragraph/internal/infrastructure/scheduler"
)

// schedulerPersistence composes the Batch, Task, and Node/Template
// repositories into the single scheduler.Persistence port the engine
// expects. Each repository only implements the slice of the interface
// matching its own aggregate; this adapter is pure wiring, no logic of its
// own.
type schedulerPersistence struct {
	nodes   *postgres.CanvasRepository
	batches *postgres.BatchRepository
	tasks   *postgres.TaskRepository
}

// NewSchedulerPersistence composes repository adapters into a scheduler.Persistence.
func NewSchedulerPersistence(nodes *postgres.CanvasRepository, batches *postgres.BatchRepository, tasks *postgres.TaskRepository) scheduler.Persistence {
	return schedulerPersistence{nodes: nodes, batches: batches, tasks: tasks}
}

func (p schedulerPersistence) CreateBatch(ctx context.Context, batch *run.Batch) error {
	return p.batches.CreateBatch(ctx, batch)
}

func (p schedulerPersistence) UpdateBatchFinishedAt(ctx context.Context, batch *run.Batch) error {
	return p.batches.UpdateBatchFinishedAt(ctx, batch)
}

func (p schedulerPersistence) CreateTask(ctx context.Context, task *run.Task) error {
	return p.tasks.CreateTask(ctx, task)
}

func (p schedulerPersistence) UpdateTask(ctx context.Context, task *run.Task) error {
	return p.tasks.UpdateTask(ctx, task)
}

func (p schedulerPersistence) UpdateNodeResult(ctx context.Context, canvasID, nodeID string, result *canvas.NodeResult) error {
	return p.nodes.UpdateNodeResult(ctx, canvasID, nodeID, result)
}

func (p schedulerPersistence) FindNodeByID(ctx context.Context, canvasID, nodeID string) (*canvas.Node, error) {
	return p.nodes.FindNodeByID(ctx, canvasID, nodeID)
}

func (p schedulerPersistence) FindTemplateByType(ctx context.Context, nodeType canvas.NodeType) (*canvas.Template, error) {
	return p.nodes.FindTemplateByType(ctx, nodeType)
}
