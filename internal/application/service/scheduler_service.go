package service

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/run"
	"github.com/duragraph/duragraph/internal/infrastructure/scheduler"
)

// TaskLister is the read side of batch/task lookups the API needs beyond
// what scheduler.Engine itself exposes (it only ever creates/runs batches).
type TaskLister interface {
	FindByID(ctx context.Context, id string) (*run.Batch, error)
	FindByCanvasID(ctx context.Context, canvasID string, limit, offset int) ([]*run.Batch, error)
}

type taskFinder interface {
	FindByBatchID(ctx context.Context, batchID string) ([]*run.Task, error)
}

// SchedulerService orchestrates canvas execution, thinly wrapping
// scheduler.Engine the way the teacher's RunService wraps graph.Engine:
// the domain logic lives in the engine, this layer only adds the read paths
// an HTTP handler needs (batch/task lookup) that ProcessNodes doesn't return.
type SchedulerService struct {
	engine  *scheduler.Engine
	batches TaskLister
	tasks   taskFinder
}

// NewSchedulerService creates a new SchedulerService.
func NewSchedulerService(engine *scheduler.Engine, batches TaskLister, tasks taskFinder) *SchedulerService {
	return &SchedulerService{engine: engine, batches: batches, tasks: tasks}
}

// RunBatch starts and runs a full batch synchronously, per spec.md §4.2's
// ProcessNodes contract (no async/queued submission - the caller blocks for
// the whole generation loop, matching the teacher's own synchronous
// CreateRunAndWait path).
func (s *SchedulerService) RunBatch(ctx context.Context, canvasID, userID string, nodeIDs []string) (*run.Batch, []*run.Task, error) {
	batch, err := s.engine.ProcessNodes(ctx, canvasID, userID, nodeIDs)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.tasks.FindByBatchID(ctx, batch.ID())
	if err != nil {
		return nil, nil, err
	}
	return batch, tasks, nil
}

// GetBatch loads a batch and its tasks for status polling (spec.md §6:
// "GET .../runs/:batch_id -> batch + task status").
func (s *SchedulerService) GetBatch(ctx context.Context, batchID string) (*run.Batch, []*run.Task, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.tasks.FindByBatchID(ctx, batch.ID())
	if err != nil {
		return nil, nil, err
	}
	return batch, tasks, nil
}

// ListBatches lists a canvas's batch history, most recent first.
func (s *SchedulerService) ListBatches(ctx context.Context, canvasID string, limit, offset int) ([]*run.Batch, error) {
	return s.batches.FindByCanvasID(ctx, canvasID, limit, offset)
}
