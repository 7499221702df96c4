package run

import "context"

// BatchRepository persists Batch aggregates.
type BatchRepository interface {
	Save(ctx context.Context, batch *Batch) error
	FindByID(ctx context.Context, id string) (*Batch, error)
	FindByCanvasID(ctx context.Context, canvasID string, limit, offset int) ([]*Batch, error)
	Update(ctx context.Context, batch *Batch) error
}

// TaskRepository persists Task aggregates. This, together with
// BatchRepository, is the concrete backend behind the narrow Persistence
// port the scheduler engine consumes (spec.md §6 "Consumed" #2).
type TaskRepository interface {
	Save(ctx context.Context, task *Task) error
	FindByID(ctx context.Context, id string) (*Task, error)
	FindByBatchID(ctx context.Context, batchID string) ([]*Task, error)
	Update(ctx context.Context, task *Task) error
}
