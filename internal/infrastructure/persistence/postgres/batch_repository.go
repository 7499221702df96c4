package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duragraph/duragraph/internal/domain/run"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// BatchRepository implements run.BatchRepository over a CRUD table plus the
// shared event store, grounded on the teacher's RunRepository (CRUD table +
// eventStore.SaveEvents, cleared after a successful write).
type BatchRepository struct {
	pool       *pgxpool.Pool
	eventStore *EventStore
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(pool *pgxpool.Pool, eventStore *EventStore) *BatchRepository {
	return &BatchRepository{pool: pool, eventStore: eventStore}
}

// Save persists a newly created batch row and flushes its recorded events.
func (r *BatchRepository) Save(ctx context.Context, batch *run.Batch) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO batches (id, canvas_id, user_id, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5)
	`, batch.ID(), batch.CanvasID(), batch.UserID(), batch.CreatedAt(), batch.FinishedAt())
	if err != nil {
		return errors.Internal("failed to save batch", err)
	}
	return r.flushEvents(ctx, batch)
}

// Update writes the batch's mutable fields (finishedAt) and flushes events.
func (r *BatchRepository) Update(ctx context.Context, batch *run.Batch) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE batches SET finished_at = $1 WHERE id = $2
	`, batch.FinishedAt(), batch.ID())
	if err != nil {
		return errors.Internal("failed to update batch", err)
	}
	return r.flushEvents(ctx, batch)
}

// FindByID retrieves a batch by ID.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*run.Batch, error) {
	var data run.BatchData
	err := r.pool.QueryRow(ctx, `
		SELECT id, canvas_id, user_id, created_at, finished_at
		FROM batches WHERE id = $1
	`, id).Scan(&data.ID, &data.CanvasID, &data.UserID, &data.CreatedAt, &data.FinishedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("batch", id)
		}
		return nil, errors.Internal("failed to find batch", err)
	}
	return run.ReconstructBatchFromData(data), nil
}

// FindByCanvasID lists batches for a canvas, most recent first.
func (r *BatchRepository) FindByCanvasID(ctx context.Context, canvasID string, limit, offset int) ([]*run.Batch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, canvas_id, user_id, created_at, finished_at
		FROM batches
		WHERE canvas_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, canvasID, limit, offset)
	if err != nil {
		return nil, errors.Internal("failed to query batches", err)
	}
	defer rows.Close()

	batches := make([]*run.Batch, 0)
	for rows.Next() {
		var data run.BatchData
		if err := rows.Scan(&data.ID, &data.CanvasID, &data.UserID, &data.CreatedAt, &data.FinishedAt); err != nil {
			return nil, errors.Internal("failed to scan batch", err)
		}
		batches = append(batches, run.ReconstructBatchFromData(data))
	}
	return batches, nil
}

func (r *BatchRepository) flushEvents(ctx context.Context, batch *run.Batch) error {
	if len(batch.Events()) == 0 {
		return nil
	}
	if err := r.eventStore.SaveEvents(ctx, "batch:"+batch.ID(), "batch", batch.ID(), batch.Events()); err != nil {
		return err
	}
	batch.ClearEvents()
	return nil
}

// UpdateBatchFinishedAt is the scheduler.Persistence-facing alias for
// Update — named separately so the port's intent reads clearly at the call
// site even though the implementation is identical.
func (r *BatchRepository) UpdateBatchFinishedAt(ctx context.Context, batch *run.Batch) error {
	return r.Update(ctx, batch)
}

// CreateBatch is the scheduler.Persistence-facing alias for Save.
func (r *BatchRepository) CreateBatch(ctx context.Context, batch *run.Batch) error {
	return r.Save(ctx, batch)
}
