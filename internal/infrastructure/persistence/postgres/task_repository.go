package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/run"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// TaskRepository implements run.TaskRepository, grounded on the same CRUD-
// table-plus-event-store shape as BatchRepository.
type TaskRepository struct {
	pool       *pgxpool.Pool
	eventStore *EventStore
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(pool *pgxpool.Pool, eventStore *EventStore) *TaskRepository {
	return &TaskRepository{pool: pool, eventStore: eventStore}
}

// Save persists a newly queued task row and flushes its recorded events.
func (r *TaskRepository) Save(ctx context.Context, task *run.Task) error {
	resultJSON, err := json.Marshal(task.Result())
	if err != nil {
		return errors.Internal("failed to marshal task result", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO tasks (id, node_id, batch_id, status, started_at, finished_at, duration_ms, error, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, task.ID(), task.NodeID(), task.BatchID(), string(task.Status()),
		task.StartedAt(), task.FinishedAt(), task.DurationMs(), task.Error(), resultJSON)
	if err != nil {
		return errors.Internal("failed to save task", err)
	}
	return r.flushEvents(ctx, task)
}

// Update writes a task's current status/timing/result and flushes events.
func (r *TaskRepository) Update(ctx context.Context, task *run.Task) error {
	resultJSON, err := json.Marshal(task.Result())
	if err != nil {
		return errors.Internal("failed to marshal task result", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $1, started_at = $2, finished_at = $3, duration_ms = $4, error = $5, result = $6
		WHERE id = $7
	`, string(task.Status()), task.StartedAt(), task.FinishedAt(), task.DurationMs(), task.Error(), resultJSON, task.ID())
	if err != nil {
		return errors.Internal("failed to update task", err)
	}
	return r.flushEvents(ctx, task)
}

// FindByID retrieves a task by ID.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*run.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, node_id, batch_id, status, started_at, finished_at, duration_ms, error, result
		FROM tasks WHERE id = $1
	`, id)
	data, err := scanTaskRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("task", id)
		}
		return nil, errors.Internal("failed to find task", err)
	}
	return run.ReconstructTaskFromData(data), nil
}

// FindByBatchID lists every task belonging to a batch.
func (r *TaskRepository) FindByBatchID(ctx context.Context, batchID string) ([]*run.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, node_id, batch_id, status, started_at, finished_at, duration_ms, error, result
		FROM tasks WHERE batch_id = $1
	`, batchID)
	if err != nil {
		return nil, errors.Internal("failed to query tasks", err)
	}
	defer rows.Close()

	tasks := make([]*run.Task, 0)
	for rows.Next() {
		data, err := scanTaskRow(rows)
		if err != nil {
			return nil, errors.Internal("failed to scan task", err)
		}
		tasks = append(tasks, run.ReconstructTaskFromData(data))
	}
	return tasks, nil
}

// rowScanner is the subset of both pgx.Row and pgx.Rows a single-row scan
// helper needs.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTaskRow decodes one task row, returning the raw scan/unmarshal error
// (including pgx.ErrNoRows) unwrapped so callers can classify it themselves.
func scanTaskRow(row rowScanner) (run.TaskData, error) {
	var data run.TaskData
	var status string
	var resultJSON []byte

	if err := row.Scan(
		&data.ID, &data.NodeID, &data.BatchID, &status,
		&data.StartedAt, &data.FinishedAt, &data.DurationMs, &data.Error, &resultJSON,
	); err != nil {
		return run.TaskData{}, err
	}
	data.Status = canvas.TaskStatus(status)
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &data.Result); err != nil {
			return run.TaskData{}, err
		}
	}
	return data, nil
}

func (r *TaskRepository) flushEvents(ctx context.Context, task *run.Task) error {
	if len(task.Events()) == 0 {
		return nil
	}
	if err := r.eventStore.SaveEvents(ctx, "task:"+task.ID(), "task", task.ID(), task.Events()); err != nil {
		return err
	}
	task.ClearEvents()
	return nil
}

// CreateTask is the scheduler.Persistence-facing alias for Save.
func (r *TaskRepository) CreateTask(ctx context.Context, task *run.Task) error {
	return r.Save(ctx, task)
}

// UpdateTask is the scheduler.Persistence-facing alias for Update.
func (r *TaskRepository) UpdateTask(ctx context.Context, task *run.Task) error {
	return r.Update(ctx, task)
}

// FailStaleExecutingTasks implements scheduler.TaskLeaseSweeper: it fails
// every task still EXECUTING with started_at older than lease, returning how
// many rows it reaped. This is the crash-recovery net the in-process
// deadlock detector cannot provide (it only runs at the end of a live
// ProcessNodes call).
func (r *TaskRepository) FailStaleExecutingTasks(ctx context.Context, lease time.Duration) (int, error) {
	cutoff := time.Now().Add(-lease)
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'FAILED', finished_at = NOW(), error = 'DependencyCycleOrDeadlock: task lease expired (process likely crashed mid-batch)'
		WHERE status = 'EXECUTING' AND started_at < $1
	`, cutoff)
	if err != nil {
		return 0, errors.Internal("failed to sweep stale executing tasks", err)
	}
	return int(tag.RowsAffected()), nil
}
