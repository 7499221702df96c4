package run

import (
	"time"

	"github.com/duragraph/duragraph/internal/domain/canvas"
)

// Event types, mirroring the teacher's run.Event*Type naming.
const (
	EventTypeBatchCreated  = "batch.created"
	EventTypeBatchFinished = "batch.finished"
	EventTypeTaskQueued    = "task.queued"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
)

// BatchCreated is recorded when a new batch is opened for a processNodes
// call, before any task has been created.
type BatchCreated struct {
	BatchID    string    `json:"batch_id"`
	CanvasID   string    `json:"canvas_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e BatchCreated) EventType() string     { return EventTypeBatchCreated }
func (e BatchCreated) AggregateID() string   { return e.BatchID }
func (e BatchCreated) AggregateType() string { return "batch" }

// BatchFinished is recorded once every task in the batch has resolved.
type BatchFinished struct {
	BatchID    string    `json:"batch_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e BatchFinished) EventType() string     { return EventTypeBatchFinished }
func (e BatchFinished) AggregateID() string   { return e.BatchID }
func (e BatchFinished) AggregateType() string { return "batch" }

// TaskQueued is recorded when a task row is first created, QUEUED.
type TaskQueued struct {
	TaskID     string    `json:"task_id"`
	NodeID     string    `json:"node_id"`
	BatchID    string    `json:"batch_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e TaskQueued) EventType() string     { return EventTypeTaskQueued }
func (e TaskQueued) AggregateID() string   { return e.TaskID }
func (e TaskQueued) AggregateType() string { return "task" }

// TaskStarted is recorded when a task's generation begins executing.
type TaskStarted struct {
	TaskID     string    `json:"task_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e TaskStarted) EventType() string     { return EventTypeTaskStarted }
func (e TaskStarted) AggregateID() string   { return e.TaskID }
func (e TaskStarted) AggregateType() string { return "task" }

// TaskCompleted is recorded when a task's processor returns success.
type TaskCompleted struct {
	TaskID     string             `json:"task_id"`
	Result     *canvas.NodeResult `json:"result,omitempty"`
	DurationMs int64              `json:"duration_ms"`
	OccurredAt time.Time          `json:"occurred_at"`
}

func (e TaskCompleted) EventType() string     { return EventTypeTaskCompleted }
func (e TaskCompleted) AggregateID() string   { return e.TaskID }
func (e TaskCompleted) AggregateType() string { return "task" }

// TaskFailed is recorded when a task fails, whether from a processor error,
// a resolver error, a persistence failure, or the dependency-cycle/deadlock
// safety net.
type TaskFailed struct {
	TaskID     string    `json:"task_id"`
	Error      string    `json:"error"`
	DurationMs int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e TaskFailed) EventType() string     { return EventTypeTaskFailed }
func (e TaskFailed) AggregateID() string   { return e.TaskID }
func (e TaskFailed) AggregateType() string { return "task" }
