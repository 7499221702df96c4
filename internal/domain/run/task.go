package run

import (
	"time"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/pkg/errors"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
)

// Task is the per-run record of a single node's execution: status, timing,
// error, and result. Created QUEUED by the scheduler; resolved to COMPLETED
// or FAILED once the processor returns or the deadlock safety net fires.
// Never revisited after reaching a terminal status.
type Task struct {
	id         string
	nodeID     string
	batchID    string
	status     canvas.TaskStatus
	startedAt  *time.Time
	finishedAt *time.Time
	durationMs int64
	errMsg     string
	result     *canvas.NodeResult

	events []eventbus.Event
}

// NewTask creates a QUEUED task for nodeID within batchID. All task IDs are
// stable for the rest of the run (spec.md §4.2 step 3).
func NewTask(nodeID, batchID string) (*Task, error) {
	if nodeID == "" {
		return nil, errors.InvalidInput("node_id", "node_id is required")
	}
	if batchID == "" {
		return nil, errors.InvalidInput("batch_id", "batch_id is required")
	}

	t := &Task{
		id:      pkguuid.New(),
		nodeID:  nodeID,
		batchID: batchID,
		status:  canvas.TaskStatusQueued,
		events:  make([]eventbus.Event, 0),
	}

	t.recordEvent(TaskQueued{TaskID: t.id, NodeID: nodeID, BatchID: batchID, OccurredAt: time.Now()})
	return t, nil
}

func (t *Task) ID() string                    { return t.id }
func (t *Task) NodeID() string                { return t.nodeID }
func (t *Task) BatchID() string               { return t.batchID }
func (t *Task) Status() canvas.TaskStatus      { return t.status }
func (t *Task) StartedAt() *time.Time         { return t.startedAt }
func (t *Task) FinishedAt() *time.Time        { return t.finishedAt }
func (t *Task) DurationMs() int64             { return t.durationMs }
func (t *Task) Error() string                 { return t.errMsg }
func (t *Task) Result() *canvas.NodeResult    { return t.result }

// Start transitions QUEUED -> EXECUTING and stamps startedAt.
func (t *Task) Start() error {
	if !t.status.CanTransitionTo(canvas.TaskStatusExecuting) {
		return errors.InvalidState(t.status.String(), "start")
	}

	now := time.Now()
	t.status = canvas.TaskStatusExecuting
	t.startedAt = &now
	t.recordEvent(TaskStarted{TaskID: t.id, OccurredAt: now})
	return nil
}

// Complete transitions EXECUTING -> COMPLETED, stamping finishedAt and
// durationMs relative to startedAt. Skipped tasks use CompleteSkipped instead.
func (t *Task) Complete(result *canvas.NodeResult) error {
	if !t.status.CanTransitionTo(canvas.TaskStatusCompleted) {
		return errors.InvalidState(t.status.String(), "complete")
	}

	now := time.Now()
	t.status = canvas.TaskStatusCompleted
	t.result = result
	t.finishedAt = &now
	t.durationMs = t.elapsedMs(now)

	t.recordEvent(TaskCompleted{TaskID: t.id, Result: result, DurationMs: t.durationMs, OccurredAt: now})
	return nil
}

// CompleteSkipped marks a cached, non-target node COMPLETED without ever
// transitioning through EXECUTING and with durationMs forced to 0 — the
// cache-idempotence path of spec.md §4.2 step 2 / §8 property 5.
func (t *Task) CompleteSkipped(result *canvas.NodeResult) error {
	if t.status != canvas.TaskStatusQueued {
		return errors.InvalidState(t.status.String(), "complete_skipped")
	}

	now := time.Now()
	t.status = canvas.TaskStatusCompleted
	t.result = result
	t.startedAt = &now
	t.finishedAt = &now
	t.durationMs = 0

	t.recordEvent(TaskCompleted{TaskID: t.id, Result: result, DurationMs: 0, OccurredAt: now})
	return nil
}

// Fail transitions QUEUED or EXECUTING -> FAILED. A QUEUED task can fail
// directly: the dependency-cycle/deadlock safety net (spec.md §4.2 step 5)
// never passes such nodes through EXECUTING.
func (t *Task) Fail(errMsg string) error {
	if !t.status.CanTransitionTo(canvas.TaskStatusFailed) {
		return errors.InvalidState(t.status.String(), "fail")
	}

	now := time.Now()
	t.status = canvas.TaskStatusFailed
	t.errMsg = errMsg
	t.finishedAt = &now
	t.durationMs = t.elapsedMs(now)

	t.recordEvent(TaskFailed{TaskID: t.id, Error: errMsg, DurationMs: t.durationMs, OccurredAt: now})
	return nil
}

func (t *Task) elapsedMs(now time.Time) int64 {
	if t.startedAt == nil {
		return 0
	}
	return now.Sub(*t.startedAt).Milliseconds()
}

func (t *Task) Events() []eventbus.Event { return t.events }

func (t *Task) ClearEvents() { t.events = make([]eventbus.Event, 0) }

func (t *Task) recordEvent(event eventbus.Event) {
	t.events = append(t.events, event)
}

// ReconstructTask rebuilds a Task aggregate from its event stream.
func ReconstructTask(events []eventbus.Event) (*Task, error) {
	if len(events) == 0 {
		return nil, errors.InvalidInput("events", "at least one event is required")
	}

	t := &Task{events: make([]eventbus.Event, 0)}
	for _, event := range events {
		t.applyEvent(event)
	}
	return t, nil
}

func (t *Task) applyEvent(event eventbus.Event) {
	switch e := event.(type) {
	case TaskQueued:
		t.id = e.TaskID
		t.nodeID = e.NodeID
		t.batchID = e.BatchID
		t.status = canvas.TaskStatusQueued
	case TaskStarted:
		t.status = canvas.TaskStatusExecuting
		startedAt := e.OccurredAt
		t.startedAt = &startedAt
	case TaskCompleted:
		t.status = canvas.TaskStatusCompleted
		t.result = e.Result
		t.durationMs = e.DurationMs
		finishedAt := e.OccurredAt
		t.finishedAt = &finishedAt
	case TaskFailed:
		t.status = canvas.TaskStatusFailed
		t.errMsg = e.Error
		t.durationMs = e.DurationMs
		finishedAt := e.OccurredAt
		t.finishedAt = &finishedAt
	}
}

// TaskData holds a flat projection of a Task row.
type TaskData struct {
	ID         string
	NodeID     string
	BatchID    string
	Status     canvas.TaskStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
	DurationMs int64
	Error      string
	Result     *canvas.NodeResult
}

// ReconstructTaskFromData builds a Task from a database projection.
func ReconstructTaskFromData(data TaskData) *Task {
	return &Task{
		id:         data.ID,
		nodeID:     data.NodeID,
		batchID:    data.BatchID,
		status:     data.Status,
		startedAt:  data.StartedAt,
		finishedAt: data.FinishedAt,
		durationMs: data.DurationMs,
		errMsg:     data.Error,
		result:     data.Result,
		events:     make([]eventbus.Event, 0),
	}
}
