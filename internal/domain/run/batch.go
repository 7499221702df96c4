// Package run holds the Batch and Task event-sourced aggregates — the
// durable record of one processNodes call. Generalized from the teacher's
// run.Run (one LLM conversation run) to "one batch of node tasks"; the
// event-sourcing shape (recordEvent/Events/ClearEvents/Reconstruct) is kept
// verbatim from the teacher's style.
package run

import (
	"time"

	"github.com/duragraph/duragraph/internal/pkg/errors"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
)

// Batch is the collection of tasks produced by one processNodes call.
type Batch struct {
	id         string
	canvasID   string
	userID     string
	createdAt  time.Time
	finishedAt *time.Time

	events []eventbus.Event
}

// NewBatch opens a new batch for a processNodes run.
func NewBatch(canvasID, userID string) (*Batch, error) {
	if canvasID == "" {
		return nil, errors.InvalidInput("canvas_id", "canvas_id is required")
	}
	if userID == "" {
		return nil, errors.InvalidInput("user_id", "user_id is required")
	}

	now := time.Now()
	b := &Batch{
		id:        pkguuid.New(),
		canvasID:  canvasID,
		userID:    userID,
		createdAt: now,
		events:    make([]eventbus.Event, 0),
	}

	b.recordEvent(BatchCreated{
		BatchID:    b.id,
		CanvasID:   canvasID,
		UserID:     userID,
		OccurredAt: now,
	})

	return b, nil
}

func (b *Batch) ID() string            { return b.id }
func (b *Batch) CanvasID() string      { return b.canvasID }
func (b *Batch) UserID() string        { return b.userID }
func (b *Batch) CreatedAt() time.Time  { return b.createdAt }
func (b *Batch) FinishedAt() *time.Time { return b.finishedAt }
func (b *Batch) IsFinished() bool      { return b.finishedAt != nil }

// Finish stamps finishedAt once every task in the batch has resolved. The
// batch itself never fails (spec.md §7): this is the only terminal
// transition it has.
func (b *Batch) Finish() error {
	if b.finishedAt != nil {
		return errors.InvalidState("finished", "finish")
	}

	now := time.Now()
	b.finishedAt = &now
	b.recordEvent(BatchFinished{BatchID: b.id, OccurredAt: now})
	return nil
}

func (b *Batch) Events() []eventbus.Event { return b.events }

func (b *Batch) ClearEvents() { b.events = make([]eventbus.Event, 0) }

func (b *Batch) recordEvent(event eventbus.Event) {
	b.events = append(b.events, event)
}

// ReconstructBatch rebuilds a Batch aggregate from its event stream.
func ReconstructBatch(events []eventbus.Event) (*Batch, error) {
	if len(events) == 0 {
		return nil, errors.InvalidInput("events", "at least one event is required")
	}

	b := &Batch{events: make([]eventbus.Event, 0)}
	for _, event := range events {
		b.applyEvent(event)
	}
	return b, nil
}

func (b *Batch) applyEvent(event eventbus.Event) {
	switch e := event.(type) {
	case BatchCreated:
		b.id = e.BatchID
		b.canvasID = e.CanvasID
		b.userID = e.UserID
		b.createdAt = e.OccurredAt
	case BatchFinished:
		finishedAt := e.OccurredAt
		b.finishedAt = &finishedAt
	}
}

// BatchData holds a flat projection of a Batch row, as read back from
// Postgres without replaying the event stream.
type BatchData struct {
	ID         string
	CanvasID   string
	UserID     string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// ReconstructBatchFromData builds a Batch from a database projection.
func ReconstructBatchFromData(data BatchData) *Batch {
	return &Batch{
		id:         data.ID,
		canvasID:   data.CanvasID,
		userID:     data.UserID,
		createdAt:  data.CreatedAt,
		finishedAt: data.FinishedAt,
		events:     make([]eventbus.Event, 0),
	}
}
