// Package scheduler turns a run request into an ordered, partially parallel
// execution of node processors. Grounded on the teacher's
// internal/infrastructure/graph.Engine (buildExecutionPlan + executePlan +
// executeNode), replacing its sequential FIFO queue with an errgroup-bounded
// generation barrier: spec.md §4.2 requires every ready node in a generation
// to run concurrently, not one at a time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/domain/resolver"
	"github.com/duragraph/duragraph/internal/domain/run"
	"github.com/duragraph/duragraph/internal/infrastructure/monitoring"
	"github.com/duragraph/duragraph/internal/pkg/errors"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
)

// Engine is the scheduler core: stateless between calls, holding only its
// collaborator ports. One Engine serves any number of concurrent
// ProcessNodes calls over different batches — the teacher's Engine holds the
// same shape (eventBus + repo ports), guarded by a mutex only where it
// mutates shared maps; ProcessNodes here never shares state across calls.
type Engine struct {
	snapshots   SnapshotLoader
	persistence Persistence
	registry    *processor.Registry
	storage     resolver.ObjectStorage
	eventBus    *eventbus.EventBus
	maxParallel int
	logger      *slog.Logger
	metrics     *monitoring.Metrics
}

// NewEngine wires an Engine. maxParallel <= 0 defaults to 2x GOMAXPROCS, the
// bounded-concurrency divergence from the teacher's unbounded-within-a-
// generation execution (spec.md §4.2 step 4b requires concurrency but not
// unboundedness). metrics may be nil, in which case the engine runs without
// instrumentation (used by cmd/enginectl run, which has no metrics registry
// to publish against).
func NewEngine(snapshots SnapshotLoader, persistence Persistence, registry *processor.Registry, storage resolver.ObjectStorage, eventBus *eventbus.EventBus, maxParallel int, metrics *monitoring.Metrics) *Engine {
	if maxParallel <= 0 {
		maxParallel = runtime.GOMAXPROCS(0) * 2
	}
	return &Engine{
		snapshots:   snapshots,
		persistence: persistence,
		registry:    registry,
		storage:     storage,
		eventBus:    eventBus,
		maxParallel: maxParallel,
		logger:      slog.Default().With("component", "scheduler"),
		metrics:     metrics,
	}
}

// nodeOutcome is what each executeNode call reports back to the generation
// loop: whether the node resolved (COMPLETED or FAILED either count, per
// spec.md §4.2 step 4c). Children are looked up by the loop, not carried here.
type nodeOutcome struct {
	nodeID   string
	resolved bool
}

// ProcessNodes is the scheduler's sole exposed operation (spec.md §6.1). It
// blocks until the batch completes; per-node progress is observable through
// task row updates as they happen.
func (e *Engine) ProcessNodes(ctx context.Context, canvasID, userID string, targetNodeIDs []string) (*run.Batch, error) {
	snap, err := e.snapshots.LoadCanvasEntities(ctx, canvasID, userID)
	if err != nil {
		return nil, err
	}

	targets := targetNodeIDs
	if len(targets) == 0 {
		targets = make([]string, len(snap.Nodes))
		for i, n := range snap.Nodes {
			targets[i] = n.ID
		}
	}
	targetSet := make(map[string]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}

	necessary := necessarySubgraph(snap, targets)

	batch, err := run.NewBatch(canvasID, userID)
	if err != nil {
		return nil, err
	}
	if err := e.persistence.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	e.publish(ctx, batch)
	if e.metrics != nil {
		e.metrics.RecordBatchCreated(canvasID)
	}

	tasks := make(map[string]*run.Task, len(necessary))
	for _, nodeID := range necessary {
		task, err := run.NewTask(nodeID, batch.ID())
		if err != nil {
			return nil, err
		}
		if err := e.persistence.CreateTask(ctx, task); err != nil {
			return nil, err
		}
		e.publish(ctx, task)
		tasks[nodeID] = task
		snap.Tasks = append(snap.Tasks, canvas.SnapshotTask{ID: task.ID(), NodeID: nodeID})
	}

	adj := buildAdjacency(snap, necessary)

	var mu sync.Mutex
	statusMap := make(map[string]canvas.TaskStatus, len(necessary))
	for _, n := range necessary {
		statusMap[n] = canvas.TaskStatusQueued
	}

	current := adj.initialReady()
	for len(current) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.maxParallel)

		outcomes := make([]nodeOutcome, len(current))
		for i, nodeID := range current {
			i, nodeID := i, nodeID
			g.Go(func() error {
				resolved := e.executeNode(gctx, snap, tasks[nodeID], targetSet, &mu, statusMap)
				outcomes[i] = nodeOutcome{nodeID: nodeID, resolved: resolved}
				return nil
			})
		}
		_ = g.Wait() // executeNode never returns an error; task failures are recorded on the task, not propagated here

		var next []string
		for _, o := range outcomes {
			if !o.resolved {
				continue
			}
			for _, child := range adj.forward[o.nodeID] {
				adj.indegree[child]--
				if adj.indegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		current = next
	}

	// Cycle/deadlock safety net (spec.md §4.2 step 5): any node never
	// dispatched is still QUEUED here.
	mu.Lock()
	for _, n := range necessary {
		if statusMap[n] == canvas.TaskStatusQueued {
			task := tasks[n]
			if err := task.Fail("DependencyCycleOrDeadlock: node's upstream dependencies never resolved"); err != nil {
				e.logger.Error("failed to fail deadlocked task", "task_id", task.ID(), "error", err)
			}
			if err := e.persistence.UpdateTask(ctx, task); err != nil {
				e.logger.Error("failed to persist deadlocked task", "task_id", task.ID(), "error", err)
			}
			e.publish(ctx, task)
			statusMap[n] = canvas.TaskStatusFailed
			if e.metrics != nil {
				nodeType := "unknown"
				if node := snap.NodeByID(n); node != nil {
					nodeType = string(node.Type)
				}
				e.metrics.RecordTaskStatusTransition(string(canvas.TaskStatusQueued), string(canvas.TaskStatusFailed))
				e.metrics.RecordNodeError(nodeType, "DEPENDENCY_CYCLE_OR_DEADLOCK")
			}
		}
	}
	mu.Unlock()

	if err := batch.Finish(); err != nil {
		return nil, err
	}
	if err := e.persistence.UpdateBatchFinishedAt(ctx, batch); err != nil {
		return nil, err
	}
	e.publish(ctx, batch)
	if e.metrics != nil && batch.FinishedAt() != nil {
		e.metrics.RecordBatchCompleted(canvasID, batch.FinishedAt().Sub(batch.CreatedAt()))
	}

	return batch, nil
}

// executeNode runs one node's task to a terminal status and reports whether
// it resolved (it always does — FAILED counts as resolved per spec.md §4.2
// step 4c). Grounded on the teacher's executeNode, replacing its
// execution.GetExecutorForNodeType dispatch with the processor registry.
func (e *Engine) executeNode(ctx context.Context, snap *canvas.Snapshot, task *run.Task, targetSet map[string]bool, mu *sync.Mutex, statusMap map[string]canvas.TaskStatus) bool {
	nodeID := task.NodeID()
	node := snap.NodeByID(nodeID)
	nodeType := "unknown"
	if node != nil {
		nodeType = string(node.Type)
	}
	start := time.Now()

	fail := func(msg string) bool {
		if err := task.Fail(msg); err != nil {
			e.logger.Error("failed to transition task to FAILED", "task_id", task.ID(), "error", err)
		}
		if err := e.persistence.UpdateTask(ctx, task); err != nil {
			e.logger.Error("failed to persist failed task", "task_id", task.ID(), "error", err)
		}
		e.publish(ctx, task)
		e.setStatus(mu, statusMap, nodeID, canvas.TaskStatusFailed)
		if e.metrics != nil {
			e.metrics.RecordNodeExecution(nodeType, "failed", time.Since(start))
			e.metrics.RecordNodeError(nodeType, errorCode(msg))
		}
		return true
	}

	// Skip rule (spec.md §4.2 step 2 / §8 property 5): cached, non-target,
	// non-dirty nodes complete without invoking a processor.
	if !targetSet[nodeID] && node != nil && !node.IsDirty && node.Result != nil {
		if err := task.CompleteSkipped(node.Result); err != nil {
			return fail(err.Error())
		}
		if err := e.persistence.UpdateTask(ctx, task); err != nil {
			e.logger.Error("failed to persist skipped task", "task_id", task.ID(), "error", err)
		}
		e.publish(ctx, task)
		e.setStatus(mu, statusMap, nodeID, canvas.TaskStatusCompleted)
		if e.metrics != nil {
			e.metrics.RecordNodeExecution(nodeType, "skipped", time.Since(start))
		}
		return true
	}

	if err := task.Start(); err != nil {
		return fail(err.Error())
	}
	if err := e.persistence.UpdateTask(ctx, task); err != nil {
		e.logger.Error("failed to persist started task", "task_id", task.ID(), "error", err)
	}
	e.publish(ctx, task)
	e.setStatus(mu, statusMap, nodeID, canvas.TaskStatusExecuting)

	dbNode, err := e.persistence.FindNodeByID(ctx, snap.Canvas.ID, nodeID)
	if err != nil || dbNode == nil {
		return fail(fmt.Sprintf("NodeRemovedBeforeProcessing: %s", nodeID))
	}

	template, err := e.persistence.FindTemplateByType(ctx, dbNode.Type)
	if err != nil {
		return fail(fmt.Sprintf("NodeRemovedBeforeProcessing: no template for type %s", dbNode.Type))
	}

	proc, err := e.registry.Get(dbNode.Type)
	if err != nil {
		return fail(err.Error())
	}

	snapshotTask := &canvas.SnapshotTask{ID: task.ID(), NodeID: nodeID}
	snap.Task = snapshotTask

	req := processor.Request{
		Node:     *dbNode,
		Snapshot: snap,
		Storage:  e.storage,
		APIKey:   snap.APIKey,
	}

	result, procErr := proc.Process(ctx, req)
	if procErr != nil {
		result = processor.Result{Success: false, Error: procErr.Error()}
	}
	if !result.Success {
		errMsg := result.Error
		if errMsg == "" {
			errMsg = "ProcessorFailure: processor reported failure with no message"
		}
		return fail(errMsg)
	}

	if result.NewResult != nil {
		installResult(snap, nodeID, result.NewResult)
	}

	if template.IsTransient {
		setSnapshotTaskResult(snap, task.ID(), result.NewResult)
	} else if result.NewResult != nil {
		if err := e.persistence.UpdateNodeResult(ctx, snap.Canvas.ID, nodeID, result.NewResult); err != nil && !errors.Is(err, errors.ErrNotFound) {
			return fail(fmt.Sprintf("PersistenceFailure: %v", err))
		}
	}

	if err := task.Complete(result.NewResult); err != nil {
		return fail(err.Error())
	}
	if err := e.persistence.UpdateTask(ctx, task); err != nil {
		e.logger.Error("failed to persist completed task", "task_id", task.ID(), "error", err)
	}
	e.publish(ctx, task)
	e.setStatus(mu, statusMap, nodeID, canvas.TaskStatusCompleted)
	if e.metrics != nil {
		e.metrics.RecordNodeExecution(nodeType, "completed", time.Since(start))
	}
	return true
}

// errorCode extracts the leading "CODE: " prefix a *errors.DomainError's
// Error() string carries (e.g. "MISSING_REQUIRED_INPUT: node ... "),
// falling back to "unknown" for plain messages that don't follow the
// convention.
func errorCode(msg string) string {
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[:idx]
	}
	return "unknown"
}

func (e *Engine) setStatus(mu *sync.Mutex, statusMap map[string]canvas.TaskStatus, nodeID string, status canvas.TaskStatus) {
	mu.Lock()
	from := statusMap[nodeID]
	statusMap[nodeID] = status
	mu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordTaskStatusTransition(string(from), string(status))
	}
}

// installResult mutates the in-memory snapshot's node result exactly once
// (spec.md §5 "single-writer result" / §8 property 3) so the next
// generation's resolver calls see it without a second DB fetch.
func installResult(snap *canvas.Snapshot, nodeID string, result *canvas.NodeResult) {
	node := snap.NodeByID(nodeID)
	if node == nil {
		return
	}
	copied := *result
	node.Result = &copied
	node.IsDirty = false
}

// setSnapshotTaskResult writes a transient node's result onto its task row
// in the in-memory snapshot (spec.md §8 property 6): the node row is never
// touched, so the resolver must read it back via Snapshot.TaskForNode.
func setSnapshotTaskResult(snap *canvas.Snapshot, taskID string, result *canvas.NodeResult) {
	for i := range snap.Tasks {
		if snap.Tasks[i].ID == taskID {
			snap.Tasks[i].Result = result
			return
		}
	}
}

// publish drains and publishes an aggregate's recorded events, logging
// (never failing the run on) a subscriber error — mirroring the teacher's
// fire-and-forget eventBus.Publish calls in executeNode/Execute.
func (e *Engine) publish(ctx context.Context, agg interface {
	Events() []eventbus.Event
	ClearEvents()
}) {
	if e.eventBus == nil {
		return
	}
	for _, evt := range agg.Events() {
		if err := e.eventBus.Publish(ctx, evt); err != nil {
			e.logger.Error("event publish failed", "event_type", evt.EventType(), "error", err)
		}
		if e.metrics != nil {
			e.metrics.RecordEventPublished(evt.EventType())
		}
	}
	agg.ClearEvents()
}
