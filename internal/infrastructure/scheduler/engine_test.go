package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/domain/resolver"
	"github.com/duragraph/duragraph/internal/domain/run"
	"github.com/duragraph/duragraph/internal/infrastructure/scheduler"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
)

// fakeSnapshotLoader serves a fixed, pre-built snapshot regardless of args.
type fakeSnapshotLoader struct{ snap *canvas.Snapshot }

func (f *fakeSnapshotLoader) LoadCanvasEntities(ctx context.Context, canvasID, userID string) (*canvas.Snapshot, error) {
	return f.snap, nil
}

// fakePersistence is an in-memory Persistence, also the test's observation
// window into every task the engine created.
type fakePersistence struct {
	mu        sync.Mutex
	nodes     map[string]*canvas.Node
	templates map[canvas.NodeType]*canvas.Template
	tasks     map[string]*run.Task // keyed by nodeID
	batches   []*run.Batch
}

func newFakePersistence(nodes []canvas.Node, templates map[canvas.NodeType]*canvas.Template) *fakePersistence {
	p := &fakePersistence{
		nodes:     make(map[string]*canvas.Node, len(nodes)),
		templates: templates,
		tasks:     make(map[string]*run.Task),
	}
	for i := range nodes {
		n := nodes[i]
		p.nodes[n.ID] = &n
	}
	return p
}

func (p *fakePersistence) CreateBatch(ctx context.Context, b *run.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, b)
	return nil
}

func (p *fakePersistence) CreateTask(ctx context.Context, t *run.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[t.NodeID()] = t
	return nil
}

func (p *fakePersistence) UpdateTask(ctx context.Context, t *run.Task) error {
	return nil
}

func (p *fakePersistence) UpdateBatchFinishedAt(ctx context.Context, b *run.Batch) error {
	return nil
}

func (p *fakePersistence) UpdateNodeResult(ctx context.Context, canvasID, nodeID string, result *canvas.NodeResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.nodes[nodeID]; ok {
		n.Result = result
	}
	return nil
}

func (p *fakePersistence) FindNodeByID(ctx context.Context, canvasID, nodeID string) (*canvas.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[nodeID]
	if !ok {
		return nil, nil
	}
	return n, nil
}

func (p *fakePersistence) FindTemplateByType(ctx context.Context, nodeType canvas.NodeType) (*canvas.Template, error) {
	tmpl, ok := p.templates[nodeType]
	if !ok {
		return &canvas.Template{Type: nodeType}, nil
	}
	return tmpl, nil
}

func (p *fakePersistence) taskFor(nodeID string) *run.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks[nodeID]
}

func textResult(value string) *canvas.NodeResult {
	return &canvas.NodeResult{Outputs: []canvas.Output{{Items: []canvas.OutputItem{{Type: canvas.DataTypeText, Data: value}}}}}
}

func defaultTemplates() map[canvas.NodeType]*canvas.Template {
	return map[canvas.NodeType]*canvas.Template{
		canvas.NodeTypeText: {Type: canvas.NodeTypeText, IsTransient: false},
	}
}

func edge(id, source, sourceHandle, target, targetHandle string) canvas.Edge {
	return canvas.Edge{ID: id, Source: source, SourceHandleID: sourceHandle, Target: target, TargetHandleID: targetHandle}
}

func handle(id, nodeID string, typ canvas.HandleType) canvas.Handle {
	return canvas.Handle{ID: id, NodeID: nodeID, Type: typ, DataTypes: []canvas.DataType{canvas.DataTypeText}}
}

func newEngine(t *testing.T, nodes []canvas.Node, edges []canvas.Edge, handles []canvas.Handle, proc processor.Processor) (*scheduler.Engine, *fakePersistence) {
	t.Helper()
	snap := &canvas.Snapshot{
		Canvas:  canvas.Canvas{ID: "canvas-1", UserID: "user-1"},
		Nodes:   nodes,
		Edges:   edges,
		Handles: handles,
	}
	loader := &fakeSnapshotLoader{snap: snap}
	persistence := newFakePersistence(nodes, defaultTemplates())

	registry := processor.NewRegistry()
	require.NoError(t, registry.Register(canvas.NodeTypeText, proc))

	eng := scheduler.NewEngine(loader, persistence, registry, nil, eventbus.New(), 4, nil)
	return eng, persistence
}

// passthroughProcessor always succeeds, returning a fixed text result.
func passthroughProcessor() processor.Processor {
	return processor.ProcessorFunc(func(ctx context.Context, req processor.Request) (processor.Result, error) {
		return processor.Result{Success: true, NewResult: textResult("ok:" + req.Node.ID)}, nil
	})
}

func TestProcessNodes_LinearChain(t *testing.T) {
	// A -> B -> C, targets {C}: spec.md §8 scenario 1.
	nodes := []canvas.Node{{ID: "A", Type: canvas.NodeTypeText}, {ID: "B", Type: canvas.NodeTypeText}, {ID: "C", Type: canvas.NodeTypeText}}
	handles := []canvas.Handle{
		handle("A-out", "A", canvas.HandleTypeOutput),
		handle("B-in", "B", canvas.HandleTypeInput),
		handle("B-out", "B", canvas.HandleTypeOutput),
		handle("C-in", "C", canvas.HandleTypeInput),
	}
	edges := []canvas.Edge{
		edge("e1", "A", "A-out", "B", "B-in"),
		edge("e2", "B", "B-out", "C", "C-in"),
	}

	eng, persistence := newEngine(t, nodes, edges, handles, passthroughProcessor())

	batch, err := eng.ProcessNodes(context.Background(), "canvas-1", "user-1", []string{"C"})
	require.NoError(t, err)
	require.NotNil(t, batch.FinishedAt())

	taskA, taskB, taskC := persistence.taskFor("A"), persistence.taskFor("B"), persistence.taskFor("C")
	require.NotNil(t, taskA)
	require.NotNil(t, taskB)
	require.NotNil(t, taskC)

	assert.Equal(t, canvas.TaskStatusCompleted, taskA.Status())
	assert.Equal(t, canvas.TaskStatusCompleted, taskB.Status())
	assert.Equal(t, canvas.TaskStatusCompleted, taskC.Status())

	require.NotNil(t, taskA.FinishedAt())
	require.NotNil(t, taskB.StartedAt())
	require.NotNil(t, taskB.FinishedAt())
	require.NotNil(t, taskC.StartedAt())
	assert.False(t, taskB.StartedAt().Before(*taskA.FinishedAt()), "B must not start before A finishes")
	assert.False(t, taskC.StartedAt().Before(*taskB.FinishedAt()), "C must not start before B finishes")
}

func TestProcessNodes_DiamondRunsMiddleGenerationConcurrently(t *testing.T) {
	// A -> B, A -> C, B -> D, C -> D: spec.md §8 scenario 2.
	nodes := []canvas.Node{
		{ID: "A", Type: canvas.NodeTypeText}, {ID: "B", Type: canvas.NodeTypeText},
		{ID: "C", Type: canvas.NodeTypeText}, {ID: "D", Type: canvas.NodeTypeText},
	}
	handles := []canvas.Handle{
		handle("A-out", "A", canvas.HandleTypeOutput),
		handle("B-in", "B", canvas.HandleTypeInput), handle("B-out", "B", canvas.HandleTypeOutput),
		handle("C-in", "C", canvas.HandleTypeInput), handle("C-out", "C", canvas.HandleTypeOutput),
		handle("D-in1", "D", canvas.HandleTypeInput), handle("D-in2", "D", canvas.HandleTypeInput),
	}
	edges := []canvas.Edge{
		edge("e1", "A", "A-out", "B", "B-in"),
		edge("e2", "A", "A-out", "C", "C-in"),
		edge("e3", "B", "B-out", "D", "D-in1"),
		edge("e4", "C", "C-out", "D", "D-in2"),
	}

	var inFlight int32
	var sawConcurrency int32
	barrier := make(chan struct{})
	var barrierOnce sync.Once

	proc := processor.ProcessorFunc(func(ctx context.Context, req processor.Request) (processor.Result, error) {
		if req.Node.ID == "B" || req.Node.ID == "C" {
			n := atomic.AddInt32(&inFlight, 1)
			if n == 2 {
				atomic.StoreInt32(&sawConcurrency, 1)
				barrierOnce.Do(func() { close(barrier) })
			} else {
				select {
				case <-barrier:
				case <-time.After(time.Second):
				}
			}
			atomic.AddInt32(&inFlight, -1)
		}
		return processor.Result{Success: true, NewResult: textResult("ok:" + req.Node.ID)}, nil
	})

	eng, persistence := newEngine(t, nodes, edges, handles, proc)

	batch, err := eng.ProcessNodes(context.Background(), "canvas-1", "user-1", []string{"D"})
	require.NoError(t, err)
	require.NotNil(t, batch.FinishedAt())

	assert.Equal(t, int32(1), atomic.LoadInt32(&sawConcurrency), "B and C must run concurrently")

	taskB, taskC, taskD := persistence.taskFor("B"), persistence.taskFor("C"), persistence.taskFor("D")
	require.NotNil(t, taskD.StartedAt())
	assert.False(t, taskD.StartedAt().Before(*taskB.FinishedAt()))
	assert.False(t, taskD.StartedAt().Before(*taskC.FinishedAt()))
}

func TestProcessNodes_FailurePropagatesToDownstream(t *testing.T) {
	// A -> B (required), A fails: spec.md §8 scenario 3.
	nodes := []canvas.Node{{ID: "A", Type: canvas.NodeTypeText}, {ID: "B", Type: canvas.NodeTypeText}}
	handles := []canvas.Handle{
		handle("A-out", "A", canvas.HandleTypeOutput),
		handle("B-in", "B", canvas.HandleTypeInput),
	}
	handles[1].Required = true
	edges := []canvas.Edge{edge("e1", "A", "A-out", "B", "B-in")}

	proc := processor.ProcessorFunc(func(ctx context.Context, req processor.Request) (processor.Result, error) {
		if req.Node.ID == "A" {
			return processor.Result{Success: false, Error: "boom"}, nil
		}
		// B pulls its required Text input through the resolver, the same way
		// a real processor would; A failed, so its result is nil and this
		// must surface EmptyRequiredInput, propagating the failure.
		dataType := canvas.DataTypeText
		if _, err := resolver.GetInputValue(req.Snapshot, req.Node.ID, true, resolver.InputFilter{DataType: &dataType}); err != nil {
			return processor.Result{Success: false, Error: err.Error()}, nil
		}
		return processor.Result{Success: true, NewResult: textResult("ok:" + req.Node.ID)}, nil
	})

	eng, persistence := newEngine(t, nodes, edges, handles, proc)

	batch, err := eng.ProcessNodes(context.Background(), "canvas-1", "user-1", []string{"B"})
	require.NoError(t, err)
	require.NotNil(t, batch.FinishedAt())

	taskA, taskB := persistence.taskFor("A"), persistence.taskFor("B")
	assert.Equal(t, canvas.TaskStatusFailed, taskA.Status())
	assert.Equal(t, "boom", taskA.Error())
	assert.Equal(t, canvas.TaskStatusFailed, taskB.Status())
	assert.Contains(t, taskB.Error(), "EMPTY_REQUIRED_INPUT")
}

func TestProcessNodes_CachedNonTargetNodeSkipsProcessor(t *testing.T) {
	// A -> B, A.isDirty=false, A.result != nil, targets {B}: scenario 4.
	invoked := false
	nodes := []canvas.Node{
		{ID: "A", Type: canvas.NodeTypeText, IsDirty: false, Result: textResult("cached")},
		{ID: "B", Type: canvas.NodeTypeText},
	}
	handles := []canvas.Handle{
		handle("A-out", "A", canvas.HandleTypeOutput),
		handle("B-in", "B", canvas.HandleTypeInput),
	}
	edges := []canvas.Edge{edge("e1", "A", "A-out", "B", "B-in")}

	proc := processor.ProcessorFunc(func(ctx context.Context, req processor.Request) (processor.Result, error) {
		if req.Node.ID == "A" {
			invoked = true
		}
		return processor.Result{Success: true, NewResult: textResult("ok:" + req.Node.ID)}, nil
	})

	eng, persistence := newEngine(t, nodes, edges, handles, proc)

	batch, err := eng.ProcessNodes(context.Background(), "canvas-1", "user-1", []string{"B"})
	require.NoError(t, err)
	require.NotNil(t, batch.FinishedAt())

	assert.False(t, invoked, "A's processor must not run when cached and non-target")

	taskA := persistence.taskFor("A")
	assert.Equal(t, canvas.TaskStatusCompleted, taskA.Status())
	assert.Equal(t, int64(0), taskA.DurationMs())
}

func TestProcessNodes_DefaultsToAllNodesWhenNoTargetsGiven(t *testing.T) {
	nodes := []canvas.Node{{ID: "A", Type: canvas.NodeTypeText}}
	eng, persistence := newEngine(t, nodes, nil, nil, passthroughProcessor())

	batch, err := eng.ProcessNodes(context.Background(), "canvas-1", "user-1", nil)
	require.NoError(t, err)
	require.NotNil(t, batch.FinishedAt())

	require.NotNil(t, persistence.taskFor("A"))
	assert.Equal(t, canvas.TaskStatusCompleted, persistence.taskFor("A").Status())
}
