// Package processor defines the contract the scheduler uses to invoke
// per-node work and the static registry that maps a node's type to its
// processor. Processors themselves are out of scope per spec.md §1; this
// package only fixes the shape of the injection surface.
package processor

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/resolver"
)

// Request is everything a processor needs to do its work: the node being
// executed, the full batch snapshot (so the processor can call the resolver
// itself), object storage, and the API key context carried on the snapshot.
type Request struct {
	Node      canvas.Node
	Snapshot  *canvas.Snapshot
	Storage   resolver.ObjectStorage
	APIKey    string
	SessionID string
}

// Result is what a processor returns. Success=false with Error set is the
// typed equivalent of the teacher's JS processors throwing; the scheduler
// converts either shape into a FAILED task, never recovering it.
type Result struct {
	Success   bool
	Error     string
	NewResult *canvas.NodeResult
}

// Processor is the narrow contract every node type's implementation must
// satisfy. Processors must not mutate Request.Snapshot directly; any output
// flows back through Result.NewResult, which the scheduler installs.
type Processor interface {
	Process(ctx context.Context, req Request) (Result, error)
}

// ProcessorFunc adapts a plain function to the Processor interface, mirroring
// the teacher's func-as-handler style used in its HTTP layer.
type ProcessorFunc func(ctx context.Context, req Request) (Result, error)

func (f ProcessorFunc) Process(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
