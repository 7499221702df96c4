package processors

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/domain/resolver"
)

// NewCompositorProcessor builds the processor for canvas.NodeTypeCompositor:
// it gathers every incoming media input (variable arity, unlike the
// single-input transforms) via resolver.GetAllInputValuesWithHandle and
// merges them into one "composite" VirtualMedia tree whose children are the
// per-handle source trees, in input-handle order.
func NewCompositorProcessor() processor.Processor {
	return processor.ProcessorFunc(func(ctx context.Context, req processor.Request) (processor.Result, error) {
		values, err := resolver.GetAllInputValuesWithHandle(req.Snapshot, req.Node.ID)
		if err != nil {
			return processor.Result{Success: false, Error: err.Error()}, nil
		}

		children := make([]canvas.VirtualMedia, 0, len(values))
		for _, hv := range values {
			vm := asVirtualMedia(hv.Value)
			if vm == nil {
				continue
			}
			children = append(children, *vm)
		}
		if len(children) == 0 {
			return processor.Result{Success: false, Error: "compositor has no resolved media inputs"}, nil
		}

		tree := canvas.VirtualMedia{
			Operation: "composite",
			Params:    req.Node.Config,
			Children:  children,
		}

		outHandles := outputHandleIDs(req.Snapshot, req.Node.ID)
		var handleID *string
		if len(outHandles) > 0 {
			handleID = &outHandles[0]
		}

		return processor.Result{
			Success:   true,
			NewResult: singleOutput(canvas.DataTypeImage, tree, handleID),
		}, nil
	})
}
