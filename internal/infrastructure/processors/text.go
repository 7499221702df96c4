package processors

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
)

// NewTextProcessor builds the processor for canvas.NodeTypeText: it holds a
// literal value in its own Config and has no required inputs, so running it
// is a passthrough that republishes that value as its single output.
func NewTextProcessor() processor.Processor {
	return processor.ProcessorFunc(func(ctx context.Context, req processor.Request) (processor.Result, error) {
		value, _ := req.Node.Config["value"].(string)

		outHandles := outputHandleIDs(req.Snapshot, req.Node.ID)
		var handleID *string
		if len(outHandles) > 0 {
			handleID = &outHandles[0]
		}

		return processor.Result{
			Success:   true,
			NewResult: singleOutput(canvas.DataTypeText, value, handleID),
		}, nil
	})
}
