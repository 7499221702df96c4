package processors

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/domain/resolver"
)

// mediaDataTypes are the DataTypes a transformation node will accept as its
// source input.
var mediaDataTypes = []canvas.DataType{canvas.DataTypeImage, canvas.DataTypeVideo}

// resolveMediaInput finds the first matching media-typed required input and
// returns it as a canvas.VirtualMedia leaf (wrapping whatever FileData/tree
// the upstream node produced).
func resolveMediaInput(snap *canvas.Snapshot, nodeID string) (*canvas.VirtualMedia, canvas.DataType, error) {
	var lastErr error
	for _, dt := range mediaDataTypes {
		dt := dt
		item, err := resolver.GetInputValue(snap, nodeID, true, resolver.InputFilter{DataType: &dt})
		if err != nil {
			lastErr = err
			continue
		}
		return asVirtualMedia(item), dt, nil
	}
	return nil, "", lastErr
}

// asVirtualMedia coerces a resolved OutputItem into a VirtualMedia tree,
// wrapping a bare FileData as a source leaf if it isn't already a tree (the
// common case: the immediate upstream is a file/generator node, not another
// transform).
func asVirtualMedia(item *canvas.OutputItem) *canvas.VirtualMedia {
	if item == nil {
		return nil
	}
	if vm, ok := item.Data.(canvas.VirtualMedia); ok {
		return &vm
	}
	if fd, ok := item.Data.(canvas.FileData); ok {
		return &canvas.VirtualMedia{Source: &fd}
	}
	return &canvas.VirtualMedia{}
}

// newTransformProcessor builds a transformation-tree-only processor: it
// never touches codec bytes, it just appends one more node (tagged
// operation, with params copied from the node's own config) onto the
// resolved upstream VirtualMedia tree. Grounded on spec.md §1 Non-goals
// ("no real codec work"); the tree itself is what compositor/export later
// walk to do real work outside this module's scope.
func newTransformProcessor(operation string) processor.Processor {
	return processor.ProcessorFunc(func(ctx context.Context, req processor.Request) (processor.Result, error) {
		child, dataType, err := resolveMediaInput(req.Snapshot, req.Node.ID)
		if err != nil {
			return processor.Result{Success: false, Error: err.Error()}, nil
		}

		tree := canvas.VirtualMedia{
			Operation: operation,
			Params:    req.Node.Config,
			Children:  []canvas.VirtualMedia{*child},
		}

		outHandles := outputHandleIDs(req.Snapshot, req.Node.ID)
		var handleID *string
		if len(outHandles) > 0 {
			handleID = &outHandles[0]
		}

		return processor.Result{
			Success:   true,
			NewResult: singleOutput(dataType, tree, handleID),
		}, nil
	})
}

// NewResizeProcessor builds the processor for canvas.NodeTypeResize.
func NewResizeProcessor() processor.Processor { return newTransformProcessor("resize") }

// NewCropProcessor builds the processor for canvas.NodeTypeCrop.
func NewCropProcessor() processor.Processor { return newTransformProcessor("crop") }

// NewBlurProcessor builds the processor for canvas.NodeTypeBlur.
func NewBlurProcessor() processor.Processor { return newTransformProcessor("blur") }
