package processors

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/infrastructure/monitoring"
)

// newTerminalProcessor builds a processor for a Template.IsTerminal=true
// node: it has no output handles of its own, so it just resolves and
// republishes its single media input unchanged. preview and export differ
// only in how a caller is expected to treat the result (display vs. a
// durable deliverable), which is outside the scheduler's concern.
func newTerminalProcessor() processor.Processor {
	return processor.ProcessorFunc(func(ctx context.Context, req processor.Request) (processor.Result, error) {
		child, dataType, err := resolveMediaInput(req.Snapshot, req.Node.ID)
		if err != nil {
			return processor.Result{Success: false, Error: err.Error()}, nil
		}

		return processor.Result{
			Success:   true,
			NewResult: singleOutput(dataType, *child, nil),
		}, nil
	})
}

// NewPreviewProcessor builds the processor for canvas.NodeTypePreview.
func NewPreviewProcessor() processor.Processor { return newTerminalProcessor() }

// NewExportProcessor builds the processor for canvas.NodeTypeExport.
func NewExportProcessor() processor.Processor { return newTerminalProcessor() }

// RegisterAll wires every reference processor into registry under its
// canvas.NodeType, mirroring the teacher's tools.Registry bulk-registration
// at startup. metrics may be nil.
func RegisterAll(registry *processor.Registry, newLLMClient ClientFactory, metrics *monitoring.Metrics) error {
	entries := []struct {
		nodeType canvas.NodeType
		proc     processor.Processor
	}{
		{canvas.NodeTypeText, NewTextProcessor()},
		{canvas.NodeTypeLLM, NewLLMProcessor(newLLMClient, metrics)},
		{canvas.NodeTypeResize, NewResizeProcessor()},
		{canvas.NodeTypeCrop, NewCropProcessor()},
		{canvas.NodeTypeBlur, NewBlurProcessor()},
		{canvas.NodeTypeCompositor, NewCompositorProcessor()},
		{canvas.NodeTypePreview, NewPreviewProcessor()},
		{canvas.NodeTypeExport, NewExportProcessor()},
	}
	for _, e := range entries {
		if err := registry.Register(e.nodeType, e.proc); err != nil {
			return err
		}
	}
	return nil
}
