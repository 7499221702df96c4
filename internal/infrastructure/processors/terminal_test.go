package processors_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
	"github.com/duragraph/duragraph/internal/infrastructure/processors"
)

func TestPreviewProcessor_RepublishesUpstreamUnchanged(t *testing.T) {
	snap := imageSnapshot("preview")
	node := snap.Nodes[1]
	node.Type = canvas.NodeTypePreview

	proc := processors.NewPreviewProcessor()
	result, err := proc.Process(context.Background(), processor.Request{Node: node, Snapshot: snap})
	require.NoError(t, err)
	require.True(t, result.Success)
	item := result.NewResult.Outputs[0].Items[0]
	vm, ok := item.Data.(canvas.VirtualMedia)
	require.True(t, ok)
	assert.Equal(t, "k1", vm.Source.Entity.Key)
}

func TestRegisterAll_PopulatesEveryNodeType(t *testing.T) {
	registry := processor.NewRegistry()
	err := processors.RegisterAll(registry, func(apiKey, model string) llm.Client { return nil }, nil)
	require.NoError(t, err)

	types := []canvas.NodeType{
		canvas.NodeTypeText, canvas.NodeTypeLLM, canvas.NodeTypeResize,
		canvas.NodeTypeCrop, canvas.NodeTypeBlur, canvas.NodeTypeCompositor,
		canvas.NodeTypePreview, canvas.NodeTypeExport,
	}
	for _, nt := range types {
		_, err := registry.Get(nt)
		assert.NoError(t, err, "expected a processor registered for %s", nt)
	}
}
