package processors_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/infrastructure/processors"
)

func TestTextProcessor_RepublishesConfigValue(t *testing.T) {
	node := canvas.Node{
		ID:     "n1",
		Type:   canvas.NodeTypeText,
		Config: map[string]interface{}{"value": "hello world"},
	}
	snap := &canvas.Snapshot{
		Nodes:   []canvas.Node{node},
		Handles: []canvas.Handle{{ID: "h-out", NodeID: "n1", Type: canvas.HandleTypeOutput}},
	}

	proc := processors.NewTextProcessor()
	result, err := proc.Process(context.Background(), processor.Request{Node: node, Snapshot: snap})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.NewResult.Outputs, 1)
	item := result.NewResult.Outputs[0].Items[0]
	assert.Equal(t, canvas.DataTypeText, item.Type)
	assert.Equal(t, "hello world", item.Data)
	require.NotNil(t, item.OutputHandleID)
	assert.Equal(t, "h-out", *item.OutputHandleID)
}

func TestTextProcessor_EmptyConfigProducesEmptyString(t *testing.T) {
	node := canvas.Node{ID: "n1", Type: canvas.NodeTypeText}
	snap := &canvas.Snapshot{Nodes: []canvas.Node{node}}

	proc := processors.NewTextProcessor()
	result, err := proc.Process(context.Background(), processor.Request{Node: node, Snapshot: snap})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "", result.NewResult.Outputs[0].Items[0].Data)
}
