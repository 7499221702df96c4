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

func imageSnapshot(transformNodeID string) *canvas.Snapshot {
	fileNode := canvas.Node{ID: "file", Type: canvas.NodeTypeFile}
	transformNode := canvas.Node{
		ID:     transformNodeID,
		Type:   canvas.NodeTypeResize,
		Config: map[string]interface{}{"width": float64(800)},
	}
	fileHandleID := "file-out"
	fileNode.Result = &canvas.NodeResult{Outputs: []canvas.Output{{
		Items: []canvas.OutputItem{{
			Type:           canvas.DataTypeImage,
			Data:           canvas.FileData{Entity: &canvas.PersistedFile{Key: "k1", Bucket: "b", MimeType: "image/png"}},
			OutputHandleID: &fileHandleID,
		}},
	}}}

	return &canvas.Snapshot{
		Nodes: []canvas.Node{fileNode, transformNode},
		Handles: []canvas.Handle{
			{ID: "file-out", NodeID: "file", Type: canvas.HandleTypeOutput, DataTypes: []canvas.DataType{canvas.DataTypeImage}},
			{ID: transformNodeID + "-in", NodeID: transformNodeID, Type: canvas.HandleTypeInput, DataTypes: []canvas.DataType{canvas.DataTypeImage}, Required: true},
			{ID: transformNodeID + "-out", NodeID: transformNodeID, Type: canvas.HandleTypeOutput, DataTypes: []canvas.DataType{canvas.DataTypeImage}},
		},
		Edges: []canvas.Edge{
			{ID: "e1", Source: "file", SourceHandleID: "file-out", Target: transformNodeID, TargetHandleID: transformNodeID + "-in"},
		},
	}
}

func TestResizeProcessor_WrapsUpstreamInTransformTree(t *testing.T) {
	snap := imageSnapshot("resize")
	node := snap.Nodes[1]

	proc := processors.NewResizeProcessor()
	result, err := proc.Process(context.Background(), processor.Request{Node: node, Snapshot: snap})
	require.NoError(t, err)
	require.True(t, result.Success)

	item := result.NewResult.Outputs[0].Items[0]
	assert.Equal(t, canvas.DataTypeImage, item.Type)
	tree, ok := item.Data.(canvas.VirtualMedia)
	require.True(t, ok)
	assert.Equal(t, "resize", tree.Operation)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "k1", tree.Children[0].Source.Entity.Key)
}

func TestCompositorProcessor_MergesMultipleInputs(t *testing.T) {
	nodeA := canvas.Node{ID: "a", Type: canvas.NodeTypeFile}
	nodeB := canvas.Node{ID: "b", Type: canvas.NodeTypeFile}
	compositor := canvas.Node{ID: "c", Type: canvas.NodeTypeCompositor}

	handleA := "a-out"
	nodeA.Result = &canvas.NodeResult{Outputs: []canvas.Output{{Items: []canvas.OutputItem{{
		Type: canvas.DataTypeImage, Data: canvas.FileData{Entity: &canvas.PersistedFile{Key: "ka"}}, OutputHandleID: &handleA,
	}}}}}
	handleB := "b-out"
	nodeB.Result = &canvas.NodeResult{Outputs: []canvas.Output{{Items: []canvas.OutputItem{{
		Type: canvas.DataTypeImage, Data: canvas.FileData{Entity: &canvas.PersistedFile{Key: "kb"}}, OutputHandleID: &handleB,
	}}}}}

	snap := &canvas.Snapshot{
		Nodes: []canvas.Node{nodeA, nodeB, compositor},
		Handles: []canvas.Handle{
			{ID: "a-out", NodeID: "a", Type: canvas.HandleTypeOutput, DataTypes: []canvas.DataType{canvas.DataTypeImage}},
			{ID: "b-out", NodeID: "b", Type: canvas.HandleTypeOutput, DataTypes: []canvas.DataType{canvas.DataTypeImage}},
			{ID: "c-in1", NodeID: "c", Type: canvas.HandleTypeInput, DataTypes: []canvas.DataType{canvas.DataTypeImage}, Order: 0},
			{ID: "c-in2", NodeID: "c", Type: canvas.HandleTypeInput, DataTypes: []canvas.DataType{canvas.DataTypeImage}, Order: 1},
		},
		Edges: []canvas.Edge{
			{ID: "e1", Source: "a", SourceHandleID: "a-out", Target: "c", TargetHandleID: "c-in1"},
			{ID: "e2", Source: "b", SourceHandleID: "b-out", Target: "c", TargetHandleID: "c-in2"},
		},
	}

	proc := processors.NewCompositorProcessor()
	result, err := proc.Process(context.Background(), processor.Request{Node: compositor, Snapshot: snap})
	require.NoError(t, err)
	require.True(t, result.Success)

	tree, ok := result.NewResult.Outputs[0].Items[0].Data.(canvas.VirtualMedia)
	require.True(t, ok)
	assert.Equal(t, "composite", tree.Operation)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "ka", tree.Children[0].Source.Entity.Key)
	assert.Equal(t, "kb", tree.Children[1].Source.Entity.Key)
}
