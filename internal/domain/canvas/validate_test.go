package canvas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/canvas"
)

func textHandle(id, nodeID string, t canvas.HandleType, order int) canvas.Handle {
	return canvas.Handle{
		ID:        id,
		NodeID:    nodeID,
		Type:      t,
		DataTypes: []canvas.DataType{canvas.DataTypeText},
		Order:     order,
	}
}

func linearSnapshot() *canvas.Snapshot {
	return &canvas.Snapshot{
		Canvas: canvas.Canvas{ID: "c1", UserID: "u1"},
		Nodes: []canvas.Node{
			{ID: "A", Type: canvas.NodeTypeText},
			{ID: "B", Type: canvas.NodeTypeText},
		},
		Handles: []canvas.Handle{
			textHandle("A-out", "A", canvas.HandleTypeOutput, 0),
			textHandle("B-in", "B", canvas.HandleTypeInput, 0),
		},
		Edges: []canvas.Edge{
			{ID: "e1", Source: "A", SourceHandleID: "A-out", Target: "B", TargetHandleID: "B-in"},
		},
	}
}

func TestValidateSnapshot_Valid(t *testing.T) {
	require.NoError(t, canvas.ValidateSnapshot(linearSnapshot()))
}

func TestValidateSnapshot_SelfEdgeForbidden(t *testing.T) {
	s := linearSnapshot()
	s.Edges[0].Target = "A"
	s.Edges[0].TargetHandleID = "A-out"

	err := canvas.ValidateSnapshot(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-edges")
}

func TestValidateSnapshot_DuplicateNodeID(t *testing.T) {
	s := linearSnapshot()
	s.Nodes = append(s.Nodes, canvas.Node{ID: "A"})

	err := canvas.ValidateSnapshot(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node ID")
}

func TestValidateSnapshot_EdgeDirectionEnforced(t *testing.T) {
	s := linearSnapshot()
	// Swap handle types: sourceHandleId now points at an Input handle.
	s.Handles[0].Type = canvas.HandleTypeInput

	err := canvas.ValidateSnapshot(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an Output handle")
}

func TestValidateSnapshot_DataTypeOverlapRequired(t *testing.T) {
	s := linearSnapshot()
	s.Handles[1].DataTypes = []canvas.DataType{canvas.DataTypeNumber}

	err := canvas.ValidateSnapshot(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not overlap")
}

func TestValidateSnapshot_DetectsCycle(t *testing.T) {
	s := linearSnapshot()
	s.Handles = append(s.Handles,
		textHandle("B-out", "B", canvas.HandleTypeOutput, 0),
		textHandle("A-in", "A", canvas.HandleTypeInput, 0),
	)
	s.Edges = append(s.Edges, canvas.Edge{
		ID: "e2", Source: "B", SourceHandleID: "B-out", Target: "A", TargetHandleID: "A-in",
	})

	err := canvas.ValidateSnapshot(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestNodeResult_SelectedOutput(t *testing.T) {
	handleID := "h1"
	r := &canvas.NodeResult{
		Outputs: []canvas.Output{
			{Items: []canvas.OutputItem{{Type: canvas.DataTypeText, Data: "first", OutputHandleID: &handleID}}},
			{Items: []canvas.OutputItem{{Type: canvas.DataTypeText, Data: "second"}}},
		},
		SelectedOutputIndex: 1,
	}

	out := r.SelectedOutput()
	require.NotNil(t, out)
	assert.Equal(t, "second", out.Items[0].Data)
}

func TestNodeResult_SelectedOutput_OutOfRange(t *testing.T) {
	r := &canvas.NodeResult{SelectedOutputIndex: 5}
	assert.Nil(t, r.SelectedOutput())
}
