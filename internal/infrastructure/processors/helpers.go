package processors

import "github.com/duragraph/duragraph/internal/domain/canvas"

// outputHandleIDs returns the IDs of nodeID's output handles, in declared
// order, for processors that need to tag their result items.
func outputHandleIDs(snap *canvas.Snapshot, nodeID string) []string {
	ids := make([]string, 0, 2)
	for _, h := range snap.Handles {
		if h.NodeID == nodeID && h.Type == canvas.HandleTypeOutput {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

// singleOutput wraps one typed value as a one-item, one-output NodeResult
// tagged for outputHandleID (may be nil).
func singleOutput(dataType canvas.DataType, data interface{}, outputHandleID *string) *canvas.NodeResult {
	return &canvas.NodeResult{
		Outputs: []canvas.Output{{
			Items: []canvas.OutputItem{{
				Type:           dataType,
				Data:           data,
				OutputHandleID: outputHandleID,
			}},
		}},
	}
}
