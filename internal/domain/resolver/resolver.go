// Package resolver implements the pure functions that locate the input
// values a node should consume from a canvas.Snapshot. Nothing here mutates
// the snapshot; installing a node's own result back into it is the
// scheduler's job (internal/infrastructure/scheduler).
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// InputFilter narrows which incoming edges of a target node are candidates.
// A nil field means "no constraint on that dimension".
type InputFilter struct {
	DataType *canvas.DataType
	Label    *string
}

func (f InputFilter) String() string {
	dt := "any"
	if f.DataType != nil {
		dt = string(*f.DataType)
	}
	label := "any"
	if f.Label != nil {
		label = *f.Label
	}
	return fmt.Sprintf("{dataType:%s label:%s}", dt, label)
}

// HandleValue pairs a target input handle with its resolved value (nil if
// the handle has no satisfied incoming edge).
type HandleValue struct {
	Handle canvas.Handle
	Value  *canvas.OutputItem
}

// ObjectStorage is the narrow interface the resolver consumes to load media
// bytes. Processors, not the scheduler, drive the concrete implementation;
// per spec.md §1 Non-goals this package never implements a real vendor
// backend, only the contract.
type ObjectStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	StatMimeType(ctx context.Context, key string) (string, error)
}

// matchingInEdges returns the incoming edges of targetNodeID whose target
// handle satisfies filter, sorted ascending by the target handle's Order.
func matchingInEdges(snap *canvas.Snapshot, targetNodeID string, filter InputFilter) []canvas.Edge {
	candidates := make([]canvas.Edge, 0, 4)
	for _, e := range snap.InEdgesTo(targetNodeID) {
		handle := snap.HandleByID(e.TargetHandleID)
		if handle == nil {
			continue
		}
		if filter.DataType != nil && !handle.AcceptsDataType(*filter.DataType) {
			continue
		}
		if filter.Label != nil && handle.Label != *filter.Label {
			continue
		}
		candidates = append(candidates, e)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		hi := snap.HandleByID(candidates[i].TargetHandleID)
		hj := snap.HandleByID(candidates[j].TargetHandleID)
		return hi.Order < hj.Order
	})

	return candidates
}

// resolveEdgeValue follows one edge back to its source node's finalised
// result and returns the OutputItem tagged for that edge's source handle.
// A nil, nil result means "no value yet" (upstream hasn't produced one),
// which is not itself an error — required-ness is the caller's concern.
func resolveEdgeValue(snap *canvas.Snapshot, e canvas.Edge) (*canvas.OutputItem, error) {
	sourceNode := snap.NodeByID(e.Source)
	if sourceNode == nil {
		return nil, MissingSourceNodeErr(e.ID, e.Source)
	}
	if snap.HandleByID(e.SourceHandleID) == nil {
		return nil, MissingSourceHandleErr(e.ID, e.SourceHandleID)
	}

	// Transient nodes persist into the task row for this batch; prefer it
	// over the node's own (stale, or never-written) result field.
	var result *canvas.NodeResult
	if task := snap.TaskForNode(e.Source); task != nil && task.Result != nil {
		result = task.Result
	} else {
		result = sourceNode.Result
	}
	if result == nil {
		return nil, nil
	}

	output := result.SelectedOutput()
	if output == nil {
		return nil, nil
	}

	return output.ItemForHandle(e.SourceHandleID), nil
}

// GetInputValue returns the value for the single best-matching incoming edge
// of targetNodeID. Among multiple matches, the target handle with the lowest
// Order wins (a tie-break, not an ambiguity error) and a warning is logged
// naming the edge that was chosen. If required and no edge
// matches, fails with MissingRequiredInput; if required and the matching
// edge's source has not produced a value, fails with EmptyRequiredInput.
func GetInputValue(snap *canvas.Snapshot, targetNodeID string, required bool, filter InputFilter) (*canvas.OutputItem, error) {
	edges := matchingInEdges(snap, targetNodeID, filter)
	if len(edges) == 0 {
		if required {
			return nil, MissingRequiredInputErr(targetNodeID, filter)
		}
		return nil, nil
	}

	chosen := edges[0]
	if len(edges) > 1 {
		slog.Warn("multiple input edges match; using the lowest-order target handle",
			"node_id", targetNodeID, "filter", filter.String(), "matches", len(edges), "edge_id", chosen.ID)
	}
	item, err := resolveEdgeValue(snap, chosen)
	if err != nil {
		return nil, err
	}
	if item == nil && required {
		return nil, EmptyRequiredInputErr(targetNodeID, chosen.ID)
	}
	return item, nil
}

// GetInputValuesByType returns the resolved value for every edge matching
// filter, in target-handle order, including nil entries for edges whose
// source has not yet produced a value. Unlike GetInputValue this never fails
// on an empty result — callers asking for "all of them" expect gaps.
func GetInputValuesByType(snap *canvas.Snapshot, targetNodeID string, filter InputFilter) ([]*canvas.OutputItem, error) {
	edges := matchingInEdges(snap, targetNodeID, filter)
	items := make([]*canvas.OutputItem, 0, len(edges))
	for _, e := range edges {
		item, err := resolveEdgeValue(snap, e)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// GetAllOutputHandles returns every Output handle belonging to nodeID.
func GetAllOutputHandles(snap *canvas.Snapshot, nodeID string) []canvas.Handle {
	out := make([]canvas.Handle, 0, 2)
	for _, h := range snap.Handles {
		if h.NodeID == nodeID && h.Type == canvas.HandleTypeOutput {
			out = append(out, h)
		}
	}
	return out
}

// GetAllInputValuesWithHandle walks every incoming edge of targetNodeID in
// handle order, pairing each target handle with its resolved source value.
// Used by processors with variable-arity inputs (e.g. compositor).
func GetAllInputValuesWithHandle(snap *canvas.Snapshot, targetNodeID string) ([]HandleValue, error) {
	edges := matchingInEdges(snap, targetNodeID, InputFilter{})
	values := make([]HandleValue, 0, len(edges))
	for _, e := range edges {
		handle := snap.HandleByID(e.TargetHandleID)
		item, err := resolveEdgeValue(snap, e)
		if err != nil {
			return nil, err
		}
		values = append(values, HandleValue{Handle: *handle, Value: item})
	}
	return values, nil
}

// LoadMediaBuffer resolves a FileData to concrete bytes via storage. Fails if
// neither a persisted entity nor a transient tempKey is present.
func LoadMediaBuffer(ctx context.Context, storage ObjectStorage, data canvas.FileData) ([]byte, error) {
	if data.Entity != nil {
		return storage.Get(ctx, data.Entity.Key)
	}
	if data.ProcessData != nil && data.ProcessData.TempKey != "" {
		return storage.Get(ctx, data.ProcessData.TempKey)
	}
	return nil, errors.InvalidInput("fileData", "neither a persisted entity nor a transient tempKey is present")
}

// GetFileDataMimeType prefers the persisted entity's MimeType, then the
// transient ProcessData's MimeType, then falls back to a metadata lookup on
// the transient key. Returns "" if nothing resolves the type.
func GetFileDataMimeType(ctx context.Context, storage ObjectStorage, data canvas.FileData) (string, error) {
	if data.Entity != nil && data.Entity.MimeType != "" {
		return data.Entity.MimeType, nil
	}
	if data.ProcessData != nil {
		if data.ProcessData.MimeType != "" {
			return data.ProcessData.MimeType, nil
		}
		if data.ProcessData.TempKey != "" {
			return storage.StatMimeType(ctx, data.ProcessData.TempKey)
		}
	}
	return "", nil
}
