package canvas

import (
	"fmt"

	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// ValidateSnapshot enforces the structural invariants of spec.md §3: handle
// existence/ownership, output/input directionality, dataType overlap across
// an edge, no self-edges, no duplicate IDs, and overall acyclicity.
//
// Generalized from the teacher's validateGraph (node/edge existence only) to
// this package's typed-handle model.
func ValidateSnapshot(s *Snapshot) error {
	nodeIDs := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			return errors.InvalidInput("node.id", "node ID is required")
		}
		if nodeIDs[n.ID] {
			return errors.InvalidInput("node.id", fmt.Sprintf("duplicate node ID: %s", n.ID))
		}
		nodeIDs[n.ID] = true
	}

	handlesByID := make(map[string]Handle, len(s.Handles))
	for _, h := range s.Handles {
		if h.ID == "" {
			return errors.InvalidInput("handle.id", "handle ID is required")
		}
		if _, dup := handlesByID[h.ID]; dup {
			return errors.InvalidInput("handle.id", fmt.Sprintf("duplicate handle ID: %s", h.ID))
		}
		if !nodeIDs[h.NodeID] {
			return errors.InvalidInput("handle.nodeId", fmt.Sprintf("handle %s references unknown node %s", h.ID, h.NodeID))
		}
		handlesByID[h.ID] = h
	}

	edgeIDs := make(map[string]bool, len(s.Edges))
	for _, e := range s.Edges {
		if e.ID == "" {
			return errors.InvalidInput("edge.id", "edge ID is required")
		}
		if edgeIDs[e.ID] {
			return errors.InvalidInput("edge.id", fmt.Sprintf("duplicate edge ID: %s", e.ID))
		}
		edgeIDs[e.ID] = true

		if e.Source == e.Target {
			return errors.InvalidInput("edge", fmt.Sprintf("self-edges are forbidden: node %s", e.Source))
		}
		if !nodeIDs[e.Source] {
			return errors.InvalidInput("edge.source", fmt.Sprintf("source node not found: %s", e.Source))
		}
		if !nodeIDs[e.Target] {
			return errors.InvalidInput("edge.target", fmt.Sprintf("target node not found: %s", e.Target))
		}

		sourceHandle, ok := handlesByID[e.SourceHandleID]
		if !ok {
			return errors.InvalidInput("edge.sourceHandleId", fmt.Sprintf("source handle not found: %s", e.SourceHandleID))
		}
		if sourceHandle.NodeID != e.Source {
			return errors.InvalidInput("edge.sourceHandleId", fmt.Sprintf("source handle %s does not belong to node %s", e.SourceHandleID, e.Source))
		}
		if sourceHandle.Type != HandleTypeOutput {
			return errors.InvalidInput("edge.sourceHandleId", fmt.Sprintf("source handle %s is not an Output handle", e.SourceHandleID))
		}

		targetHandle, ok := handlesByID[e.TargetHandleID]
		if !ok {
			return errors.InvalidInput("edge.targetHandleId", fmt.Sprintf("target handle not found: %s", e.TargetHandleID))
		}
		if targetHandle.NodeID != e.Target {
			return errors.InvalidInput("edge.targetHandleId", fmt.Sprintf("target handle %s does not belong to node %s", e.TargetHandleID, e.Target))
		}
		if targetHandle.Type != HandleTypeInput {
			return errors.InvalidInput("edge.targetHandleId", fmt.Sprintf("target handle %s is not an Input handle", e.TargetHandleID))
		}

		if !dataTypesOverlap(sourceHandle.DataTypes, targetHandle.DataTypes) {
			return errors.InvalidInput("edge", fmt.Sprintf("edge %s: handle dataTypes do not overlap", e.ID))
		}
	}

	if cycleNode, found := findCycle(s.Nodes, s.Edges); found {
		return errors.NewDomainError("GRAPH_CYCLE", fmt.Sprintf("cycle detected involving node %s", cycleNode), errors.ErrGraphCycle)
	}

	return nil
}

func dataTypesOverlap(a, b []DataType) bool {
	set := make(map[DataType]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return true
		}
	}
	return false
}

// findCycle runs a DFS over forward adjacency and returns the first node
// found to be part of a cycle.
func findCycle(nodes []Node, edges []Edge) (string, bool) {
	adj := make(map[string][]string, len(nodes))
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))

	var stack []string
	var cycleAt string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				cycleAt = next
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, n := range nodes {
		if color[n.ID] == white {
			if visit(n.ID) {
				return cycleAt, true
			}
		}
	}
	return "", false
}
