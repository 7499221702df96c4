package resolver

import (
	"fmt"

	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// ResolverError is the stable, classifiable error shape the resolver raises.
// The scheduler inspects Kind (via errors.As) to decide how to fail the
// owning task; the message text is for the task's persisted error field.
type ResolverError struct {
	*errors.DomainError
	Kind string
}

const (
	KindMissingRequiredInput = "MISSING_REQUIRED_INPUT"
	KindEmptyRequiredInput   = "EMPTY_REQUIRED_INPUT"
	KindMissingSourceHandle  = "MISSING_SOURCE_HANDLE"
	KindMissingSourceNode    = "MISSING_SOURCE_NODE"
)

func newResolverError(kind, message string) *ResolverError {
	return &ResolverError{
		DomainError: errors.NewDomainError(kind, message, errors.ErrInvalidInput),
		Kind:        kind,
	}
}

// MissingRequiredInputErr reports that a required input has no matching edge.
func MissingRequiredInputErr(targetNodeID string, filter InputFilter) *ResolverError {
	return newResolverError(KindMissingRequiredInput,
		fmt.Sprintf("node %s: no edge satisfies required input filter %s", targetNodeID, filter))
}

// EmptyRequiredInputErr reports that a required input's edge resolved to no value.
func EmptyRequiredInputErr(targetNodeID, edgeID string) *ResolverError {
	return newResolverError(KindEmptyRequiredInput,
		fmt.Sprintf("node %s: edge %s resolved to an empty value", targetNodeID, edgeID))
}

// MissingSourceHandleErr reports that an edge references a handle absent from the snapshot.
func MissingSourceHandleErr(edgeID, handleID string) *ResolverError {
	return newResolverError(KindMissingSourceHandle,
		fmt.Sprintf("edge %s: source handle %s not found in snapshot", edgeID, handleID))
}

// MissingSourceNodeErr reports that an edge references a node absent from the snapshot.
func MissingSourceNodeErr(edgeID, nodeID string) *ResolverError {
	return newResolverError(KindMissingSourceNode,
		fmt.Sprintf("edge %s: source node %s not found in snapshot", edgeID, nodeID))
}
