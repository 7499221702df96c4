package processor

import (
	"sync"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// Registry is a static map from node type to its Processor, re-keyed from
// the teacher's tools.Registry (tool name -> Tool) to canvas.NodeType ->
// Processor. New node types register at process start; per spec.md §4.3 the
// scheduler never discovers processors at runtime past that point.
type Registry struct {
	mu         sync.RWMutex
	processors map[canvas.NodeType]Processor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		processors: make(map[canvas.NodeType]Processor),
	}
}

// Register binds a Processor to a node type. Registering the same type twice
// is an error: the registry is meant to be populated once at startup.
func (r *Registry) Register(nodeType canvas.NodeType, p Processor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if nodeType == "" {
		return errors.InvalidInput("nodeType", "node type cannot be empty")
	}
	if _, exists := r.processors[nodeType]; exists {
		return errors.AlreadyExists("processor", string(nodeType))
	}

	r.processors[nodeType] = p
	return nil
}

// Get retrieves the Processor registered for nodeType. Returns a
// NO_PROCESSOR_FOR_TYPE DomainError (spec.md §7) if none is registered.
func (r *Registry) Get(nodeType canvas.NodeType) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.processors[nodeType]
	if !exists {
		return nil, errors.NewDomainError(
			"NO_PROCESSOR_FOR_TYPE",
			"no processor registered for node type",
			errors.ErrNotFound,
		).WithDetails("nodeType", string(nodeType))
	}
	return p, nil
}
