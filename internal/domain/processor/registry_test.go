package processor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

func noop(ctx context.Context, req processor.Request) (processor.Result, error) {
	return processor.Result{Success: true}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := processor.NewRegistry()
	require.NoError(t, r.Register(canvas.NodeTypeText, processor.ProcessorFunc(noop)))

	p, err := r.Get(canvas.NodeTypeText)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestRegistry_DuplicateRegister_Fails(t *testing.T) {
	r := processor.NewRegistry()
	require.NoError(t, r.Register(canvas.NodeTypeText, processor.ProcessorFunc(noop)))

	err := r.Register(canvas.NodeTypeText, processor.ProcessorFunc(noop))
	require.Error(t, err)
}

func TestRegistry_GetUnregistered_ReturnsNoProcessorForType(t *testing.T) {
	r := processor.NewRegistry()
	_, err := r.Get(canvas.NodeTypeLLM)
	require.Error(t, err)

	var derr *errors.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "NO_PROCESSOR_FOR_TYPE", derr.Code)
}
