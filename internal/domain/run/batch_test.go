package run_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/run"
)

func TestNewBatch_EmitsBatchCreated(t *testing.T) {
	b, err := run.NewBatch("canvas-1", "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID())
	assert.False(t, b.IsFinished())

	events := b.Events()
	require.Len(t, events, 1)
	assert.Equal(t, run.EventTypeBatchCreated, events[0].EventType())
}

func TestNewBatch_RejectsMissingFields(t *testing.T) {
	_, err := run.NewBatch("", "user-1")
	require.Error(t, err)

	_, err = run.NewBatch("canvas-1", "")
	require.Error(t, err)
}

func TestBatch_Finish(t *testing.T) {
	b, err := run.NewBatch("canvas-1", "user-1")
	require.NoError(t, err)
	b.ClearEvents()

	require.NoError(t, b.Finish())
	assert.True(t, b.IsFinished())
	require.NotNil(t, b.FinishedAt())

	events := b.Events()
	require.Len(t, events, 1)
	assert.Equal(t, run.EventTypeBatchFinished, events[0].EventType())

	// A batch never fails; it also never finishes twice.
	assert.Error(t, b.Finish())
}

func TestReconstructBatch_RoundTrips(t *testing.T) {
	b, err := run.NewBatch("canvas-1", "user-1")
	require.NoError(t, err)
	require.NoError(t, b.Finish())

	rebuilt, err := run.ReconstructBatch(b.Events())
	require.NoError(t, err)

	assert.Equal(t, b.ID(), rebuilt.ID())
	assert.Equal(t, b.CanvasID(), rebuilt.CanvasID())
	assert.True(t, rebuilt.IsFinished())
}
