package processors_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
	"github.com/duragraph/duragraph/internal/infrastructure/processors"
)

type fakeLLMClient struct {
	lastReq llm.CompletionRequest
	reply   string
}

func (c *fakeLLMClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.lastReq = req
	return &llm.CompletionResponse{Content: c.reply}, nil
}

func (c *fakeLLMClient) CompleteStream(ctx context.Context, req llm.CompletionRequest, cb llm.StreamCallback) (*llm.CompletionResponse, error) {
	return c.Complete(ctx, req)
}

func (c *fakeLLMClient) Name() string { return "fake" }

func TestLLMProcessor_ResolvesPromptAndCompletes(t *testing.T) {
	promptNode := canvas.Node{ID: "prompt", Type: canvas.NodeTypeText}
	llmNode := canvas.Node{ID: "llm", Type: canvas.NodeTypeLLM, Config: map[string]interface{}{"model": "claude-3-5-sonnet-20241022"}}

	snap := &canvas.Snapshot{
		Nodes: []canvas.Node{promptNode, llmNode},
		Handles: []canvas.Handle{
			{ID: "prompt-out", NodeID: "prompt", Type: canvas.HandleTypeOutput, DataTypes: []canvas.DataType{canvas.DataTypeText}},
			{ID: "llm-in", NodeID: "llm", Type: canvas.HandleTypeInput, DataTypes: []canvas.DataType{canvas.DataTypeText}, Required: true},
			{ID: "llm-out", NodeID: "llm", Type: canvas.HandleTypeOutput, DataTypes: []canvas.DataType{canvas.DataTypeText}},
		},
		Edges: []canvas.Edge{
			{ID: "e1", Source: "prompt", SourceHandleID: "prompt-out", Target: "llm", TargetHandleID: "llm-in"},
		},
	}
	promptHandleID := "prompt-out"
	snap.Nodes[0].Result = &canvas.NodeResult{Outputs: []canvas.Output{{
		Items: []canvas.OutputItem{{Type: canvas.DataTypeText, Data: "summarize this", OutputHandleID: &promptHandleID}},
	}}}

	fake := &fakeLLMClient{reply: "a summary"}
	proc := processors.NewLLMProcessor(func(apiKey, model string) llm.Client { return fake }, nil)

	result, err := proc.Process(context.Background(), processor.Request{Node: llmNode, Snapshot: snap, APIKey: "key"})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "summarize this", fake.lastReq.Messages[0].Content)
	assert.Equal(t, "a summary", result.NewResult.Outputs[0].Items[0].Data)
}

func TestLLMProcessor_MissingPromptFails(t *testing.T) {
	llmNode := canvas.Node{ID: "llm", Type: canvas.NodeTypeLLM}
	snap := &canvas.Snapshot{
		Nodes:   []canvas.Node{llmNode},
		Handles: []canvas.Handle{{ID: "llm-in", NodeID: "llm", Type: canvas.HandleTypeInput, DataTypes: []canvas.DataType{canvas.DataTypeText}, Required: true}},
	}

	fake := &fakeLLMClient{}
	proc := processors.NewLLMProcessor(func(apiKey, model string) llm.Client { return fake }, nil)

	result, err := proc.Process(context.Background(), processor.Request{Node: llmNode, Snapshot: snap})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "MISSING_REQUIRED_INPUT")
}
