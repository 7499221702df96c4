package processors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/domain/resolver"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
	"github.com/duragraph/duragraph/internal/infrastructure/monitoring"
)

// ClientFactory builds an llm.Client for a processor call. Takes the
// requested model so the provider can be chosen per node, and the API key
// carried on the snapshot (per-batch, per-user) rather than fixed at
// registry-build time.
type ClientFactory func(apiKey, model string) llm.Client

// NewLLMProcessor builds the processor for canvas.NodeTypeLLM: it resolves a
// required Text prompt input, runs it through the configured provider, and
// republishes the completion as its Text output. Grounded on the teacher's
// AnthropicClient/OpenAIClient Complete signature, driven here by a single
// resolver-supplied prompt instead of the teacher's full chat history array.
// NewLLMProcessor accepts metrics as nil.
func NewLLMProcessor(newClient ClientFactory, metrics *monitoring.Metrics) processor.Processor {
	return processor.ProcessorFunc(func(ctx context.Context, req processor.Request) (processor.Result, error) {
		textType := canvas.DataTypeText
		prompt, err := resolver.GetInputValue(req.Snapshot, req.Node.ID, true, resolver.InputFilter{DataType: &textType})
		if err != nil {
			return processor.Result{Success: false, Error: err.Error()}, nil
		}

		promptText, _ := prompt.Data.(string)
		model, _ := req.Node.Config["model"].(string)
		if model == "" {
			model = "claude-3-5-sonnet-20241022"
		}
		provider := llmProvider(model)

		client := newClient(req.APIKey, model)
		start := time.Now()
		resp, err := client.Complete(ctx, llm.CompletionRequest{
			Model:    model,
			Messages: []llm.Message{{Role: "user", Content: promptText}},
		})
		if err != nil {
			if metrics != nil {
				metrics.RecordLLMRequest(provider, model, "error", time.Since(start), 0, 0)
				metrics.RecordLLMError(provider, model, llmErrorCode(err))
			}
			return processor.Result{Success: false, Error: fmt.Sprintf("llm completion failed: %v", err)}, nil
		}
		if metrics != nil {
			metrics.RecordLLMRequest(provider, model, "ok", time.Since(start), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}

		outHandles := outputHandleIDs(req.Snapshot, req.Node.ID)
		var handleID *string
		if len(outHandles) > 0 {
			handleID = &outHandles[0]
		}

		return processor.Result{
			Success:   true,
			NewResult: singleOutput(canvas.DataTypeText, resp.Content, handleID),
		}, nil
	})
}

// llmProvider mirrors DefaultClientFactory's provider-by-model-name dispatch,
// used only to label metrics (it never picks the client itself).
func llmProvider(model string) string {
	if len(model) >= 6 && model[:6] == "claude" {
		return "anthropic"
	}
	return "openai"
}

func llmErrorCode(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[:idx]
	}
	return "unknown"
}

// DefaultClientFactory picks Anthropic for a "claude"-prefixed model and
// OpenAI otherwise, mirroring the teacher's provider-by-model-name dispatch.
func DefaultClientFactory(apiKey, model string) llm.Client {
	if len(model) >= 6 && model[:6] == "claude" {
		return llm.NewAnthropicClient(apiKey)
	}
	return llm.NewOpenAIClient(apiKey)
}
