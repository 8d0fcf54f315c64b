package nodes

import (
	"context"
	"fmt"

	"github.com/flowgrid/flowgrid/cmd/ai-service/engine"
	"github.com/flowgrid/flowgrid/common/clients"
)

// LLMNode sends a resolved prompt to the model backend and emits the
// completion text. Prompt templates are resolved against the variable
// space before execution, so upstream outputs can be spliced in with
// {{nodes.<id>}} references.
type LLMNode struct {
	baseNode
	client clients.ModelClient
}

// NewLLMNode creates an llm executor
func NewLLMNode(nodeID string, client clients.ModelClient) *LLMNode {
	return &LLMNode{
		baseNode: baseNode{nodeID: nodeID, nodeType: engine.NodeTypeLLM},
		client:   client,
	}
}

// Validate checks the model invocation config
func (n *LLMNode) Validate(config map[string]interface{}) error {
	model, _ := config["model"].(string)
	if model == "" {
		return fmt.Errorf("model is required")
	}

	prompt, _ := config["prompt"].(string)
	if prompt == "" {
		return fmt.Errorf("prompt is required")
	}

	if v, ok := config["temperature"]; ok {
		t, isNum := asFloat(v)
		if !isNum {
			return fmt.Errorf("temperature must be a number")
		}
		if t < 0 || t > 2 {
			return fmt.Errorf("temperature must be between 0 and 2, got %g", t)
		}
	}

	if v, ok := config["max_tokens"]; ok {
		m, isNum := asFloat(v)
		if !isNum || m != float64(int(m)) {
			return fmt.Errorf("max_tokens must be an integer")
		}
		if m <= 0 {
			return fmt.Errorf("max_tokens must be positive, got %d", int(m))
		}
	}

	if v, ok := config["top_p"]; ok {
		if _, isNum := asFloat(v); !isNum {
			return fmt.Errorf("top_p must be a number")
		}
	}
	if v, ok := config["top_k"]; ok {
		k, isNum := asFloat(v)
		if !isNum || k != float64(int(k)) {
			return fmt.Errorf("top_k must be an integer")
		}
	}
	if v, ok := config["stream"]; ok {
		if _, isBool := v.(bool); !isBool {
			return fmt.Errorf("stream must be a boolean")
		}
	}

	return nil
}

// Execute invokes the model with the resolved prompt
func (n *LLMNode) Execute(ctx context.Context, config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	model, _ := config["model"].(string)
	prompt, _ := config["prompt"].(string)
	stream, _ := config["stream"].(bool)

	req := clients.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: stream,
	}

	if v, ok := config["temperature"]; ok {
		if t, isNum := asFloat(v); isNum {
			req.Temperature = &t
		}
	}
	if v, ok := config["max_tokens"]; ok {
		if m, isNum := asFloat(v); isNum {
			tokens := int(m)
			req.MaxTokens = &tokens
		}
	}
	if v, ok := config["top_p"]; ok {
		if p, isNum := asFloat(v); isNum {
			req.TopP = &p
		}
	}
	if v, ok := config["top_k"]; ok {
		if k, isNum := asFloat(v); isNum {
			topK := int(k)
			req.TopK = &topK
		}
	}

	n.logInfo(ec, fmt.Sprintf("calling model %q (stream=%t)", model, stream))

	output, err := n.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model generation failed: %w", err)
	}

	n.logInfo(ec, fmt.Sprintf("model %q returned %d characters", model, len(output)))
	return output, nil
}
