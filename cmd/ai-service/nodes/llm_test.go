package nodes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/common/clients"
)

// mockModel records the last request and returns a canned response
type mockModel struct {
	mu      sync.Mutex
	lastReq clients.GenerateRequest
	output  string
	err     error
}

func (m *mockModel) Generate(ctx context.Context, req clients.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	return m.output, nil
}

func (m *mockModel) last() clients.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

func TestLLMExecutePassesParameters(t *testing.T) {
	model := &mockModel{output: "a summary"}
	n := NewLLMNode("llm", model)
	ec := newTestContext(nil)

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"model":       "llama2",
		"prompt":      "Summarize: the document",
		"temperature": 0.3,
		"max_tokens":  float64(256),
		"top_p":       0.9,
		"top_k":       float64(40),
		"stream":      true,
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, "a summary", output)

	req := model.last()
	assert.Equal(t, "llama2", req.Model)
	assert.Equal(t, "Summarize: the document", req.Prompt)
	assert.True(t, req.Stream)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.3, *req.Temperature)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 256, *req.MaxTokens)
	require.NotNil(t, req.TopP)
	assert.Equal(t, 0.9, *req.TopP)
	require.NotNil(t, req.TopK)
	assert.Equal(t, 40, *req.TopK)
}

func TestLLMExecuteWrapsClientError(t *testing.T) {
	model := &mockModel{err: errors.New("backend down")}
	n := NewLLMNode("llm", model)
	ec := newTestContext(nil)

	_, err := n.Execute(context.Background(), map[string]interface{}{
		"model":  "llama2",
		"prompt": "hi",
	}, ec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model generation failed")
}

func TestLLMValidate(t *testing.T) {
	n := NewLLMNode("llm", &mockModel{})

	assert.Error(t, n.Validate(map[string]interface{}{"prompt": "hi"}))
	assert.Error(t, n.Validate(map[string]interface{}{"model": "llama2"}))
	assert.Error(t, n.Validate(map[string]interface{}{
		"model": "llama2", "prompt": "hi", "temperature": 2.5,
	}))
	assert.Error(t, n.Validate(map[string]interface{}{
		"model": "llama2", "prompt": "hi", "temperature": "warm",
	}))
	assert.Error(t, n.Validate(map[string]interface{}{
		"model": "llama2", "prompt": "hi", "max_tokens": float64(0),
	}))
	assert.Error(t, n.Validate(map[string]interface{}{
		"model": "llama2", "prompt": "hi", "max_tokens": 1.5,
	}))
	assert.Error(t, n.Validate(map[string]interface{}{
		"model": "llama2", "prompt": "hi", "stream": "yes",
	}))
	assert.NoError(t, n.Validate(map[string]interface{}{
		"model":       "llama2",
		"prompt":      "hi",
		"temperature": 0.7,
		"max_tokens":  float64(100),
		"stream":      false,
	}))
}
