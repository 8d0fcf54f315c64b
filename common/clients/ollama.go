package clients

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Logger interface for client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// GenerateRequest carries one model invocation.
// Pointer fields are omitted from the request when nil.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Stream      bool
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	TopK        *int
}

// ModelClient is the narrow contract the llm node consumes
type ModelClient interface {
	// Generate returns the final aggregated completion. When the request
	// asks for streaming, chunks are concatenated internally; callers
	// always receive the full text.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Sentinel errors surfaced by the Ollama client
var (
	ErrModelNotFound = errors.New("model not found")
	ErrConnection    = errors.New("cannot connect to ollama")
)

// OllamaClient calls a local Ollama server through langchaingo
type OllamaClient struct {
	llm         *ollama.LLM
	baseURL     string
	timeout     time.Duration
	maxAttempts int
	logger      Logger
}

// OllamaOpts contains options for creating an Ollama client
type OllamaOpts struct {
	BaseURL        string
	Timeout        time.Duration
	MaxConnections int
	Logger         Logger
}

// NewOllamaClient creates a new Ollama model client
func NewOllamaClient(opts OllamaOpts) (*OllamaClient, error) {
	httpClient := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: opts.MaxConnections,
			MaxConnsPerHost:     opts.MaxConnections * 2,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	llm, err := ollama.New(
		ollama.WithServerURL(opts.BaseURL),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	opts.Logger.Info("ollama client initialized",
		"base_url", opts.BaseURL,
		"timeout", opts.Timeout,
		"max_connections", opts.MaxConnections,
	)

	return &OllamaClient{
		llm:         llm,
		baseURL:     opts.BaseURL,
		timeout:     opts.Timeout,
		maxAttempts: 3,
		logger:      opts.Logger,
	}, nil
}

// Generate calls the Ollama generate API. Connection and timeout failures
// are retried with exponential backoff; other errors return immediately.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.Model == "" {
		return "", fmt.Errorf("model is required")
	}

	var lastErr error
	backoff := time.Second

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		output, err := c.generateOnce(ctx, req)
		if err == nil {
			return output, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			break
		}

		c.logger.Warn("ollama generate failed, retrying",
			"attempt", attempt,
			"model", req.Model,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return "", lastErr
}

func (c *OllamaClient) generateOnce(ctx context.Context, req GenerateRequest) (string, error) {
	opts := []llms.CallOption{
		llms.WithModel(req.Model),
	}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*req.MaxTokens))
	}
	if req.TopP != nil {
		opts = append(opts, llms.WithTopP(*req.TopP))
	}
	if req.TopK != nil {
		opts = append(opts, llms.WithTopK(*req.TopK))
	}

	var chunks strings.Builder
	if req.Stream {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			chunks.Write(chunk)
			return nil
		}))
	}

	output, err := llms.GenerateFromSinglePrompt(ctx, c.llm, req.Prompt, opts...)
	if err != nil {
		return "", c.wrapError(req.Model, err)
	}

	// Streaming responses are aggregated chunk by chunk; prefer the
	// aggregate when the backend returns an empty final message.
	if req.Stream && output == "" {
		return chunks.String(), nil
	}
	return output, nil
}

// wrapError maps transport failures onto the client's error taxonomy
func (c *OllamaClient) wrapError(model string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("ollama request timeout after %s: %w", c.timeout, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return fmt.Errorf("%w at %s: %v", ErrConnection, c.baseURL, err)
	case strings.Contains(msg, "404"), strings.Contains(strings.ToLower(msg), "not found"):
		return fmt.Errorf("%w: %q", ErrModelNotFound, model)
	default:
		return fmt.Errorf("ollama service error: %w", err)
	}
}

func retryable(err error) bool {
	if errors.Is(err, ErrModelNotFound) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, ErrConnection)
}
