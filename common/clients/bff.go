package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/flowgrid/flowgrid/common/events"
)

// BFFClient posts execution events to the BFF service. Callbacks are
// best-effort: failures are logged, never propagated to the execution.
type BFFClient struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// NewBFFClient creates a new BFF callback client
func NewBFFClient(baseURL string, logger Logger) *BFFClient {
	return &BFFClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// PostEvent delivers a single execution event to the BFF
func (c *BFFClient) PostEvent(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	url := fmt.Sprintf("%s/api/internal/executions/%s/events", c.baseURL, event.ExecutionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback rejected: status %d", resp.StatusCode)
	}

	c.logger.Debug("bff callback delivered",
		"execution_id", event.ExecutionID,
		"type", event.Type,
	)
	return nil
}
