package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/flowgrid/flowgrid/cmd/ai-service/engine"
	"github.com/flowgrid/flowgrid/cmd/ai-service/service"
)

// ExecutionHandler handles workflow execution requests
type ExecutionHandler struct {
	manager *service.ExecutionManager
}

// NewExecutionHandler creates a new execution handler
func NewExecutionHandler(manager *service.ExecutionManager) *ExecutionHandler {
	return &ExecutionHandler{
		manager: manager,
	}
}

// ExecuteRequest is the workflow submission payload
type ExecuteRequest struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Definition  engine.Definition      `json:"definition"`
	InputData   map[string]interface{} `json:"input_data"`
}

// Execute submits a workflow for asynchronous execution and returns the
// initial execution record
// POST /api/v1/execute
func (h *ExecutionHandler) Execute(c echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if len(req.Definition.Nodes) == 0 {
		return detail(c, http.StatusBadRequest, "workflow must contain at least one node")
	}

	executionID, err := h.manager.Submit(&req.Definition, req.ExecutionID, req.WorkflowID, req.InputData)
	if err != nil {
		return detail(c, http.StatusBadRequest, err.Error())
	}

	status, err := h.manager.GetStatus(executionID)
	if err != nil {
		return managerError(c, err)
	}
	return c.JSON(http.StatusAccepted, status)
}

// GetStatus returns the execution's current status
// GET /api/v1/execute/:id/status
func (h *ExecutionHandler) GetStatus(c echo.Context) error {
	status, err := h.manager.GetStatus(c.Param("id"))
	if err != nil {
		return managerError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// GetLogs returns the execution log, filterable by level and tail limit
// GET /api/v1/execute/:id/logs?level=error&limit=50
func (h *ExecutionHandler) GetLogs(c echo.Context) error {
	id := c.Param("id")
	level := c.QueryParam("level")

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return detail(c, http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = parsed
	}

	logs, err := h.manager.GetLogs(id, level, limit)
	if err != nil {
		return managerError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"execution_id": id,
		"logs":         logs,
		"count":        len(logs),
	})
}

// GetSummary returns node counts and timing for the execution
// GET /api/v1/execute/:id/summary
func (h *ExecutionHandler) GetSummary(c echo.Context) error {
	summary, err := h.manager.Summary(c.Param("id"))
	if err != nil {
		return managerError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// Stop terminates a running execution
// POST /api/v1/execute/:id/stop
func (h *ExecutionHandler) Stop(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.Stop(id); err != nil {
		return managerError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"execution_id": id,
		"status":       engine.StatusStopped,
	})
}

// Pause pauses a running execution at the next wave boundary
// POST /api/v1/execute/:id/pause
func (h *ExecutionHandler) Pause(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.Pause(id); err != nil {
		return managerError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"execution_id": id,
		"status":       engine.StatusPaused,
	})
}

// Resume releases a paused execution
// POST /api/v1/execute/:id/resume
func (h *ExecutionHandler) Resume(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.Resume(id); err != nil {
		return managerError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"execution_id": id,
		"status":       engine.StatusRunning,
	})
}

// managerError maps manager errors onto HTTP responses
func managerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrExecutionNotFound):
		return detail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		return detail(c, http.StatusBadRequest, err.Error())
	default:
		return detail(c, http.StatusInternalServerError, err.Error())
	}
}

func detail(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"detail": message})
}
