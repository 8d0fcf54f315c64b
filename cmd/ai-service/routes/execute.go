package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flowgrid/flowgrid/cmd/ai-service/container"
	"github.com/flowgrid/flowgrid/cmd/ai-service/handlers"
)

// RegisterExecutionRoutes registers workflow execution routes
func RegisterExecutionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewExecutionHandler(c.Manager)

	execute := e.Group("/api/v1/execute")
	{
		execute.POST("", h.Execute)               // POST /api/v1/execute
		execute.GET("/:id/status", h.GetStatus)   // GET /api/v1/execute/{execution_id}/status
		execute.GET("/:id/logs", h.GetLogs)       // GET /api/v1/execute/{execution_id}/logs
		execute.GET("/:id/summary", h.GetSummary) // GET /api/v1/execute/{execution_id}/summary
		execute.POST("/:id/stop", h.Stop)         // POST /api/v1/execute/{execution_id}/stop
		execute.POST("/:id/pause", h.Pause)       // POST /api/v1/execute/{execution_id}/pause
		execute.POST("/:id/resume", h.Resume)     // POST /api/v1/execute/{execution_id}/resume
	}

	e.GET("/api/v1/node-types", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]interface{}{
			"node_types": c.Engine.RegisteredNodeTypes(),
		})
	})
}
