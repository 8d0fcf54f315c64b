package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowgrid/flowgrid/cmd/ai-service/container"
	"github.com/flowgrid/flowgrid/cmd/ai-service/routes"
	"github.com/flowgrid/flowgrid/common/bootstrap"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "ai-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap ai-service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, serviceContainer)
	registerRoutes(e, serviceContainer)

	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the banner, health and metrics endpoints
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/", func(ec echo.Context) error {
		return ec.JSON(200, map[string]string{
			"service": c.Components.Config.App.Name,
			"version": c.Components.Config.App.Version,
		})
	})

	e.GET("/health", func(ec echo.Context) error {
		resp := map[string]interface{}{
			"status":            "ok",
			"service":           "ai-service",
			"active_executions": c.Manager.ActiveCount(),
		}
		if c.Redis != nil {
			if err := c.Redis.Health(ec.Request().Context()); err != nil {
				resp["redis"] = "unhealthy"
			} else {
				resp["redis"] = "ok"
			}
		}
		return ec.JSON(200, resp)
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterExecutionRoutes(e, serviceContainer)
}

// startServer starts the Echo server on the configured address
func startServer(e *echo.Echo, components *bootstrap.Components) {
	addr := components.Config.Addr()
	components.Logger.Info("Starting ai-service", "addr", addr)

	if err := e.Start(addr); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
