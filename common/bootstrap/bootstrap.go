package bootstrap

import (
	"context"
	"fmt"

	"github.com/flowgrid/flowgrid/common/config"
	"github.com/flowgrid/flowgrid/common/logger"
)

// Components holds all initialized service dependencies
type Components struct {
	Config *config.Config
	Logger *logger.Logger

	cleanupFuncs []func() error
}

// Setup loads configuration and initializes the logger.
// This is the entry point for the service binary; heavier dependencies
// (Redis, the model client) are wired by the container on top of this.
func Setup(ctx context.Context, serviceName string) (*Components, error) {
	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	var err error
	components.Config, err = config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	components.Logger = logger.New(
		components.Config.App.LogLevel,
		components.Config.App.Debug,
	)

	components.Logger.Info("initializing service",
		"service", serviceName,
		"app_name", components.Config.App.Name,
		"version", components.Config.App.Version,
	)

	return components, nil
}

// AddCleanup registers a cleanup function to run at shutdown
func (c *Components) AddCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown performs graceful shutdown of all components.
// Should be called with defer after Setup().
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error

	// Run cleanup functions in reverse order (LIFO)
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}
