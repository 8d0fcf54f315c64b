package container

import (
	"fmt"

	"github.com/flowgrid/flowgrid/cmd/ai-service/engine"
	"github.com/flowgrid/flowgrid/cmd/ai-service/expr"
	"github.com/flowgrid/flowgrid/cmd/ai-service/nodes"
	"github.com/flowgrid/flowgrid/cmd/ai-service/resolver"
	"github.com/flowgrid/flowgrid/cmd/ai-service/service"
	"github.com/flowgrid/flowgrid/common/bootstrap"
	"github.com/flowgrid/flowgrid/common/clients"
	rediscommon "github.com/flowgrid/flowgrid/common/redis"
)

// Container holds all initialized services (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	Model    clients.ModelClient
	Redis    *rediscommon.Client
	Resolver *resolver.Resolver
	Engine   *engine.Engine
	Manager  *service.ExecutionManager
}

// NewContainer initializes all services once, bottom-up
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	model, err := clients.NewOllamaClient(clients.OllamaOpts{
		BaseURL:        cfg.Ollama.BaseURL,
		Timeout:        cfg.Ollama.Timeout,
		MaxConnections: cfg.Ollama.MaxConnections,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	var redisClient *rediscommon.Client
	if cfg.Redis.URL != "" {
		redisClient, err = rediscommon.NewClient(cfg.Redis.URL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		components.AddCleanup(redisClient.Close)
	}

	var bff *clients.BFFClient
	if cfg.BFF.CallbackEnabled {
		bff = clients.NewBFFClient(cfg.BFF.BaseURL, log)
	}

	res := resolver.New()
	evaluator := expr.NewEvaluator()
	registry := nodes.Registry(model, res, evaluator)
	runner := engine.NewRunner(res, log)
	eng := engine.New(registry, runner, log)

	manager := service.NewExecutionManager(service.ExecutionManagerOpts{
		Engine: eng,
		Logger: log,
		Redis:  redisClient,
		BFF:    bff,
	})

	return &Container{
		Components: components,
		Model:      model,
		Redis:      redisClient,
		Resolver:   res,
		Engine:     eng,
		Manager:    manager,
	}, nil
}
