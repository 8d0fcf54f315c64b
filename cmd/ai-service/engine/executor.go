package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgrid/flowgrid/cmd/ai-service/resolver"
	"github.com/flowgrid/flowgrid/common/logger"
	"github.com/flowgrid/flowgrid/common/metrics"
)

// Executor is the capability every node type satisfies. Validate inspects
// the raw config; Execute receives the config with variables already
// resolved. Executors never touch node statuses or write outputs directly:
// the Runner owns that part of the lifecycle.
type Executor interface {
	NodeID() string
	NodeType() string
	Validate(config map[string]interface{}) error
	Execute(ctx context.Context, config map[string]interface{}, ec *Context) (interface{}, error)
}

// ExecutorFactory builds an executor bound to a node id
type ExecutorFactory func(nodeID string) Executor

// NodeResult is the value every node run produces
type NodeResult struct {
	NodeID        string      `json:"node_id"`
	Status        NodeStatus  `json:"status"`
	Output        interface{} `json:"output,omitempty"`
	Error         string      `json:"error,omitempty"`
	ExecutionTime float64     `json:"execution_time"`
}

// Runner is the engine-owned lifecycle template around every node run:
// mark running, validate, resolve variables, execute with timing, record
// status and output. It is the only entry the engine calls.
type Runner struct {
	resolver *resolver.Resolver
	logger   *logger.Logger
}

// NewRunner creates a node runner
func NewRunner(res *resolver.Resolver, log *logger.Logger) *Runner {
	return &Runner{
		resolver: res,
		logger:   log,
	}
}

// Run executes one node through the lifecycle template
func (r *Runner) Run(ctx context.Context, exec Executor, config map[string]interface{}, ec *Context) *NodeResult {
	nodeID := exec.NodeID()
	nodeType := exec.NodeType()
	start := time.Now()

	ec.SetNodeStatus(nodeID, NodeRunning)
	ec.AddLog("info", fmt.Sprintf("node %s (%s) started", nodeID, nodeType), nodeID, nil)

	if err := exec.Validate(config); err != nil {
		return r.fail(ec, nodeID, nodeType, start,
			fmt.Sprintf("configuration validation failed: %v", err))
	}

	resolved := r.resolver.ResolveConfig(ec.VariablesJSON(), config)

	output, err := exec.Execute(ctx, resolved, ec)
	elapsed := time.Since(start)

	if err != nil {
		return r.fail(ec, nodeID, nodeType, start,
			fmt.Sprintf("execution failed: %v", err))
	}

	ec.SetNodeOutput(nodeID, output)
	ec.SetNodeStatus(nodeID, NodeSuccess)
	ec.AddLog("info",
		fmt.Sprintf("node %s completed successfully in %.2fs", nodeID, elapsed.Seconds()),
		nodeID,
		map[string]interface{}{"execution_time": elapsed.Seconds()},
	)
	metrics.NodeDuration.WithLabelValues(nodeType, string(NodeSuccess)).Observe(elapsed.Seconds())

	return &NodeResult{
		NodeID:        nodeID,
		Status:        NodeSuccess,
		Output:        output,
		ExecutionTime: elapsed.Seconds(),
	}
}

func (r *Runner) fail(ec *Context, nodeID, nodeType string, start time.Time, msg string) *NodeResult {
	elapsed := time.Since(start)

	ec.SetNodeStatus(nodeID, NodeFailed)
	ec.AddLog("error", msg, nodeID, nil)
	metrics.NodeDuration.WithLabelValues(nodeType, string(NodeFailed)).Observe(elapsed.Seconds())

	return &NodeResult{
		NodeID:        nodeID,
		Status:        NodeFailed,
		Error:         msg,
		ExecutionTime: elapsed.Seconds(),
	}
}
