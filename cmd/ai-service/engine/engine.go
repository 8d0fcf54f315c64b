package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowgrid/flowgrid/common/logger"
)

// ErrStopped is returned when a run terminates because of a stop request
// or context cancellation. It is a terminal status, not a failure.
var ErrStopped = errors.New("execution stopped")

// Engine schedules a workflow DAG in parallel waves: all ready nodes are
// dispatched concurrently, the wave is awaited as a barrier, and successors
// whose in-degree reaches zero form the next wave. A single failed node
// aborts the run.
type Engine struct {
	registry map[string]ExecutorFactory
	runner   *Runner
	logger   *logger.Logger
}

// New creates an engine with the given executor registry
func New(registry map[string]ExecutorFactory, runner *Runner, log *logger.Logger) *Engine {
	return &Engine{
		registry: registry,
		runner:   runner,
		logger:   log,
	}
}

// RegisteredNodeTypes returns the node types the engine can dispatch
func (e *Engine) RegisteredNodeTypes() []string {
	types := make([]string, 0, len(e.registry))
	for t := range e.registry {
		types = append(types, t)
	}
	return types
}

// Execute runs the workflow to a terminal state, mirroring the outcome into
// the context. Returns the run's final output, or ErrStopped / the first
// failure.
func (e *Engine) Execute(ctx context.Context, def *Definition, ec *Context, ctrl *Controls) (interface{}, error) {
	ec.Start()

	output, err := e.run(ctx, def, ec, ctrl)
	if err != nil {
		if errors.Is(err, ErrStopped) {
			ec.MarkStopped()
			return nil, ErrStopped
		}
		ec.Fail(err.Error())
		return nil, err
	}

	ec.Complete(output)
	return output, nil
}

func (e *Engine) run(ctx context.Context, def *Definition, ec *Context, ctrl *Controls) (interface{}, error) {
	graph, inDegree, err := e.buildGraph(def)
	if err != nil {
		return nil, err
	}

	if err := e.validateGraph(graph); err != nil {
		return nil, err
	}

	e.logger.Info("execution graph built",
		"execution_id", ec.ExecutionID,
		"nodes", len(graph),
		"edges", len(def.Edges),
	)

	// Seed every node as pending before anything is dispatched
	for _, node := range def.Nodes {
		ec.SetNodeStatus(node.ID, NodePending)
	}

	// Initial wave: all zero in-degree nodes, in declaration order
	var ready []string
	for _, node := range def.Nodes {
		if inDegree[node.ID] == 0 {
			ready = append(ready, node.ID)
		}
	}

	if len(ready) == 0 && len(def.Nodes) > 0 {
		return nil, fmt.Errorf("no start nodes found in workflow")
	}

	executed := make(map[string]bool, len(def.Nodes))

	for len(ready) > 0 {
		if err := e.waitIfPaused(ctx, ctrl); err != nil {
			return nil, err
		}

		wave := ready
		ready = nil

		results, err := e.dispatchWave(ctx, def, wave, ec)
		if err != nil {
			return nil, err
		}

		if (ctrl != nil && ctrl.Stopped()) || ctx.Err() != nil {
			return nil, ErrStopped
		}

		for i, result := range results {
			nodeID := wave[i]
			if result.Status == NodeFailed {
				return nil, fmt.Errorf("node %s failed: %s", nodeID, result.Error)
			}

			executed[nodeID] = true

			for _, target := range graph[nodeID] {
				inDegree[target]--
				if inDegree[target] == 0 {
					ready = append(ready, target)
				}
			}
		}
	}

	if len(executed) != len(def.Nodes) {
		var unexecuted []string
		for _, node := range def.Nodes {
			if !executed[node.ID] {
				unexecuted = append(unexecuted, node.ID)
			}
		}
		return nil, fmt.Errorf("not all nodes were executed: %v", unexecuted)
	}

	return e.terminalOutput(def, ec), nil
}

// dispatchWave runs every wave member concurrently and waits for the whole
// wave to finish. Results are returned in wave order so failure selection
// is deterministic.
func (e *Engine) dispatchWave(ctx context.Context, def *Definition, wave []string, ec *Context) ([]*NodeResult, error) {
	// Resolve executors up front: an unknown node type fails the run
	// before anything in the wave starts.
	executors := make([]Executor, len(wave))
	configs := make([]map[string]interface{}, len(wave))

	for i, nodeID := range wave {
		node := def.NodeByID(nodeID)
		if node == nil {
			return nil, fmt.Errorf("node not found: %s", nodeID)
		}

		factory, ok := e.registry[node.Type]
		if !ok {
			return nil, fmt.Errorf("no executor registered for node type: %s", node.Type)
		}

		executors[i] = factory(node.ID)
		configs[i] = node.Data.Config
	}

	results := make([]*NodeResult, len(wave))
	var wg sync.WaitGroup

	for i := range wave {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.runner.Run(ctx, executors[i], configs[i], ec)
		}(i)
	}

	wg.Wait()
	return results, nil
}

// buildGraph constructs the adjacency list and per-node in-degree.
// Duplicate edges are tolerated and counted per occurrence.
func (e *Engine) buildGraph(def *Definition) (map[string][]string, map[string]int, error) {
	graph := make(map[string][]string, len(def.Nodes))
	inDegree := make(map[string]int, len(def.Nodes))

	for _, node := range def.Nodes {
		graph[node.ID] = nil
		inDegree[node.ID] = 0
	}

	for _, edge := range def.Edges {
		if _, ok := graph[edge.Source]; !ok {
			return nil, nil, fmt.Errorf("edge references unknown node: %s", edge.Source)
		}
		if _, ok := graph[edge.Target]; !ok {
			return nil, nil, fmt.Errorf("edge references unknown node: %s", edge.Target)
		}

		graph[edge.Source] = append(graph[edge.Source], edge.Target)
		inDegree[edge.Target]++
	}

	return graph, inDegree, nil
}

// validateGraph rejects cyclic definitions before any node is dispatched
func (e *Engine) validateGraph(graph map[string][]string) error {
	if hasCycle(graph) {
		return fmt.Errorf("workflow contains circular dependencies")
	}
	return nil
}

// hasCycle runs a DFS looking for a back edge within the recursion stack
func hasCycle(graph map[string][]string) bool {
	visited := make(map[string]bool, len(graph))
	recStack := make(map[string]bool, len(graph))

	var dfs func(node string) bool
	dfs = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, neighbor := range graph[node] {
			if !visited[neighbor] {
				if dfs(neighbor) {
					return true
				}
			} else if recStack[neighbor] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for node := range graph {
		if !visited[node] {
			if dfs(node) {
				return true
			}
		}
	}

	return false
}

// waitIfPaused blocks between waves while the run is paused. Stop requests
// and context cancellation win over pause.
func (e *Engine) waitIfPaused(ctx context.Context, ctrl *Controls) error {
	if ctrl == nil {
		if ctx.Err() != nil {
			return ErrStopped
		}
		return nil
	}

	for ctrl.Paused() {
		if ctrl.Stopped() {
			return ErrStopped
		}
		select {
		case <-ctx.Done():
			return ErrStopped
		case <-time.After(50 * time.Millisecond):
		}
	}

	if ctrl.Stopped() || ctx.Err() != nil {
		return ErrStopped
	}
	return nil
}

// terminalOutput selects the run's final result: the first output-type
// node's output when the definition has one, otherwise every node's output
// keyed by id.
func (e *Engine) terminalOutput(def *Definition, ec *Context) interface{} {
	for _, node := range def.Nodes {
		if node.Type == NodeTypeOutput {
			return ec.NodeOutput(node.ID)
		}
	}
	return ec.NodeOutputs()
}
