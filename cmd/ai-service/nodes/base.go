package nodes

import (
	"fmt"

	"github.com/flowgrid/flowgrid/cmd/ai-service/engine"
	"github.com/flowgrid/flowgrid/cmd/ai-service/expr"
	"github.com/flowgrid/flowgrid/cmd/ai-service/resolver"
	"github.com/flowgrid/flowgrid/common/clients"
)

// baseNode carries the identity shared by every executor
type baseNode struct {
	nodeID   string
	nodeType string
}

func (b baseNode) NodeID() string   { return b.nodeID }
func (b baseNode) NodeType() string { return b.nodeType }

func (b baseNode) logInfo(ec *engine.Context, msg string) {
	ec.AddLog("info", msg, b.nodeID, nil)
}

func (b baseNode) logWarning(ec *engine.Context, msg string) {
	ec.AddLog("warning", msg, b.nodeID, nil)
}

// inputValue selects the executor's working input: the named source node's
// output when configured, otherwise the workflow input data.
func (b baseNode) inputValue(config map[string]interface{}, ec *engine.Context) interface{} {
	if source, ok := config["source_node"].(string); ok && source != "" {
		return ec.NodeOutput(source)
	}
	return ec.InputData()
}

// Registry builds the default executor registry consumed by the engine
func Registry(model clients.ModelClient, res *resolver.Resolver, eval *expr.Evaluator) map[string]engine.ExecutorFactory {
	return map[string]engine.ExecutorFactory{
		engine.NodeTypeInput: func(nodeID string) engine.Executor {
			return NewInputNode(nodeID)
		},
		engine.NodeTypeLLM: func(nodeID string) engine.Executor {
			return NewLLMNode(nodeID, model)
		},
		engine.NodeTypeCondition: func(nodeID string) engine.Executor {
			return NewConditionNode(nodeID, res)
		},
		engine.NodeTypeTransform: func(nodeID string) engine.Executor {
			return NewTransformNode(nodeID, eval)
		},
		engine.NodeTypeOutput: func(nodeID string) engine.Executor {
			return NewOutputNode(nodeID, res)
		},
	}
}

// asFloat converts JSON-ish numeric values to float64
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// stringSlice converts a config list into []string, rejecting non-strings
func stringSlice(v interface{}) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string", i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", v)
	}
}
