package nodes

import (
	"context"
	"fmt"

	"github.com/flowgrid/flowgrid/cmd/ai-service/engine"
	"github.com/flowgrid/flowgrid/cmd/ai-service/expr"
)

// TransformNode reshapes data flowing between nodes. Five transform types
// are supported: mapping builds an object from resolved templates, filter
// and extract narrow an object to chosen fields, merge combines upstream
// node outputs, and custom evaluates a CEL expression over the input.
type TransformNode struct {
	baseNode
	evaluator *expr.Evaluator
}

// NewTransformNode creates a transform executor
func NewTransformNode(nodeID string, eval *expr.Evaluator) *TransformNode {
	return &TransformNode{
		baseNode:  baseNode{nodeID: nodeID, nodeType: engine.NodeTypeTransform},
		evaluator: eval,
	}
}

// Validate checks the transform type and its per-type requirements.
// Custom expressions are compiled here so a broken expression fails the
// node before anything runs.
func (n *TransformNode) Validate(config map[string]interface{}) error {
	transformType, _ := config["transform_type"].(string)

	switch transformType {
	case "mapping":
		mappings, ok := config["mappings"].(map[string]interface{})
		if !ok || len(mappings) == 0 {
			return fmt.Errorf("mapping transform requires a non-empty mappings object")
		}
	case "filter", "extract":
		fields, err := stringSlice(config["fields"])
		if err != nil {
			return fmt.Errorf("%s transform fields: %w", transformType, err)
		}
		if len(fields) == 0 {
			return fmt.Errorf("%s transform requires a non-empty fields list", transformType)
		}
	case "merge":
		sources, err := stringSlice(config["sources"])
		if err != nil {
			return fmt.Errorf("merge transform sources: %w", err)
		}
		if len(sources) == 0 {
			return fmt.Errorf("merge transform requires a non-empty sources list")
		}
	case "custom":
		expression, _ := config["expression"].(string)
		if expression == "" {
			return fmt.Errorf("custom transform requires an expression")
		}
		if err := n.evaluator.Compile(expression); err != nil {
			return fmt.Errorf("invalid expression: %w", err)
		}
	case "":
		return fmt.Errorf("transform_type is required")
	default:
		return fmt.Errorf("unknown transform_type: %s", transformType)
	}

	return nil
}

// Execute applies the configured transform
func (n *TransformNode) Execute(ctx context.Context, config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	transformType, _ := config["transform_type"].(string)

	switch transformType {
	case "mapping":
		return n.executeMapping(config, ec)
	case "filter":
		return n.executeFilter(config, ec)
	case "extract":
		return n.executeExtract(config, ec)
	case "merge":
		return n.executeMerge(config, ec)
	case "custom":
		return n.executeCustom(config, ec)
	default:
		return nil, fmt.Errorf("unknown transform_type: %s", transformType)
	}
}

// executeMapping emits the mappings object. Template values were already
// resolved against the variable space before execution.
func (n *TransformNode) executeMapping(config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	mappings, _ := config["mappings"].(map[string]interface{})

	out := make(map[string]interface{}, len(mappings))
	for key, value := range mappings {
		out[key] = value
	}

	n.logInfo(ec, fmt.Sprintf("mapped %d field(s)", len(out)))
	return out, nil
}

// executeFilter keeps only the listed fields that are present
func (n *TransformNode) executeFilter(config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	fields, _ := stringSlice(config["fields"])

	data, ok := n.inputValue(config, ec).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("filter transform requires object input")
	}

	out := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		if value, exists := data[field]; exists {
			out[field] = value
		}
	}

	n.logInfo(ec, fmt.Sprintf("filtered to %d of %d field(s)", len(out), len(data)))
	return out, nil
}

// executeExtract pulls the listed fields out of the input. A single field
// yields the bare value; several yield an object. Missing fields come
// through as null.
func (n *TransformNode) executeExtract(config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	fields, _ := stringSlice(config["fields"])

	data, ok := n.inputValue(config, ec).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("extract transform requires object input")
	}

	if len(fields) == 1 {
		n.logInfo(ec, fmt.Sprintf("extracted field %q", fields[0]))
		return data[fields[0]], nil
	}

	out := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		out[field] = data[field]
	}

	n.logInfo(ec, fmt.Sprintf("extracted %d field(s)", len(fields)))
	return out, nil
}

// executeMerge combines the outputs of the listed source nodes. Object
// outputs merge key-wise, later sources winning; scalar outputs land under
// the source node's id.
func (n *TransformNode) executeMerge(config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	sources, _ := stringSlice(config["sources"])

	out := make(map[string]interface{})
	for _, source := range sources {
		output := ec.NodeOutput(source)
		if output == nil {
			n.logWarning(ec, fmt.Sprintf("merge source %q has no output, skipping", source))
			continue
		}

		if m, ok := output.(map[string]interface{}); ok {
			for k, v := range m {
				out[k] = v
			}
		} else {
			out[source] = output
		}
	}

	n.logInfo(ec, fmt.Sprintf("merged %d source(s)", len(sources)))
	return out, nil
}

// executeCustom evaluates the configured CEL expression with the working
// input bound to the "input" variable
func (n *TransformNode) executeCustom(config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	expression, _ := config["expression"].(string)
	input := n.inputValue(config, ec)

	result, err := n.evaluator.Evaluate(expression, input)
	if err != nil {
		return nil, fmt.Errorf("expression evaluation failed: %w", err)
	}

	n.logInfo(ec, "custom expression evaluated")
	return result, nil
}
