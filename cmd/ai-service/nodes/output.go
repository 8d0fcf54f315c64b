package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/flowgrid/flowgrid/cmd/ai-service/engine"
	"github.com/flowgrid/flowgrid/cmd/ai-service/resolver"
)

var outputFormats = map[string]bool{
	"raw": true, "json": true, "text": true, "custom": true,
}

// OutputNode shapes the run's terminal result. It selects a source value
// (a named node's output, or the most recent one), optionally narrows it
// by field, and renders it raw, as JSON, as text, or through a template.
type OutputNode struct {
	baseNode
	resolver *resolver.Resolver
}

// NewOutputNode creates an output executor
func NewOutputNode(nodeID string, res *resolver.Resolver) *OutputNode {
	return &OutputNode{
		baseNode: baseNode{nodeID: nodeID, nodeType: engine.NodeTypeOutput},
		resolver: res,
	}
}

// Validate checks format and the per-format config
func (n *OutputNode) Validate(config map[string]interface{}) error {
	format, _ := config["format"].(string)
	if format != "" && !outputFormats[format] {
		return fmt.Errorf("unknown format: %s", format)
	}

	if format == "custom" {
		template, _ := config["template"].(string)
		if template == "" {
			return fmt.Errorf("custom format requires a template")
		}
	}

	if v, ok := config["fields"]; ok {
		if _, err := stringSlice(v); err != nil {
			return fmt.Errorf("fields: %w", err)
		}
	}
	if v, ok := config["exclude_fields"]; ok {
		if _, err := stringSlice(v); err != nil {
			return fmt.Errorf("exclude_fields: %w", err)
		}
	}
	if v, ok := config["pretty"]; ok {
		if _, isBool := v.(bool); !isBool {
			return fmt.Errorf("pretty must be a boolean")
		}
	}

	return nil
}

// Execute selects, narrows and renders the terminal value
func (n *OutputNode) Execute(ctx context.Context, config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	value := n.selectSource(config, ec)
	value = n.applyFieldFilters(config, value)

	format, _ := config["format"].(string)
	if format == "" {
		format = "raw"
	}

	switch format {
	case "raw":
		return value, nil
	case "json":
		return n.renderJSON(config, value)
	case "text":
		return renderText(value), nil
	case "custom":
		return n.renderTemplate(config, value, ec)
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// selectSource picks the value to render: the configured source node's
// output, else the most recently completed node's output
func (n *OutputNode) selectSource(config map[string]interface{}, ec *engine.Context) interface{} {
	if source, ok := config["source_node"].(string); ok && source != "" {
		value := ec.NodeOutput(source)
		if value == nil {
			n.logWarning(ec, fmt.Sprintf("source node %q has no output", source))
			return map[string]interface{}{}
		}
		return value
	}

	value, ok := ec.LastOutput()
	if !ok {
		n.logWarning(ec, "no node outputs available")
		return map[string]interface{}{}
	}
	return value
}

// applyFieldFilters narrows object values: an explicit fields allow-list
// wins over exclude_fields
func (n *OutputNode) applyFieldFilters(config map[string]interface{}, value interface{}) interface{} {
	data, isMap := value.(map[string]interface{})
	if !isMap {
		return value
	}

	if fields, err := stringSlice(config["fields"]); err == nil && len(fields) > 0 {
		out := make(map[string]interface{}, len(fields))
		for _, field := range fields {
			if v, exists := data[field]; exists {
				out[field] = v
			}
		}
		return out
	}

	if excluded, err := stringSlice(config["exclude_fields"]); err == nil && len(excluded) > 0 {
		skip := make(map[string]bool, len(excluded))
		for _, field := range excluded {
			skip[field] = true
		}
		out := make(map[string]interface{}, len(data))
		for k, v := range data {
			if !skip[k] {
				out[k] = v
			}
		}
		return out
	}

	return value
}

func (n *OutputNode) renderJSON(config map[string]interface{}, value interface{}) (interface{}, error) {
	pretty, _ := config["pretty"].(bool)

	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return nil, fmt.Errorf("json rendering failed: %w", err)
	}

	return string(data), nil
}

// renderText flattens the value to a human-readable string: objects become
// sorted "key: value" lines, scalars print as-is
func renderText(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s: %v", k, v[k]))
		}
		return strings.Join(lines, "\n")
	case nil:
		return ""
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}

// renderTemplate resolves the configured template against the variable
// space extended with "output" bound to the selected value
func (n *OutputNode) renderTemplate(config map[string]interface{}, value interface{}, ec *engine.Context) (interface{}, error) {
	template, _ := config["template"].(string)

	var vars map[string]interface{}
	if err := json.Unmarshal(ec.VariablesJSON(), &vars); err != nil {
		vars = map[string]interface{}{}
	}
	vars["output"] = value

	snapshot, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("template rendering failed: %w", err)
	}

	return n.resolver.Resolve(snapshot, template), nil
}
