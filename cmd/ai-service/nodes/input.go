package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowgrid/flowgrid/cmd/ai-service/engine"
)

// InputNode admits the workflow's input data into the run: it can narrow
// the data to a single field, backfill defaults for absent keys, and check
// the result against a JSON-schema-style shape description.
type InputNode struct {
	baseNode
}

// NewInputNode creates an input executor
func NewInputNode(nodeID string) *InputNode {
	return &InputNode{baseNode{nodeID: nodeID, nodeType: engine.NodeTypeInput}}
}

// Validate checks the raw node config
func (n *InputNode) Validate(config map[string]interface{}) error {
	if v, ok := config["schema"]; ok {
		if _, isMap := v.(map[string]interface{}); !isMap {
			return fmt.Errorf("schema must be an object")
		}
	}
	if v, ok := config["defaults"]; ok {
		if _, isMap := v.(map[string]interface{}); !isMap {
			return fmt.Errorf("defaults must be an object")
		}
	}
	if v, ok := config["extract_field"]; ok {
		s, isStr := v.(string)
		if !isStr || s == "" {
			return fmt.Errorf("extract_field must be a non-empty string")
		}
	}
	if v, ok := config["validate"]; ok {
		if _, isBool := v.(bool); !isBool {
			return fmt.Errorf("validate must be a boolean")
		}
	}
	return nil
}

// Execute narrows, defaults and validates the input data
func (n *InputNode) Execute(ctx context.Context, config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	var working interface{} = ec.InputData()

	if field, ok := config["extract_field"].(string); ok && field != "" {
		if data, isMap := working.(map[string]interface{}); isMap {
			if value, exists := data[field]; exists {
				n.logInfo(ec, fmt.Sprintf("extracted field %q from input data", field))
				working = value
			} else {
				n.logWarning(ec, fmt.Sprintf("extract_field %q not present in input data, passing through", field))
			}
		} else {
			n.logWarning(ec, "extract_field configured but input data is not an object")
		}
	}

	if defaults, ok := config["defaults"].(map[string]interface{}); ok && len(defaults) > 0 {
		if data, isMap := working.(map[string]interface{}); isMap {
			merged := make(map[string]interface{}, len(data)+len(defaults))
			for k, v := range data {
				merged[k] = v
			}
			applied := 0
			for k, v := range defaults {
				if _, exists := merged[k]; !exists {
					merged[k] = v
					applied++
				}
			}
			if applied > 0 {
				n.logInfo(ec, fmt.Sprintf("applied %d default value(s)", applied))
			}
			working = merged
		}
	}

	if doValidate, _ := config["validate"].(bool); doValidate {
		schema, _ := config["schema"].(map[string]interface{})
		if len(schema) > 0 {
			if err := n.validateAgainstSchema(working, schema); err != nil {
				return nil, err
			}
			n.logInfo(ec, "input data passed schema validation")
		}
	}

	return working, nil
}

// validateAgainstSchema checks the data against the configured field map.
// Each schema entry describes one field as {"type": ..., "required": ...}.
func (n *InputNode) validateAgainstSchema(data interface{}, schema map[string]interface{}) error {
	if _, isMap := data.(map[string]interface{}); !isMap {
		return fmt.Errorf("schema validation requires object input data")
	}

	properties := make(map[string]interface{}, len(schema))
	var required []string

	for field, raw := range schema {
		fieldSpec, _ := raw.(map[string]interface{})
		prop := map[string]interface{}{}
		if t, ok := fieldSpec["type"].(string); ok && t != "" {
			prop["type"] = t
		}
		properties[field] = prop
		if req, _ := fieldSpec["required"].(bool); req {
			required = append(required, field)
		}
	}

	doc := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(doc),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("input validation failed: %s", strings.Join(msgs, "; "))
	}

	return nil
}
