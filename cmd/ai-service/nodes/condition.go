package nodes

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/flowgrid/flowgrid/cmd/ai-service/engine"
	"github.com/flowgrid/flowgrid/cmd/ai-service/resolver"
)

var conditionOperators = map[string]bool{
	"eq": true, "ne": true,
	"gt": true, "gte": true,
	"lt": true, "lte": true,
	"contains": true, "in": true,
}

// ConditionNode evaluates an ordered list of comparisons against the
// variable space and emits the branch of the first one that matches.
// A condition that cannot be evaluated is skipped with a warning rather
// than failing the run.
type ConditionNode struct {
	baseNode
	resolver *resolver.Resolver
}

// NewConditionNode creates a condition executor
func NewConditionNode(nodeID string, res *resolver.Resolver) *ConditionNode {
	return &ConditionNode{
		baseNode: baseNode{nodeID: nodeID, nodeType: engine.NodeTypeCondition},
		resolver: res,
	}
}

// Validate checks the conditions list shape and operators
func (n *ConditionNode) Validate(config map[string]interface{}) error {
	raw, ok := config["conditions"]
	if !ok {
		return fmt.Errorf("conditions is required")
	}
	list, ok := raw.([]interface{})
	if !ok {
		return fmt.Errorf("conditions must be a list")
	}
	if len(list) == 0 {
		return fmt.Errorf("conditions must not be empty")
	}

	for i, item := range list {
		cond, ok := item.(map[string]interface{})
		if !ok {
			return fmt.Errorf("condition %d must be an object", i)
		}
		field, _ := cond["field"].(string)
		if field == "" {
			return fmt.Errorf("condition %d is missing field", i)
		}
		op, _ := cond["operator"].(string)
		if op == "" {
			return fmt.Errorf("condition %d is missing operator", i)
		}
		if !conditionOperators[op] {
			return fmt.Errorf("condition %d has unknown operator: %s", i, op)
		}
		branch, _ := cond["branch"].(string)
		if branch == "" {
			return fmt.Errorf("condition %d is missing branch", i)
		}
	}

	if v, ok := config["default_branch"]; ok {
		if _, isStr := v.(string); !isStr {
			return fmt.Errorf("default_branch must be a string")
		}
	}

	return nil
}

// Execute picks the first matching condition's branch
func (n *ConditionNode) Execute(ctx context.Context, config map[string]interface{}, ec *engine.Context) (interface{}, error) {
	list, _ := config["conditions"].([]interface{})
	vars := ec.VariablesJSON()

	for i, item := range list {
		cond, _ := item.(map[string]interface{})
		field, _ := cond["field"].(string)
		op, _ := cond["operator"].(string)
		expected := cond["value"]
		branch, _ := cond["branch"].(string)

		actual, found := n.resolver.Lookup(vars, field)
		if !found {
			n.logWarning(ec, fmt.Sprintf("condition %d: field %q not found, treating as null", i, field))
		}

		matched, err := evaluateOperator(op, actual, expected)
		if err != nil {
			n.logWarning(ec, fmt.Sprintf("condition %d skipped: %v", i, err))
			continue
		}

		if matched {
			n.logInfo(ec, fmt.Sprintf("condition %d matched, taking branch %q", i, branch))
			return map[string]interface{}{
				"branch":            branch,
				"matched_condition": i,
				"field":             field,
				"actual_value":      actual,
				"expected_value":    expected,
				"operator":          op,
			}, nil
		}
	}

	if branch, ok := config["default_branch"].(string); ok && branch != "" {
		n.logInfo(ec, fmt.Sprintf("no condition matched, taking default branch %q", branch))
		return map[string]interface{}{
			"branch":            branch,
			"matched_condition": nil,
		}, nil
	}

	return nil, fmt.Errorf("no conditions matched and no default branch specified")
}

// evaluateOperator applies one comparison. Type mismatches are errors so
// the caller can skip the condition instead of silently mis-deciding.
func evaluateOperator(op string, actual, expected interface{}) (bool, error) {
	switch op {
	case "eq":
		return valuesEqual(actual, expected), nil
	case "ne":
		return !valuesEqual(actual, expected), nil
	case "gt", "gte", "lt", "lte":
		return compareOrdered(op, actual, expected)
	case "contains":
		return containsValue(actual, expected)
	case "in":
		return containsValue(expected, actual)
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

// valuesEqual compares numerics by value and everything else structurally
func valuesEqual(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func compareOrdered(op string, actual, expected interface{}) (bool, error) {
	if af, aok := asFloat(actual); aok {
		bf, bok := asFloat(expected)
		if !bok {
			return false, fmt.Errorf("cannot compare %T with %T", actual, expected)
		}
		switch op {
		case "gt":
			return af > bf, nil
		case "gte":
			return af >= bf, nil
		case "lt":
			return af < bf, nil
		case "lte":
			return af <= bf, nil
		}
	}

	as, aok := actual.(string)
	bs, bok := expected.(string)
	if aok && bok {
		c := strings.Compare(as, bs)
		switch op {
		case "gt":
			return c > 0, nil
		case "gte":
			return c >= 0, nil
		case "lt":
			return c < 0, nil
		case "lte":
			return c <= 0, nil
		}
	}

	return false, fmt.Errorf("cannot order %T and %T", actual, expected)
}

// containsValue reports whether haystack contains needle: substring for
// strings, element membership for lists
func containsValue(haystack, needle interface{}) (bool, error) {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("string containment needs a string operand, got %T", needle)
		}
		return strings.Contains(h, s), nil
	case []interface{}:
		for _, item := range h {
			if valuesEqual(item, needle) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("containment not supported on %T", haystack)
	}
}
