package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/cmd/ai-service/expr"
)

func TestTransformMapping(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())
	ec := newTestContext(nil)

	// Template values arrive already resolved
	output, err := n.Execute(context.Background(), map[string]interface{}{
		"transform_type": "mapping",
		"mappings": map[string]interface{}{
			"summary": "the resolved text",
			"count":   float64(3),
		},
	}, ec)
	require.NoError(t, err)

	result := output.(map[string]interface{})
	assert.Equal(t, "the resolved text", result["summary"])
	assert.Equal(t, float64(3), result["count"])
}

func TestTransformFilter(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())
	ec := newTestContext(map[string]interface{}{
		"keep":    "yes",
		"drop":    "no",
		"another": float64(1),
	})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"transform_type": "filter",
		"fields":         []interface{}{"keep", "missing"},
	}, ec)
	require.NoError(t, err)

	result := output.(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"keep": "yes"}, result)
}

func TestTransformExtractSingleField(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())
	ec := newTestContext(map[string]interface{}{"id": float64(42)})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"transform_type": "extract",
		"fields":         []interface{}{"id"},
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, float64(42), output)
}

func TestTransformExtractMultipleFields(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())
	ec := newTestContext(map[string]interface{}{"a": float64(1), "b": float64(2)})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"transform_type": "extract",
		"fields":         []interface{}{"a", "missing"},
	}, ec)
	require.NoError(t, err)

	result := output.(map[string]interface{})
	assert.Equal(t, float64(1), result["a"])
	assert.Nil(t, result["missing"])
}

func TestTransformMerge(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())
	ec := newTestContext(nil)
	ec.SetNodeOutput("first", map[string]interface{}{"a": float64(1), "shared": "first"})
	ec.SetNodeOutput("second", map[string]interface{}{"b": float64(2), "shared": "second"})
	ec.SetNodeOutput("scalar", "just text")

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"transform_type": "merge",
		"sources":        []interface{}{"first", "second", "scalar", "absent"},
	}, ec)
	require.NoError(t, err)

	result := output.(map[string]interface{})
	assert.Equal(t, float64(1), result["a"])
	assert.Equal(t, float64(2), result["b"])
	// Later sources win on key collisions
	assert.Equal(t, "second", result["shared"])
	// Scalar outputs land under the source node id
	assert.Equal(t, "just text", result["scalar"])
	assert.NotContains(t, result, "absent")
}

func TestTransformCustomExpression(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())
	ec := newTestContext(map[string]interface{}{"x": float64(3)})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"transform_type": "custom",
		"expression":     "input.x * 2.0",
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, float64(6), output)
}

func TestTransformCustomMapResult(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())
	ec := newTestContext(map[string]interface{}{"msg": "hi"})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"transform_type": "custom",
		"expression":     `{"msg": input.msg.upperAscii(), "transformed": true}`,
	}, ec)
	require.NoError(t, err)

	result := output.(map[string]interface{})
	assert.Equal(t, "HI", result["msg"])
	assert.Equal(t, true, result["transformed"])
}

func TestTransformCustomUsesSourceNode(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())
	ec := newTestContext(nil)
	ec.SetNodeOutput("upstream", map[string]interface{}{"score": 0.9})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"transform_type": "custom",
		"expression":     `input.score > 0.5 ? "high" : "low"`,
		"source_node":    "upstream",
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, "high", output)
}

func TestTransformValidate(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())

	assert.Error(t, n.Validate(map[string]interface{}{}))
	assert.Error(t, n.Validate(map[string]interface{}{"transform_type": "reshape"}))
	assert.Error(t, n.Validate(map[string]interface{}{"transform_type": "mapping"}))
	assert.Error(t, n.Validate(map[string]interface{}{
		"transform_type": "filter",
		"fields":         []interface{}{},
	}))
	assert.Error(t, n.Validate(map[string]interface{}{
		"transform_type": "merge",
	}))
	assert.Error(t, n.Validate(map[string]interface{}{
		"transform_type": "custom",
		"expression":     "input.x +",
	}))
	assert.NoError(t, n.Validate(map[string]interface{}{
		"transform_type": "custom",
		"expression":     "input.x",
	}))
	assert.NoError(t, n.Validate(map[string]interface{}{
		"transform_type": "mapping",
		"mappings":       map[string]interface{}{"k": "v"},
	}))
}

func TestTransformNonObjectInputFails(t *testing.T) {
	n := NewTransformNode("tr", expr.NewEvaluator())
	ec := newTestContext(nil)
	ec.SetNodeOutput("scalar", "text")

	_, err := n.Execute(context.Background(), map[string]interface{}{
		"transform_type": "filter",
		"fields":         []interface{}{"a"},
		"source_node":    "scalar",
	}, ec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires object input")
}
