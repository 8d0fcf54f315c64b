package nodes

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/cmd/ai-service/resolver"
)

func TestOutputRawFromSourceNode(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(nil)
	ec.SetNodeOutput("summarize", map[string]interface{}{"text": "done"})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"source_node": "summarize",
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"text": "done"}, output)
}

func TestOutputDefaultsToLastOutput(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(nil)
	ec.SetNodeOutput("first", "one")
	ec.SetNodeOutput("second", "two")

	output, err := n.Execute(context.Background(), map[string]interface{}{}, ec)
	require.NoError(t, err)
	assert.Equal(t, "two", output)
}

func TestOutputNoSourcesYieldsEmptyObject(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(nil)

	output, err := n.Execute(context.Background(), map[string]interface{}{}, ec)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, output)
}

func TestOutputFieldsFilterWinsOverExclude(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(nil)
	ec.SetNodeOutput("src", map[string]interface{}{
		"a": float64(1),
		"b": float64(2),
		"c": float64(3),
	})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"source_node":    "src",
		"fields":         []interface{}{"a"},
		"exclude_fields": []interface{}{"a", "b"},
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, output)
}

func TestOutputExcludeFields(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(nil)
	ec.SetNodeOutput("src", map[string]interface{}{
		"keep":   "yes",
		"secret": "no",
	})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"source_node":    "src",
		"exclude_fields": []interface{}{"secret"},
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"keep": "yes"}, output)
}

func TestOutputJSONFormat(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(nil)
	ec.SetNodeOutput("src", map[string]interface{}{"k": "v"})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"source_node": "src",
		"format":      "json",
	}, ec)
	require.NoError(t, err)

	text, ok := output.(string)
	require.True(t, ok)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	assert.Equal(t, "v", decoded["k"])
}

func TestOutputJSONPretty(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(nil)
	ec.SetNodeOutput("src", map[string]interface{}{"k": "v"})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"source_node": "src",
		"format":      "json",
		"pretty":      true,
	}, ec)
	require.NoError(t, err)
	assert.Contains(t, output.(string), "\n")
}

func TestOutputTextFormat(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(nil)
	ec.SetNodeOutput("src", map[string]interface{}{
		"b": "second",
		"a": "first",
	})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"source_node": "src",
		"format":      "text",
	}, ec)
	require.NoError(t, err)

	lines := strings.Split(output.(string), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "a: first", lines[0])
	assert.Equal(t, "b: second", lines[1])
}

func TestOutputTextFormatString(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(nil)
	ec.SetNodeOutput("src", "already text")

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"source_node": "src",
		"format":      "text",
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, "already text", output)
}

func TestOutputCustomTemplate(t *testing.T) {
	n := NewOutputNode("out", resolver.New())
	ec := newTestContext(map[string]interface{}{"user": "ada"})
	ec.SetNodeOutput("src", map[string]interface{}{"text": "all done"})

	output, err := n.Execute(context.Background(), map[string]interface{}{
		"source_node": "src",
		"format":      "custom",
		"template":    "Result for {{input.user}}: {{output.text}}",
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, "Result for ada: all done", output)
}

func TestOutputValidate(t *testing.T) {
	n := NewOutputNode("out", resolver.New())

	assert.NoError(t, n.Validate(map[string]interface{}{}))
	assert.Error(t, n.Validate(map[string]interface{}{"format": "yaml"}))
	assert.Error(t, n.Validate(map[string]interface{}{"format": "custom"}))
	assert.Error(t, n.Validate(map[string]interface{}{"fields": "not a list"}))
	assert.Error(t, n.Validate(map[string]interface{}{"pretty": "yes"}))
	assert.NoError(t, n.Validate(map[string]interface{}{
		"format":   "custom",
		"template": "{{output}}",
	}))
}
