package resolver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func varsJSON(t *testing.T, vars map[string]interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(vars)
	require.NoError(t, err)
	return data
}

func TestResolveNestedPaths(t *testing.T) {
	r := New()
	vars := varsJSON(t, map[string]interface{}{
		"input": map[string]interface{}{"audience": "engineers"},
		"nodes": map[string]interface{}{
			"fetch": map[string]interface{}{"text": "the document"},
		},
	})

	got := r.Resolve(vars, "Summarize: {{nodes.fetch.text}} for {{input.audience}}")
	assert.Equal(t, "Summarize: the document for engineers", got)
}

func TestResolveTrimsWhitespace(t *testing.T) {
	r := New()
	vars := varsJSON(t, map[string]interface{}{
		"input": map[string]interface{}{"name": "ada"},
	})

	assert.Equal(t, "ada", r.Resolve(vars, "{{ input.name }}"))
}

func TestResolveAbsentPathLeftVerbatim(t *testing.T) {
	r := New()
	vars := varsJSON(t, map[string]interface{}{
		"input": map[string]interface{}{},
	})

	got := r.Resolve(vars, "value: {{nodes.missing.field}}")
	assert.Equal(t, "value: {{nodes.missing.field}}", got)
}

func TestResolveStringifiesScalars(t *testing.T) {
	r := New()
	vars := varsJSON(t, map[string]interface{}{
		"input": map[string]interface{}{
			"count":   float64(3),
			"enabled": true,
		},
	})

	assert.Equal(t, "3", r.Resolve(vars, "{{input.count}}"))
	assert.Equal(t, "true", r.Resolve(vars, "{{input.enabled}}"))
}

func TestResolveNestedValueRendersJSON(t *testing.T) {
	r := New()
	vars := varsJSON(t, map[string]interface{}{
		"nodes": map[string]interface{}{
			"classify": map[string]interface{}{"label": "spam"},
		},
	})

	got := r.Resolve(vars, "{{nodes.classify}}")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	assert.Equal(t, "spam", decoded["label"])
}

func TestResolveStringWithoutTokensUnchanged(t *testing.T) {
	r := New()
	vars := varsJSON(t, map[string]interface{}{"input": map[string]interface{}{}})

	assert.Equal(t, "plain text", r.Resolve(vars, "plain text"))
}

func TestLookup(t *testing.T) {
	r := New()
	vars := varsJSON(t, map[string]interface{}{
		"input": map[string]interface{}{"age": float64(20)},
	})

	value, found := r.Lookup(vars, "input.age")
	require.True(t, found)
	assert.Equal(t, float64(20), value)

	_, found = r.Lookup(vars, "input.height")
	assert.False(t, found)
}

func TestResolveConfigRecurses(t *testing.T) {
	r := New()
	vars := varsJSON(t, map[string]interface{}{
		"input": map[string]interface{}{"topic": "go"},
	})

	config := map[string]interface{}{
		"prompt": "write about {{input.topic}}",
		"nested": map[string]interface{}{
			"inner": "topic is {{input.topic}}",
		},
		"list":   []interface{}{"{{input.topic}}", float64(5)},
		"number": float64(7),
	}

	resolved := r.ResolveConfig(vars, config)

	assert.Equal(t, "write about go", resolved["prompt"])
	assert.Equal(t, "topic is go", resolved["nested"].(map[string]interface{})["inner"])
	assert.Equal(t, []interface{}{"go", float64(5)}, resolved["list"])
	assert.Equal(t, float64(7), resolved["number"])

	// Input config is never mutated
	assert.Equal(t, "write about {{input.topic}}", config["prompt"])
}
