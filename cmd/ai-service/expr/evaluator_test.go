package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateArithmetic(t *testing.T) {
	e := NewEvaluator()

	result, err := e.Evaluate("input.x * 2.0", map[string]interface{}{"x": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 6.0, result)
}

func TestEvaluateStringOps(t *testing.T) {
	e := NewEvaluator()

	result, err := e.Evaluate(`input.name + "!"`, map[string]interface{}{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada!", result)
}

func TestEvaluateConditional(t *testing.T) {
	e := NewEvaluator()

	result, err := e.Evaluate(`input.score > 0.5 ? "pass" : "fail"`, map[string]interface{}{"score": 0.9})
	require.NoError(t, err)
	assert.Equal(t, "pass", result)
}

func TestEvaluateMapResultIsJSONNative(t *testing.T) {
	e := NewEvaluator()

	result, err := e.Evaluate(`{"msg": input.msg.upperAscii(), "transformed": true}`,
		map[string]interface{}{"msg": "hi"})
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "HI", m["msg"])
	assert.Equal(t, true, m["transformed"])
}

func TestCompileRejectsMalformedExpression(t *testing.T) {
	e := NewEvaluator()

	err := e.Compile("input.x +")
	assert.Error(t, err)
}

func TestEvaluateMissingFieldErrors(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("input.missing", map[string]interface{}{"x": 1.0})
	assert.Error(t, err)
}

func TestProgramCaching(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("input.x", map[string]interface{}{"x": 1.0})
	require.NoError(t, err)
	_, err = e.Evaluate("input.x", map[string]interface{}{"x": 2.0})
	require.NoError(t, err)

	assert.Equal(t, 1, e.CacheSize())
}
