package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextVariablesNesting(t *testing.T) {
	ec := newTestContext(map[string]interface{}{"topic": "go"})
	ec.SetNodeOutput("fetch", map[string]interface{}{"text": "doc"})

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(ec.VariablesJSON(), &vars))

	input := vars["input"].(map[string]interface{})
	assert.Equal(t, "go", input["topic"])

	nodes := vars["nodes"].(map[string]interface{})
	fetch := nodes["fetch"].(map[string]interface{})
	assert.Equal(t, "doc", fetch["text"])

	// "output" only appears after terminal success
	_, hasOutput := vars["output"]
	assert.False(t, hasOutput)
}

func TestContextCompletePublishesOutputVariable(t *testing.T) {
	ec := newTestContext(nil)
	ec.Start()
	ec.Complete(map[string]interface{}{"result": "done"})

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(ec.VariablesJSON(), &vars))

	output := vars["output"].(map[string]interface{})
	assert.Equal(t, "done", output["result"])

	summary := ec.Summary()
	assert.Equal(t, StatusCompleted, summary.Status)
	assert.NotNil(t, summary.StartedAt)
	assert.NotNil(t, summary.CompletedAt)
}

func TestContextLastOutputFollowsCompletionOrder(t *testing.T) {
	ec := newTestContext(nil)

	_, ok := ec.LastOutput()
	assert.False(t, ok)

	ec.SetNodeOutput("a", "first")
	ec.SetNodeOutput("b", "second")
	ec.SetNodeOutput("a", "first-updated")

	last, ok := ec.LastOutput()
	require.True(t, ok)
	assert.Equal(t, "second", last)
}

func TestContextCompletedAtSetOnce(t *testing.T) {
	ec := newTestContext(nil)
	ec.Start()
	ec.Fail("boom")

	first := ec.CompletedAt()
	require.NotNil(t, first)

	ec.MarkStopped()
	assert.Equal(t, first, ec.CompletedAt())
}

func TestContextLogsAndSummaryCounts(t *testing.T) {
	ec := newTestContext(nil)
	ec.SetNodeStatus("a", NodeSuccess)
	ec.SetNodeStatus("b", NodeFailed)
	ec.AddLog("info", "hello", "a", nil)
	ec.AddLog("error", "bad", "b", map[string]interface{}{"k": "v"})

	logs := ec.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "hello", logs[0].Message)
	assert.Equal(t, "error", logs[1].Level)
	assert.Equal(t, "exec-1", logs[0].ExecutionID)

	summary := ec.Summary()
	assert.Equal(t, 2, summary.NodeCount)
	assert.Equal(t, 1, summary.CompletedNodes)
	assert.Equal(t, 1, summary.FailedNodes)
	assert.Equal(t, 2, summary.LogCount)
}
