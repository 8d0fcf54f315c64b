package engine

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowgrid/flowgrid/common/events"
	"github.com/flowgrid/flowgrid/common/logger"
)

// Status is the run-level state mirrored into the context for logs and
// summaries; the manager's record is the source of truth.
type Status string

// Run states
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
	StatusPaused    Status = "paused"
)

// NodeStatus is a node's lifecycle state
type NodeStatus string

// Node states; a node only ever moves pending -> running -> terminal
const (
	NodePending NodeStatus = "pending"
	NodeRunning NodeStatus = "running"
	NodeSuccess NodeStatus = "success"
	NodeFailed  NodeStatus = "failed"
	NodeSkipped NodeStatus = "skipped"
)

// LogEntry is one execution log line
type LogEntry struct {
	ExecutionID string                 `json:"execution_id"`
	Timestamp   time.Time              `json:"timestamp"`
	Level       string                 `json:"level"`
	Message     string                 `json:"message"`
	NodeID      string                 `json:"node_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Controls carries the run's control flags. The manager flips them; the
// engine observes them at wave boundaries.
type Controls struct {
	paused  atomic.Bool
	stopped atomic.Bool
}

// NewControls creates a control flag set
func NewControls() *Controls {
	return &Controls{}
}

// Pause sets the paused flag
func (c *Controls) Pause() { c.paused.Store(true) }

// Resume clears the paused flag
func (c *Controls) Resume() { c.paused.Store(false) }

// Stop sets the stopped flag
func (c *Controls) Stop() { c.stopped.Store(true) }

// Paused reports whether the run is paused
func (c *Controls) Paused() bool { return c.paused.Load() }

// Stopped reports whether a stop was requested
func (c *Controls) Stopped() bool { return c.stopped.Load() }

// Context is the per-run scratchpad: input data, variables, node outputs,
// statuses and logs. It is created by the manager, mutated only by the
// engine and the node executors of the same run, and read concurrently by
// status and log queries.
//
// Variables are nested: "input" holds the submitted input data, "nodes"
// holds a map of node id to output, and "output" is set on terminal
// success. Dotted-path resolution descends this structure segment by
// segment.
type Context struct {
	ExecutionID string
	WorkflowID  string

	mu           sync.RWMutex
	inputData    map[string]interface{}
	variables    map[string]interface{}
	nodeOutputs  map[string]interface{}
	outputOrder  []string
	nodeStatuses map[string]NodeStatus
	logs         []LogEntry
	status       Status
	startedAt    *time.Time
	completedAt  *time.Time
	errMsg       string

	bus *events.Bus
	log *logger.Logger
}

// NewContext creates an execution context seeded with the input data
func NewContext(executionID, workflowID string, inputData map[string]interface{}, bus *events.Bus, log *logger.Logger) *Context {
	if inputData == nil {
		inputData = make(map[string]interface{})
	}

	return &Context{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		inputData:   inputData,
		variables: map[string]interface{}{
			"input": inputData,
			"nodes": map[string]interface{}{},
		},
		nodeOutputs:  make(map[string]interface{}),
		nodeStatuses: make(map[string]NodeStatus),
		status:       StatusPending,
		bus:          bus,
		log:          log.WithExecutionID(executionID),
	}
}

// InputData returns the submitted input data
func (c *Context) InputData() map[string]interface{} {
	return c.inputData
}

// VariablesJSON returns a JSON snapshot of the variables map for the
// resolver. Values that cannot be marshalled degrade to an empty object.
func (c *Context) VariablesJSON() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := json.Marshal(c.variables)
	if err != nil {
		c.log.Warn("failed to snapshot variables", "error", err)
		return []byte("{}")
	}
	return data
}

// SetNodeOutput records a node's output and makes it addressable as
// nodes.<id> in the variables map
func (c *Context) SetNodeOutput(nodeID string, output interface{}) {
	c.mu.Lock()
	if _, exists := c.nodeOutputs[nodeID]; !exists {
		c.outputOrder = append(c.outputOrder, nodeID)
	}
	c.nodeOutputs[nodeID] = output
	c.variables["nodes"].(map[string]interface{})[nodeID] = output
	c.mu.Unlock()

	c.log.Debug("node output set", "node_id", nodeID)
}

// NodeOutput returns a node's output, or nil when the node has not
// produced one
func (c *Context) NodeOutput(nodeID string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodeOutputs[nodeID]
}

// LastOutput returns the most recently completed node's output. Completion
// order is consistent with topological order under wave scheduling.
func (c *Context) LastOutput() (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.outputOrder) == 0 {
		return nil, false
	}
	return c.nodeOutputs[c.outputOrder[len(c.outputOrder)-1]], true
}

// NodeOutputs returns a copy of all node outputs keyed by id
func (c *Context) NodeOutputs() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]interface{}, len(c.nodeOutputs))
	for id, v := range c.nodeOutputs {
		out[id] = v
	}
	return out
}

// SetNodeStatus updates a node's lifecycle state and notifies the observer
func (c *Context) SetNodeStatus(nodeID string, status NodeStatus) {
	c.mu.Lock()
	c.nodeStatuses[nodeID] = status
	c.mu.Unlock()

	c.log.Debug("node status set", "node_id", nodeID, "status", status)
	c.emit(events.Event{
		Type:   events.TypeNodeStatus,
		NodeID: nodeID,
		Status: string(status),
	})
}

// NodeStatus returns a node's current lifecycle state
func (c *Context) NodeStatus(nodeID string) NodeStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodeStatuses[nodeID]
}

// NodeStatuses returns a copy of all node statuses
func (c *Context) NodeStatuses() map[string]NodeStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]NodeStatus, len(c.nodeStatuses))
	for id, s := range c.nodeStatuses {
		out[id] = s
	}
	return out
}

// AddLog appends an execution log line and notifies the observer.
// Timestamps are taken under the lock, so they are monotonic per
// execution.
func (c *Context) AddLog(level, message, nodeID string, metadata map[string]interface{}) {
	c.mu.Lock()
	entry := LogEntry{
		ExecutionID: c.ExecutionID,
		Timestamp:   time.Now(),
		Level:       level,
		Message:     message,
		NodeID:      nodeID,
		Metadata:    metadata,
	}
	c.logs = append(c.logs, entry)
	c.mu.Unlock()

	switch level {
	case "error":
		c.log.Error(message, "node_id", nodeID)
	case "warning":
		c.log.Warn(message, "node_id", nodeID)
	case "debug":
		c.log.Debug(message, "node_id", nodeID)
	default:
		c.log.Info(message, "node_id", nodeID)
	}

	c.emit(events.Event{
		Type:      events.TypeLog,
		NodeID:    nodeID,
		Level:     level,
		Message:   message,
		Metadata:  metadata,
		Timestamp: entry.Timestamp,
	})
}

// Logs returns a copy of the execution log
func (c *Context) Logs() []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]LogEntry, len(c.logs))
	copy(out, c.logs)
	return out
}

// Start marks the context running
func (c *Context) Start() {
	now := time.Now()
	c.mu.Lock()
	c.status = StatusRunning
	c.startedAt = &now
	c.mu.Unlock()

	c.AddLog("info", "workflow execution started", "", nil)
	c.emit(events.Event{Type: events.TypeStatus, Status: string(StatusRunning)})
}

// Complete marks the context completed and publishes the final output
// under the "output" variable
func (c *Context) Complete(output interface{}) {
	c.mu.Lock()
	c.status = StatusCompleted
	c.setCompletedLocked()
	c.variables["output"] = output
	c.mu.Unlock()

	c.AddLog("info", "workflow execution completed", "", nil)
	c.emit(events.Event{Type: events.TypeStatus, Status: string(StatusCompleted), Output: output})
}

// Fail marks the context failed
func (c *Context) Fail(errMsg string) {
	c.mu.Lock()
	c.status = StatusFailed
	c.setCompletedLocked()
	c.errMsg = errMsg
	c.mu.Unlock()

	c.AddLog("error", "workflow execution failed: "+errMsg, "", nil)
	c.emit(events.Event{Type: events.TypeStatus, Status: string(StatusFailed), Error: errMsg})
}

// MarkStopped records a user-requested stop; partial node outputs remain
// available for post-mortem inspection
func (c *Context) MarkStopped() {
	c.mu.Lock()
	c.status = StatusStopped
	c.setCompletedLocked()
	c.mu.Unlock()

	c.AddLog("info", "workflow execution stopped", "", nil)
	c.emit(events.Event{Type: events.TypeStatus, Status: string(StatusStopped)})
}

// setCompletedLocked sets completed_at exactly once
func (c *Context) setCompletedLocked() {
	if c.completedAt == nil {
		now := time.Now()
		c.completedAt = &now
	}
}

// Error returns the recorded failure message, if any
func (c *Context) Error() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}

// Summary captures the execution's terminal shape for status responses
type Summary struct {
	ExecutionID    string     `json:"execution_id"`
	WorkflowID     string     `json:"workflow_id"`
	Status         Status     `json:"status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DurationSecs   float64    `json:"duration,omitempty"`
	Error          string     `json:"error,omitempty"`
	NodeCount      int        `json:"node_count"`
	CompletedNodes int        `json:"completed_nodes"`
	FailedNodes    int        `json:"failed_nodes"`
	LogCount       int        `json:"log_count"`
}

// Summary returns counts and timing for the execution
func (c *Context) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Summary{
		ExecutionID: c.ExecutionID,
		WorkflowID:  c.WorkflowID,
		Status:      c.status,
		StartedAt:   c.startedAt,
		CompletedAt: c.completedAt,
		Error:       c.errMsg,
		NodeCount:   len(c.nodeStatuses),
		LogCount:    len(c.logs),
	}

	if c.startedAt != nil && c.completedAt != nil {
		s.DurationSecs = c.completedAt.Sub(*c.startedAt).Seconds()
	}

	for _, status := range c.nodeStatuses {
		switch status {
		case NodeSuccess:
			s.CompletedNodes++
		case NodeFailed:
			s.FailedNodes++
		}
	}

	return s
}

// CompletedAt returns the terminal timestamp, if set
func (c *Context) CompletedAt() *time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completedAt
}

// emit sends an event to the observer bus, if one is installed
func (c *Context) emit(event events.Event) {
	if c.bus == nil {
		return
	}
	event.ExecutionID = c.ExecutionID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	c.bus.Publish(event)
}
