package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowgrid/flowgrid/cmd/ai-service/engine"
	"github.com/flowgrid/flowgrid/common/clients"
	"github.com/flowgrid/flowgrid/common/events"
	"github.com/flowgrid/flowgrid/common/logger"
	"github.com/flowgrid/flowgrid/common/metrics"
	"github.com/flowgrid/flowgrid/common/redis"
)

// Manager errors mapped onto HTTP status codes by the handlers
var (
	ErrExecutionNotFound = errors.New("execution not found")
	ErrInvalidState      = errors.New("invalid execution state")
)

// record is the manager's authoritative view of one execution
type record struct {
	executionID string
	workflowID  string
	status      engine.Status
	inputData   map[string]interface{}
	outputData  interface{}
	errMessage  string
	startedAt   *time.Time
	completedAt *time.Time
	currentNode string
	progress    float64
	nodeCount   int

	ec       *engine.Context
	controls *engine.Controls
	bus      *events.Bus
	cancel   context.CancelFunc
	done     chan struct{}
}

// StatusResponse is the execution status payload served over the API
type StatusResponse struct {
	ExecutionID  string                       `json:"execution_id"`
	WorkflowID   string                       `json:"workflow_id"`
	Status       engine.Status                `json:"status"`
	InputData    map[string]interface{}       `json:"input_data"`
	OutputData   interface{}                  `json:"output_data,omitempty"`
	ErrorMessage string                       `json:"error_message,omitempty"`
	StartedAt    *time.Time                   `json:"started_at,omitempty"`
	CompletedAt  *time.Time                   `json:"completed_at,omitempty"`
	CurrentNode  string                       `json:"current_node,omitempty"`
	Progress     float64                      `json:"progress"`
	NodeStatuses map[string]engine.NodeStatus `json:"node_statuses"`
}

// ExecutionManager owns the lifecycle of every workflow execution: submit,
// status, logs, stop, pause, resume. Executions run in a background
// goroutine each; the manager record is the source of truth for run state.
type ExecutionManager struct {
	mu      sync.RWMutex
	records map[string]*record

	engine *engine.Engine
	logger *logger.Logger
	redis  *redis.Client
	bff    *clients.BFFClient

	busCapacity int
	stopTimeout time.Duration
}

// ExecutionManagerOpts contains options for creating an execution manager.
// Redis and BFF are optional fan-out targets; nil disables them.
type ExecutionManagerOpts struct {
	Engine *engine.Engine
	Logger *logger.Logger
	Redis  *redis.Client
	BFF    *clients.BFFClient
}

// NewExecutionManager creates an execution manager
func NewExecutionManager(opts ExecutionManagerOpts) *ExecutionManager {
	return &ExecutionManager{
		records:     make(map[string]*record),
		engine:      opts.Engine,
		logger:      opts.Logger,
		redis:       opts.Redis,
		bff:         opts.BFF,
		busCapacity: 256,
		stopTimeout: 10 * time.Second,
	}
}

// Submit validates the definition shape, registers a pending execution and
// starts it in the background. A caller-supplied execution id is honored
// when unused; otherwise one is generated.
func (m *ExecutionManager) Submit(def *engine.Definition, executionID, workflowID string, inputData map[string]interface{}) (string, error) {
	if err := def.ValidateShape(); err != nil {
		return "", fmt.Errorf("invalid workflow definition: %w", err)
	}

	if executionID == "" {
		executionID = uuid.NewString()
	} else {
		m.mu.RLock()
		_, taken := m.records[executionID]
		m.mu.RUnlock()
		if taken {
			return "", fmt.Errorf("execution id already in use: %s", executionID)
		}
	}
	bus := events.NewBus(m.busCapacity, m.logger)
	ec := engine.NewContext(executionID, workflowID, inputData, bus, m.logger)
	ctrl := engine.NewControls()

	ctx, cancel := context.WithCancel(context.Background())

	rec := &record{
		executionID: executionID,
		workflowID:  workflowID,
		status:      engine.StatusPending,
		inputData:   ec.InputData(),
		nodeCount:   len(def.Nodes),
		ec:          ec,
		controls:    ctrl,
		bus:         bus,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	m.mu.Lock()
	m.records[executionID] = rec
	m.mu.Unlock()

	bus.Drain(m.observer(executionID))

	metrics.ExecutionsStarted.Inc()
	metrics.ActiveExecutions.Inc()

	m.logger.Info("execution submitted",
		"execution_id", executionID,
		"workflow_id", workflowID,
		"nodes", len(def.Nodes),
	)

	go m.run(ctx, def, rec)

	return executionID, nil
}

// run drives one execution to a terminal state
func (m *ExecutionManager) run(ctx context.Context, def *engine.Definition, rec *record) {
	defer close(rec.done)
	defer metrics.ActiveExecutions.Dec()
	defer rec.bus.Close()

	now := time.Now()
	m.mu.Lock()
	rec.status = engine.StatusRunning
	rec.startedAt = &now
	m.mu.Unlock()

	output, err := m.engine.Execute(ctx, def, rec.ec, rec.controls)

	completed := time.Now()
	m.mu.Lock()
	rec.completedAt = &completed
	rec.currentNode = ""
	switch {
	case errors.Is(err, engine.ErrStopped):
		rec.status = engine.StatusStopped
	case err != nil:
		rec.status = engine.StatusFailed
		rec.errMessage = err.Error()
	default:
		rec.status = engine.StatusCompleted
		rec.outputData = output
		rec.progress = 1
	}
	status := rec.status
	m.mu.Unlock()

	metrics.ExecutionsCompleted.WithLabelValues(string(status)).Inc()

	m.logger.Info("execution finished",
		"execution_id", rec.executionID,
		"status", status,
		"duration", completed.Sub(now).Seconds(),
	)
}

// observer builds the drain handler for one execution: it keeps the record's
// progress view current and fans events out to Redis and the BFF when
// those targets are configured.
func (m *ExecutionManager) observer(executionID string) events.Handler {
	channel := "workflow:events:" + executionID

	return func(event events.Event) {
		if event.Type == events.TypeNodeStatus {
			m.trackNodeProgress(executionID, event)
		}

		if m.redis != nil {
			payload, err := json.Marshal(event)
			if err == nil {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = m.redis.PublishEvent(ctx, channel, string(payload))
				cancel()
			}
		}

		if m.bff != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.bff.PostEvent(ctx, event); err != nil {
				m.logger.Warn("bff callback failed",
					"execution_id", executionID,
					"error", err,
				)
			}
			cancel()
		}
	}
}

// trackNodeProgress mirrors node status events into the record's
// current_node and progress fields
func (m *ExecutionManager) trackNodeProgress(executionID string, event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[executionID]
	if !ok {
		return
	}

	switch engine.NodeStatus(event.Status) {
	case engine.NodeRunning:
		rec.currentNode = event.NodeID
	case engine.NodeSuccess:
		if rec.nodeCount > 0 {
			completed := 0
			for _, s := range rec.ec.NodeStatuses() {
				if s == engine.NodeSuccess {
					completed++
				}
			}
			rec.progress = float64(completed) / float64(rec.nodeCount)
		}
	}
}

// GetStatus returns the execution's current status view
func (m *ExecutionManager) GetStatus(executionID string) (*StatusResponse, error) {
	m.mu.RLock()
	rec, ok := m.records[executionID]
	if !ok {
		m.mu.RUnlock()
		return nil, ErrExecutionNotFound
	}

	resp := &StatusResponse{
		ExecutionID:  rec.executionID,
		WorkflowID:   rec.workflowID,
		Status:       rec.status,
		InputData:    rec.inputData,
		OutputData:   rec.outputData,
		ErrorMessage: rec.errMessage,
		StartedAt:    rec.startedAt,
		CompletedAt:  rec.completedAt,
		CurrentNode:  rec.currentNode,
		Progress:     rec.progress,
	}
	ec := rec.ec
	m.mu.RUnlock()

	resp.NodeStatuses = ec.NodeStatuses()
	return resp, nil
}

// GetLogs returns the execution's log, optionally filtered by level and
// trimmed to the most recent limit entries
func (m *ExecutionManager) GetLogs(executionID, level string, limit int) ([]engine.LogEntry, error) {
	m.mu.RLock()
	rec, ok := m.records[executionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrExecutionNotFound
	}

	logs := rec.ec.Logs()

	if level != "" {
		filtered := logs[:0:0]
		for _, entry := range logs {
			if entry.Level == level {
				filtered = append(filtered, entry)
			}
		}
		logs = filtered
	}

	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}

	return logs, nil
}

// Summary returns node counts and timing for the execution
func (m *ExecutionManager) Summary(executionID string) (*engine.Summary, error) {
	m.mu.RLock()
	rec, ok := m.records[executionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrExecutionNotFound
	}

	s := rec.ec.Summary()
	return &s, nil
}

// Stop requests termination and waits for the run goroutine to exit.
// Stopping an already-terminal execution is a no-op.
func (m *ExecutionManager) Stop(executionID string) error {
	m.mu.Lock()
	rec, ok := m.records[executionID]
	if !ok {
		m.mu.Unlock()
		return ErrExecutionNotFound
	}

	if isTerminal(rec.status) {
		m.mu.Unlock()
		return nil
	}

	rec.controls.Stop()
	// A paused run is parked at a wave boundary; clearing pause lets it
	// observe the stop.
	rec.controls.Resume()
	rec.cancel()
	m.mu.Unlock()

	select {
	case <-rec.done:
	case <-time.After(m.stopTimeout):
		m.logger.Warn("timed out waiting for execution to stop",
			"execution_id", executionID,
		)
	}

	m.logger.Info("execution stopped", "execution_id", executionID)
	return nil
}

// Pause requests a pause at the next wave boundary. Only running
// executions can be paused.
func (m *ExecutionManager) Pause(executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[executionID]
	if !ok {
		return ErrExecutionNotFound
	}
	if rec.status != engine.StatusRunning {
		return fmt.Errorf("%w: cannot pause execution in status %s", ErrInvalidState, rec.status)
	}

	rec.controls.Pause()
	rec.status = engine.StatusPaused
	m.logger.Info("execution paused", "execution_id", executionID)
	return nil
}

// Resume releases a paused execution. Only paused executions can resume.
func (m *ExecutionManager) Resume(executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[executionID]
	if !ok {
		return ErrExecutionNotFound
	}
	if rec.status != engine.StatusPaused {
		return fmt.Errorf("%w: cannot resume execution in status %s", ErrInvalidState, rec.status)
	}

	rec.controls.Resume()
	rec.status = engine.StatusRunning
	m.logger.Info("execution resumed", "execution_id", executionID)
	return nil
}

// Wait blocks until the execution reaches a terminal state or the timeout
// elapses. Intended for tests and graceful shutdown.
func (m *ExecutionManager) Wait(executionID string, timeout time.Duration) bool {
	m.mu.RLock()
	rec, ok := m.records[executionID]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case <-rec.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ActiveCount returns the number of non-terminal executions
func (m *ExecutionManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.records {
		if !isTerminal(rec.status) {
			n++
		}
	}
	return n
}

// StopAll stops every non-terminal execution; used during shutdown
func (m *ExecutionManager) StopAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	for id, rec := range m.records {
		if !isTerminal(rec.status) {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Stop(id); err != nil {
			m.logger.Warn("failed to stop execution during shutdown",
				"execution_id", id,
				"error", err,
			)
		}
	}
}

func isTerminal(status engine.Status) bool {
	switch status {
	case engine.StatusCompleted, engine.StatusFailed, engine.StatusStopped:
		return true
	}
	return false
}
