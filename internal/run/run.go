// Package run owns the asynchronous lifecycle of backtest executions: one
// orchestrator per slot, plus the coordinator that pairs two slots into the
// side-by-side comparison view and publishes lifecycle events.
package run

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"backboard/internal/domain"
	"backboard/internal/engine"
)

// Status is the lifecycle state of one orchestrator.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Snapshot is a point-in-time copy of one orchestrator's state. Exactly one
// of Result and Err is meaningful outside the running state.
type Snapshot struct {
	Status Status            `json:"status"`
	RunID  string            `json:"runId,omitempty"`
	Result *domain.RunResult `json:"result,omitempty"`
	Err    string            `json:"error,omitempty"`
}

// Orchestrator drives one backtest execution at a time through
// idle → running → succeeded|failed, re-runnable from either terminal state.
// Starting a new execution while one is in flight supersedes it: each Start
// bumps a generation counter, and a response whose generation no longer
// matches the latest issued one is discarded when it resolves. Failed runs
// stay failed until the caller starts again; there is no automatic retry.
type Orchestrator struct {
	runner   engine.Runner
	log      *slog.Logger
	onChange func(Snapshot)

	mu     sync.Mutex
	gen    uint64
	status Status
	runID  string
	result *domain.RunResult
	errMsg string
}

// NewOrchestrator creates an idle orchestrator. onChange, when non-nil, is
// invoked after every state transition with a snapshot; it is always called
// without internal locks held.
func NewOrchestrator(runner engine.Runner, log *slog.Logger, onChange func(Snapshot)) *Orchestrator {
	return &Orchestrator{
		runner:   runner,
		log:      log,
		onChange: onChange,
		status:   StatusIdle,
	}
}

// Start begins a new execution and returns immediately; progress is observed
// through Snapshot and change notifications. Any previously stored result is
// discarded the moment the new run starts.
func (o *Orchestrator) Start(ctx context.Context, cfg domain.BacktestConfig) {
	o.mu.Lock()
	o.gen++
	gen := o.gen
	o.runID = uuid.NewString()
	runID := o.runID
	o.status = StatusRunning
	o.result = nil
	o.errMsg = ""
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.log.Info("run started", "runID", runID)
	o.notify(snap)

	go o.execute(ctx, gen, runID, cfg)
}

func (o *Orchestrator) execute(ctx context.Context, gen uint64, runID string, cfg domain.BacktestConfig) {
	result, err := o.runner.Run(ctx, cfg)

	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		o.log.Debug("discarding superseded run response", "runID", runID)
		return
	}
	if err != nil {
		o.status = StatusFailed
		o.errMsg = err.Error()
		o.result = nil
	} else {
		o.status = StatusSucceeded
		o.result = result
		o.errMsg = ""
	}
	snap := o.snapshotLocked()
	o.mu.Unlock()

	if err != nil {
		o.log.Warn("run failed", "runID", runID, "error", err)
	} else {
		o.log.Info("run succeeded", "runID", runID)
	}
	o.notify(snap)
}

// Clear returns the orchestrator to idle, discarding any stored result or
// error. An in-flight execution is invalidated; its response will be dropped
// on arrival.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	o.gen++
	o.status = StatusIdle
	o.runID = ""
	o.result = nil
	o.errMsg = ""
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.notify(snap)
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		Status: o.status,
		RunID:  o.runID,
		Result: o.result,
		Err:    o.errMsg,
	}
}

func (o *Orchestrator) notify(snap Snapshot) {
	if o.onChange != nil {
		o.onChange(snap)
	}
}
