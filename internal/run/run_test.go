package run

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"backboard/internal/domain"
)

// runnerFunc adapts a function to the engine.Runner interface.
type runnerFunc func(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error)

func (f runnerFunc) Run(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
	return f(ctx, cfg)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func resultWithIssue(issue string) *domain.RunResult {
	return &domain.RunResult{Issues: []string{issue}}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestOrchestratorLifecycle(t *testing.T) {
	release := make(chan struct{})
	o := NewOrchestrator(runnerFunc(func(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
		<-release
		return resultWithIssue("done"), nil
	}), testLogger(), nil)

	if got := o.Snapshot(); got.Status != StatusIdle {
		t.Fatalf("initial status = %q, want idle", got.Status)
	}

	o.Start(context.Background(), domain.BacktestConfig{})

	snap := o.Snapshot()
	if snap.Status != StatusRunning {
		t.Fatalf("status after Start = %q, want running", snap.Status)
	}
	if snap.RunID == "" {
		t.Error("running snapshot has no run ID")
	}
	if snap.Result != nil {
		t.Error("running snapshot still holds a prior result")
	}

	close(release)
	waitFor(t, "run to succeed", func() bool { return o.Snapshot().Status == StatusSucceeded })

	snap = o.Snapshot()
	if snap.Result == nil || snap.Result.Issues[0] != "done" {
		t.Errorf("succeeded snapshot result = %+v", snap.Result)
	}
	if snap.Err != "" {
		t.Errorf("succeeded snapshot carries error %q", snap.Err)
	}
}

func TestOrchestratorFailure(t *testing.T) {
	o := NewOrchestrator(runnerFunc(func(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
		return nil, errors.New("engine unreachable")
	}), testLogger(), nil)

	o.Start(context.Background(), domain.BacktestConfig{})
	waitFor(t, "run to fail", func() bool { return o.Snapshot().Status == StatusFailed })

	snap := o.Snapshot()
	if snap.Err != "engine unreachable" {
		t.Errorf("Err = %q, want engine unreachable", snap.Err)
	}
	if snap.Result != nil {
		t.Errorf("failed snapshot holds result %+v", snap.Result)
	}
}

func TestOrchestratorRerunAfterFailure(t *testing.T) {
	var calls atomic.Int32
	o := NewOrchestrator(runnerFunc(func(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return resultWithIssue("second attempt"), nil
	}), testLogger(), nil)

	o.Start(context.Background(), domain.BacktestConfig{})
	waitFor(t, "first run to fail", func() bool { return o.Snapshot().Status == StatusFailed })

	// Manual retry by the caller; the orchestrator itself never retries.
	o.Start(context.Background(), domain.BacktestConfig{})
	waitFor(t, "retry to succeed", func() bool { return o.Snapshot().Status == StatusSucceeded })

	if snap := o.Snapshot(); snap.Err != "" {
		t.Errorf("Err = %q after successful retry, want empty", snap.Err)
	}
}

func TestOrchestratorLatestWins(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	var calls atomic.Int32

	o := NewOrchestrator(runnerFunc(func(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
		if calls.Add(1) == 1 {
			close(firstStarted)
			<-releaseFirst
			return resultWithIssue("stale"), nil
		}
		return resultWithIssue("latest"), nil
	}), testLogger(), nil)

	o.Start(context.Background(), domain.BacktestConfig{})
	<-firstStarted

	// Supersede the in-flight run.
	o.Start(context.Background(), domain.BacktestConfig{})
	waitFor(t, "second run to succeed", func() bool { return o.Snapshot().Status == StatusSucceeded })

	// Let the superseded response arrive; it must be discarded.
	close(releaseFirst)
	time.Sleep(50 * time.Millisecond)

	snap := o.Snapshot()
	if snap.Status != StatusSucceeded || snap.Result == nil || snap.Result.Issues[0] != "latest" {
		t.Errorf("snapshot after stale arrival = %+v, want latest result retained", snap)
	}
}

func TestOrchestratorClear(t *testing.T) {
	o := NewOrchestrator(runnerFunc(func(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
		return resultWithIssue("ok"), nil
	}), testLogger(), nil)

	o.Start(context.Background(), domain.BacktestConfig{})
	waitFor(t, "run to succeed", func() bool { return o.Snapshot().Status == StatusSucceeded })

	o.Clear()
	snap := o.Snapshot()
	if snap.Status != StatusIdle || snap.Result != nil || snap.Err != "" || snap.RunID != "" {
		t.Errorf("snapshot after Clear = %+v, want pristine idle", snap)
	}
}

func TestClearInvalidatesInflightRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	o := NewOrchestrator(runnerFunc(func(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
		close(started)
		<-release
		return resultWithIssue("late"), nil
	}), testLogger(), nil)

	o.Start(context.Background(), domain.BacktestConfig{})
	<-started
	o.Clear()

	close(release)
	time.Sleep(50 * time.Millisecond)

	if snap := o.Snapshot(); snap.Status != StatusIdle || snap.Result != nil {
		t.Errorf("snapshot = %+v, want idle after Clear despite late response", snap)
	}
}

func TestOrchestratorNotifiesOnChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []Status

	record := func(s Snapshot) {
		mu.Lock()
		transitions = append(transitions, s.Status)
		mu.Unlock()
	}

	o := NewOrchestrator(runnerFunc(func(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
		return resultWithIssue("ok"), nil
	}), testLogger(), record)

	o.Start(context.Background(), domain.BacktestConfig{})
	waitFor(t, "run to succeed", func() bool { return o.Snapshot().Status == StatusSucceeded })

	mu.Lock()
	got := append([]Status(nil), transitions...)
	mu.Unlock()

	if len(got) < 2 || got[0] != StatusRunning || got[len(got)-1] != StatusSucceeded {
		t.Errorf("transitions = %v, want running then succeeded", got)
	}
}
