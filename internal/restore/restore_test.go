package restore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"backboard/internal/domain"
	"backboard/internal/run"
	"backboard/internal/share"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingRunner remembers every config it executes, keyed by data provider.
type recordingRunner struct {
	mu    sync.Mutex
	seen  []domain.BacktestConfig
	block chan struct{} // closed releases all runs; nil runs complete at once
}

func (r *recordingRunner) Run(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
	r.mu.Lock()
	r.seen = append(r.seen, cfg)
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	return &domain.RunResult{Issues: []string{}}, nil
}

func (r *recordingRunner) configs() []domain.BacktestConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.BacktestConfig(nil), r.seen...)
}

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

func configFor(provider string) domain.BacktestConfig {
	return domain.BacktestConfig{
		StartDate:    "2020-01-01",
		EndDate:      "2021-01-01",
		InitialCash:  50000,
		Positions:    []domain.Position{{Ticker: "VTI", Weight: 1.0}},
		Rebalance:    "monthly",
		DataProvider: provider,
	}
}

func TestRestoreSingle(t *testing.T) {
	runner := &recordingRunner{}
	coord := run.NewCoordinator(runner, testLogger())
	r := NewRestorer(coord, 0, testLogger())

	token, err := share.Encode(domain.SingleState(configFor("single-run")))
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	state := r.RestoreToken(context.Background(), token)
	if state == nil {
		t.Fatal("RestoreToken() returned nil for a valid token")
	}
	if state.Mode != domain.ModeSingle {
		t.Errorf("restored mode = %q, want single", state.Mode)
	}

	waitFor(t, "slot A to run", func() bool { return len(runner.configs()) == 1 })
	if got := runner.configs()[0].DataProvider; got != "single-run" {
		t.Errorf("executed provider = %q, want single-run", got)
	}
	if coord.Mode() != domain.ModeSingle {
		t.Errorf("mode = %q, want single", coord.Mode())
	}
}

func TestRestoreCompareBootstrap(t *testing.T) {
	// Both slots fire concurrently and the mode flips to compare immediately,
	// before either run resolves.
	runner := &recordingRunner{block: make(chan struct{})}
	coord := run.NewCoordinator(runner, testLogger())
	r := NewRestorer(coord, 0, testLogger())

	a := configFor("provider-a")
	b := configFor("provider-b")
	b.Positions = []domain.Position{
		{Ticker: "QQQ", Weight: 0.5},
		{Ticker: "BND", Weight: 0.5},
	}

	token, err := share.Encode(domain.CompareState(a, b))
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	state := r.RestoreToken(context.Background(), token)
	if state == nil {
		t.Fatal("RestoreToken() returned nil for a valid compare token")
	}

	// Mode is compare while both runs are still in flight.
	if coord.Mode() != domain.ModeCompare {
		t.Errorf("mode = %q immediately after restore, want compare", coord.Mode())
	}

	waitFor(t, "both slots to be invoked", func() bool { return len(runner.configs()) == 2 })

	providers := map[string]bool{}
	for _, cfg := range runner.configs() {
		providers[cfg.DataProvider] = true
	}
	if !providers["provider-a"] || !providers["provider-b"] {
		t.Errorf("executed providers = %v, want both a and b", providers)
	}

	// Restored configs arrive with sanitized position order.
	for _, cfg := range runner.configs() {
		if cfg.DataProvider == "provider-b" {
			if cfg.Positions[0].Ticker != "BND" || cfg.Positions[1].Ticker != "QQQ" {
				t.Errorf("config B positions = %v, want sorted [BND QQQ]", cfg.Positions)
			}
		}
	}

	close(runner.block)
	waitFor(t, "both runs to finish", func() bool {
		return coord.Slot(run.SlotA).Status == run.StatusSucceeded &&
			coord.Slot(run.SlotB).Status == run.StatusSucceeded
	})
}

func TestRestoreGarbageIsColdStart(t *testing.T) {
	runner := &recordingRunner{}
	coord := run.NewCoordinator(runner, testLogger())
	r := NewRestorer(coord, 0, testLogger())

	tests := []string{"", "garbage!!!", "b64_***", "lz_corrupt"}
	for _, token := range tests {
		if state := r.RestoreToken(context.Background(), token); state != nil {
			t.Errorf("RestoreToken(%q) = %+v, want nil", token, state)
		}
	}

	time.Sleep(20 * time.Millisecond)
	if len(runner.configs()) != 0 {
		t.Errorf("garbage tokens triggered %d runs, want 0", len(runner.configs()))
	}
	if coord.Mode() != domain.ModeSingle {
		t.Errorf("mode = %q after cold start, want single", coord.Mode())
	}
}

func TestRestoreURL(t *testing.T) {
	runner := &recordingRunner{}
	coord := run.NewCoordinator(runner, testLogger())
	r := NewRestorer(coord, 0, testLogger())

	loc, err := share.ParseLocation("https://dash.example.com/backtest")
	if err != nil {
		t.Fatalf("ParseLocation() error: %v", err)
	}
	link, err := share.BuildLink(loc, domain.SingleState(configFor("via-url")))
	if err != nil {
		t.Fatalf("BuildLink() error: %v", err)
	}

	if state := r.RestoreURL(context.Background(), link); state == nil {
		t.Fatal("RestoreURL() returned nil for a valid share link")
	}
	waitFor(t, "run to fire", func() bool { return len(runner.configs()) == 1 })

	// A URL with no token is a cold start.
	if state := r.RestoreURL(context.Background(), "https://dash.example.com/backtest"); state != nil {
		t.Errorf("RestoreURL() = %+v for tokenless URL, want nil", state)
	}
}

func TestRestoreHonoursDelay(t *testing.T) {
	runner := &recordingRunner{}
	coord := run.NewCoordinator(runner, testLogger())
	r := NewRestorer(coord, 30*time.Millisecond, testLogger())

	token, err := share.Encode(domain.SingleState(configFor("delayed")))
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	r.RestoreToken(context.Background(), token)
	if len(runner.configs()) != 0 {
		t.Error("run fired before the settle delay elapsed")
	}
	waitFor(t, "delayed run to fire", func() bool { return len(runner.configs()) == 1 })
}
