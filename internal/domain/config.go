// Package domain defines the core value objects of the backboard platform:
// backtest configurations, shareable dashboard state, and transformed run
// results.
package domain

import (
	"sort"
	"strings"
)

// Position is one portfolio holding in a backtest configuration.
type Position struct {
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
}

// BacktestConfig is the full set of inputs for one backtest execution. It is
// a value object: every form edit produces a new instance, and the engine
// receives these fields verbatim.
//
// Field order matters for encoding: the JSON produced from this struct is the
// canonical text the state codec compresses, so the declaration order below
// is the canonical field order.
type BacktestConfig struct {
	StartDate           string     `json:"start_date"`
	EndDate             string     `json:"end_date"`
	InitialCash         float64    `json:"initial_cash"`
	Positions           []Position `json:"positions"`
	RiskFreeRate        float64    `json:"risk_free_rate"`
	BenchmarkTicker     string     `json:"benchmark_ticker,omitempty"`
	Rebalance           string     `json:"rebalance"`
	FractionalShares    bool       `json:"fractional_shares"`
	RiskFreeCompounding string     `json:"risk_free_compounding"`
	DataProvider        string     `json:"data_provider"`
}

// Sanitize returns a canonical copy of cfg: positions with empty or
// whitespace-only tickers are dropped and the remaining positions are sorted
// by ticker (case-sensitive, ascending). An empty benchmark ticker is
// omitted from the encoded form (omitempty), so "" and unset encode
// identically.
//
// Duplicate tickers are preserved as-is; merging them is the caller's
// decision, not ours. Numeric fields are copied unchanged even when
// malformed; validation happens elsewhere. Sanitize is pure and idempotent.
func Sanitize(cfg BacktestConfig) BacktestConfig {
	out := BacktestConfig{
		StartDate:           cfg.StartDate,
		EndDate:             cfg.EndDate,
		InitialCash:         cfg.InitialCash,
		RiskFreeRate:        cfg.RiskFreeRate,
		BenchmarkTicker:     cfg.BenchmarkTicker,
		Rebalance:           cfg.Rebalance,
		FractionalShares:    cfg.FractionalShares,
		RiskFreeCompounding: cfg.RiskFreeCompounding,
		DataProvider:        cfg.DataProvider,
	}

	positions := make([]Position, 0, len(cfg.Positions))
	for _, p := range cfg.Positions {
		if strings.TrimSpace(p.Ticker) == "" {
			continue
		}
		positions = append(positions, p)
	}
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].Ticker < positions[j].Ticker
	})
	out.Positions = positions

	return out
}
