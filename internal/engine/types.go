package engine

import (
	"fmt"

	"backboard/internal/domain"
)

// seriesWire is the engine's parallel-array form of a time series.
type seriesWire struct {
	Dates  []string   `json:"dates"`
	Values []*float64 `json:"values"`
}

// pointWire is the engine's already-zipped form used by rolling metrics.
type pointWire struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// backtestResponse is the engine's raw reply to POST /api/v1/backtest.
type backtestResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Series  struct {
		NAV          seriesWire  `json:"nav"`
		Equity       seriesWire  `json:"equity"`
		Cash         seriesWire  `json:"cash"`
		BenchmarkNAV *seriesWire `json:"benchmark_nav"`
	} `json:"series"`
	PortfolioMetrics domain.PortfolioMetrics `json:"portfolio_metrics"`
	RelativeMetrics  *domain.RelativeMetrics `json:"relative_metrics"`
	RollingMetrics   *struct {
		WindowDays int `json:"window_days"`
		Series     struct {
			Volatility  []pointWire `json:"rolling_volatility"`
			Sharpe      []pointWire `json:"rolling_sharpe"`
			MaxDrawdown []pointWire `json:"rolling_max_drawdown"`
			CAGR        []pointWire `json:"rolling_cagr"`
		} `json:"series"`
	} `json:"rolling_metrics"`
	Issues []string `json:"issues"`
}

// errorMessage returns the most specific human-readable failure reason the
// engine provided. FastAPI-style backends report validation failures under
// "detail".
func (r *backtestResponse) errorMessage() string {
	if r.Error != "" {
		return r.Error
	}
	if r.Detail != "" {
		return r.Detail
	}
	return "engine reported failure without a message"
}

// toResult reshapes the wire response into a domain.RunResult.
func (r *backtestResponse) toResult() (*domain.RunResult, error) {
	nav, err := zipSeries("nav", r.Series.NAV)
	if err != nil {
		return nil, err
	}
	equity, err := zipSeries("equity", r.Series.Equity)
	if err != nil {
		return nil, err
	}
	cash, err := zipSeries("cash", r.Series.Cash)
	if err != nil {
		return nil, err
	}

	result := &domain.RunResult{
		NAV:     nav,
		Equity:  equity,
		Cash:    cash,
		Metrics: r.PortfolioMetrics,
		Issues:  r.Issues,
	}
	if result.Issues == nil {
		result.Issues = []string{}
	}

	if r.Series.BenchmarkNAV != nil {
		bench, err := zipSeries("benchmark_nav", *r.Series.BenchmarkNAV)
		if err != nil {
			return nil, err
		}
		result.BenchmarkNAV = bench
	}

	result.Relative = r.RelativeMetrics

	if rm := r.RollingMetrics; rm != nil {
		result.Rolling = &domain.RollingMetrics{
			WindowDays:  rm.WindowDays,
			Volatility:  pointsToSeries(rm.Series.Volatility),
			Sharpe:      pointsToSeries(rm.Series.Sharpe),
			MaxDrawdown: pointsToSeries(rm.Series.MaxDrawdown),
			CAGR:        pointsToSeries(rm.Series.CAGR),
		}
	}

	return result, nil
}

// zipSeries pairs the engine's parallel dates/values arrays into points.
// Missing values stay nil; they are never coerced to zero.
func zipSeries(name string, w seriesWire) (domain.Series, error) {
	if len(w.Dates) != len(w.Values) {
		return nil, fmt.Errorf("series %s: %d dates but %d values", name, len(w.Dates), len(w.Values))
	}
	out := make(domain.Series, len(w.Dates))
	for i := range w.Dates {
		out[i] = domain.SeriesPoint{Date: w.Dates[i], Value: w.Values[i]}
	}
	return out, nil
}

func pointsToSeries(points []pointWire) domain.Series {
	out := make(domain.Series, len(points))
	for i, p := range points {
		out[i] = domain.SeriesPoint{Date: p.Date, Value: p.Value}
	}
	return out
}
