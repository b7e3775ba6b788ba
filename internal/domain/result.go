package domain

// SeriesPoint is one observation in a dated time series. A nil Value means
// the engine reported no value for that date; it is never coerced to zero.
type SeriesPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Series is a time series of points ordered by date ascending.
type Series []SeriesPoint

// PortfolioMetrics is the fixed set of scalar performance metrics computed
// for every run.
type PortfolioMetrics struct {
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// RelativeMetrics compares the portfolio against its benchmark. Present only
// when a benchmark ticker was configured and the engine returned them.
type RelativeMetrics struct {
	ExcessReturn     float64 `json:"excess_return"`
	TrackingError    float64 `json:"tracking_error"`
	InformationRatio float64 `json:"information_ratio"`
}

// RollingMetrics bundles the trailing-window statistics. Each series carries
// leading nil values until the window fills.
type RollingMetrics struct {
	WindowDays  int    `json:"window_days"`
	Volatility  Series `json:"rolling_volatility"`
	Sharpe      Series `json:"rolling_sharpe"`
	MaxDrawdown Series `json:"rolling_max_drawdown"`
	CAGR        Series `json:"rolling_cagr"`
}

// RunResult is the chart- and table-ready form of one successful engine
// response. It is created fresh on every completed run and discarded when a
// new run starts for the same slot.
type RunResult struct {
	NAV          Series           `json:"nav"`
	Equity       Series           `json:"equity"`
	Cash         Series           `json:"cash"`
	BenchmarkNAV Series           `json:"benchmark_nav,omitempty"`
	Metrics      PortfolioMetrics `json:"portfolio_metrics"`
	Relative     *RelativeMetrics `json:"relative_metrics,omitempty"`
	Rolling      *RollingMetrics  `json:"rolling_metrics,omitempty"`
	Issues       []string         `json:"issues"`
}
