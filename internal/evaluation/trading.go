package evaluation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/modelcmp/internal/backtest"
	"github.com/wonny/modelcmp/internal/contracts"
)

const tradingDaysPerYear = 252

// TradingReport holds the trading metrics of one simulation
type TradingReport struct {
	TotalReturn   float64                `json:"total_return"`
	SharpeRatio   float64                `json:"sharpe_ratio"`
	SortinoRatio  float64                `json:"sortino_ratio"`
	MaxDrawdown   float64                `json:"max_drawdown"`
	Volatility    float64                `json:"volatility"`
	WinRate       float64                `json:"win_rate"`
	ProfitFactor  contracts.ProfitFactor `json:"profit_factor"`
	AvgWin        float64                `json:"avg_win"`
	AvgLoss       float64                `json:"avg_loss"`
	ClosedTrades  int                    `json:"closed_trades"`
	WinningTrades int                    `json:"winning_trades"`
	LosingTrades  int                    `json:"losing_trades"`
	OpenPosition  bool                   `json:"open_position"`
	Exposure      float64                `json:"exposure"`
	FinalEquity   float64                `json:"final_equity"`
}

// Trading computes trading metrics from a simulation result.
// Trade statistics use SELL-closed trades only. Sharpe and Sortino use closed
// trade returns when at least two trades closed, otherwise bar-by-bar equity
// returns; both are annualized by √252 and are 0 on a degenerate series.
func Trading(res *backtest.Result) TradingReport {
	report := TradingReport{
		FinalEquity:  res.FinalEquity(),
		OpenPosition: res.OpenPosition,
		TotalReturn:  (res.FinalEquity() - res.InitialCapital) / res.InitialCapital,
		MaxDrawdown:  MaxDrawdown(res.Equity),
	}

	bars := res.BarReturns()
	if len(bars) > 0 {
		report.Exposure = float64(res.BarsInMarket) / float64(len(bars))
	}
	_, barStd := meanStdDev(bars)
	report.Volatility = barStd * math.Sqrt(tradingDaysPerYear)

	closed := res.ClosedReturns()
	report.ClosedTrades = len(closed)

	var grossProfit, grossLoss float64
	for _, r := range closed {
		switch {
		case r > 0:
			report.WinningTrades++
			grossProfit += r
		case r < 0:
			report.LosingTrades++
			grossLoss -= r
		}
	}

	if report.ClosedTrades > 0 {
		report.WinRate = float64(report.WinningTrades) / float64(report.ClosedTrades)
		report.ProfitFactor = ProfitFactor(grossProfit, grossLoss)
	}
	if report.WinningTrades > 0 {
		report.AvgWin = grossProfit / float64(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AvgLoss = -grossLoss / float64(report.LosingTrades)
	}

	series := bars
	if len(closed) >= 2 {
		series = closed
	}
	report.SharpeRatio = Sharpe(series)
	report.SortinoRatio = Sortino(series)

	return report
}

// ProfitFactor returns gross profit / gross loss with sentinels:
// loss 0 and profit > 0 is +∞, both 0 is undefined
func ProfitFactor(grossProfit, grossLoss float64) contracts.ProfitFactor {
	switch {
	case grossLoss == 0 && grossProfit > 0:
		return contracts.ProfitFactor{State: contracts.ProfitFactorInfinite}
	case grossLoss == 0:
		return contracts.ProfitFactor{State: contracts.ProfitFactorUndefined}
	default:
		return contracts.ProfitFactor{Value: grossProfit / grossLoss}
	}
}

// Sharpe returns mean/std × √252 (0 for fewer than 2 points or zero std)
func Sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m, std := meanStdDev(returns)
	if std < 1e-12 {
		return 0
	}
	return m / std * math.Sqrt(tradingDaysPerYear)
}

// Sortino returns mean/downside deviation × √252 (0 without negative returns)
func Sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	sumSquaredNegative := 0.0
	countNegative := 0
	for _, r := range returns {
		if r < 0 {
			sumSquaredNegative += r * r
			countNegative++
		}
	}
	if countNegative == 0 {
		return 0
	}

	downside := math.Sqrt(sumSquaredNegative / float64(countNegative))
	if downside < 1e-12 {
		return 0
	}
	return stat.Mean(returns, nil) / downside * math.Sqrt(tradingDaysPerYear)
}

// MaxDrawdown returns the largest (running_peak - value) / running_peak
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := equity[0]
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// meanStdDev returns the mean and population standard deviation (0, 0 when empty)
func meanStdDev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	m, variance := stat.PopMeanVariance(xs, nil)
	return m, math.Sqrt(variance)
}
