package evaluation

import (
	"github.com/wonny/modelcmp/internal/backtest"
	"github.com/wonny/modelcmp/internal/contracts"
)

// Evaluate fills the classification and trading fields of a ModelMetrics.
// Identity, params and timings are left for the caller.
// ⭐ SSOT: 지표 계산은 여기서만
func Evaluate(yTrue, yPred []int, proba [][]float64, bt *backtest.Result) (contracts.ModelMetrics, error) {
	cls, err := Classification(yTrue, yPred, proba)
	if err != nil {
		return contracts.ModelMetrics{}, err
	}
	tr := Trading(bt)

	return contracts.ModelMetrics{
		Accuracy:  cls.Accuracy,
		Precision: cls.Precision,
		Recall:    cls.Recall,
		F1:        cls.F1,
		ROCAUC:    cls.ROCAUC,
		HasROCAUC: cls.HasROCAUC,

		TotalReturn:   tr.TotalReturn,
		SharpeRatio:   tr.SharpeRatio,
		SortinoRatio:  tr.SortinoRatio,
		MaxDrawdown:   tr.MaxDrawdown,
		Volatility:    tr.Volatility,
		WinRate:       tr.WinRate,
		ProfitFactor:  tr.ProfitFactor,
		AvgWin:        tr.AvgWin,
		AvgLoss:       tr.AvgLoss,
		ClosedTrades:  tr.ClosedTrades,
		WinningTrades: tr.WinningTrades,
		LosingTrades:  tr.LosingTrades,
		OpenPosition:  tr.OpenPosition,
		Exposure:      tr.Exposure,
		FinalEquity:   tr.FinalEquity,
	}, nil
}
