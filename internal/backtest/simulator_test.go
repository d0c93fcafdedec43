package backtest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/pkg/logger"
)

func newSim() *Simulator {
	return NewSimulator(Config{InitialCapital: 1000, StopLoss: 0.05}, logger.Nop())
}

func TestAlwaysLongOnRisingPrices(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 104}
	preds := []int{1, 1, 1, 1, 1}

	res, err := newSim().Run(preds, nil, prices)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, SideBuy, res.Trades[0].Side)
	assert.True(t, res.OpenPosition)
	assert.Len(t, res.Equity, len(prices)+1)
	assert.Equal(t, 1000.0, res.Equity[1])
	assert.InDelta(t, 1040.0, res.FinalEquity(), 1e-9)
	assert.Empty(t, res.ClosedReturns())
}

func TestSignalExitAndFlatCarry(t *testing.T) {
	prices := []float64{100, 110, 120, 115, 90}
	preds := []int{1, 1, 0, 0, 0}

	res, err := newSim().Run(preds, []float64{0.9, 0.8, 0.3, 0.2, 0.1}, prices)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	sell := res.Trades[1]
	assert.Equal(t, SideSell, sell.Side)
	assert.Equal(t, 2, sell.Index)
	assert.InDelta(t, 0.2, sell.PnL, 1e-12)
	assert.Equal(t, ExitSignal, sell.Reason)
	assert.Equal(t, 0.3, sell.Confidence)

	assert.InDelta(t, 1200.0, res.Equity[3], 1e-9)
	assert.InDelta(t, 1200.0, res.Equity[5], 1e-9, "flat equity carries forward")
	assert.False(t, res.OpenPosition)
	assert.Equal(t, 1, res.BarsInMarket)
}

func TestStopLossExit(t *testing.T) {
	prices := []float64{100, 97, 95, 96}
	preds := []int{1, 1, 1, 1}

	res, err := newSim().Run(preds, nil, prices)
	require.NoError(t, err)

	require.Len(t, res.Trades, 3)
	assert.Equal(t, ExitStopLoss, res.Trades[1].Reason)
	assert.Equal(t, 2, res.Trades[1].Index)
	assert.InDelta(t, -0.05, res.Trades[1].PnL, 1e-12)
	assert.Equal(t, 1, res.StopLossExits)
	// 손절 다음 bar 에 재진입
	assert.Equal(t, SideBuy, res.Trades[2].Side)
	assert.Equal(t, 3, res.Trades[2].Index)
}

func TestNeverTwoConsecutiveBuys(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 500
	prices := make([]float64, n)
	preds := make([]int, n)
	p := 100.0
	for i := range prices {
		p *= 1 + rng.NormFloat64()*0.02
		prices[i] = p
		preds[i] = rng.Intn(2)
	}

	res, err := newSim().Run(preds, nil, prices)
	require.NoError(t, err)
	assert.Len(t, res.Equity, n+1)

	for i := 1; i < len(res.Trades); i++ {
		assert.NotEqual(t, res.Trades[i-1].Side, res.Trades[i].Side, "trade %d", i)
	}
	if len(res.Trades) > 0 {
		assert.Equal(t, SideBuy, res.Trades[0].Side)
	}
}

func TestDeterministic(t *testing.T) {
	prices := []float64{10, 11, 9, 12, 13, 12, 8}
	preds := []int{1, 0, 1, 1, 0, 1, 1}

	a, err := newSim().Run(preds, nil, prices)
	require.NoError(t, err)
	b, err := newSim().Run(preds, nil, prices)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunValidatesInput(t *testing.T) {
	_, err := newSim().Run([]int{1}, nil, []float64{1, 2})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = newSim().Run([]int{1, 0}, []float64{0.5}, []float64{1, 2})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = newSim().Run([]int{1}, nil, []float64{0})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	bad := NewSimulator(Config{InitialCapital: 0, StopLoss: 0.05}, logger.Nop())
	_, err = bad.Run([]int{1}, nil, []float64{1})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
}

func TestEmptySeries(t *testing.T) {
	res, err := newSim().Run(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1000}, res.Equity)
	assert.Empty(t, res.BarReturns())
}
