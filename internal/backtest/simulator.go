package backtest

import (
	"fmt"
	"math"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/pkg/logger"
)

// Side is the direction of a trade record
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ExitReason explains why a LONG position was closed
type ExitReason string

const (
	ExitSignal   ExitReason = "signal"
	ExitStopLoss ExitReason = "stop_loss"
)

// PositionState is the simulator state
type PositionState string

const (
	StateFlat PositionState = "FLAT"
	StateLong PositionState = "LONG"
)

// TradeRecord is one BUY or SELL produced by the simulator
type TradeRecord struct {
	Side       Side       `json:"side"`
	Index      int        `json:"index"` // 테스트 구간 내 bar 위치
	Price      float64    `json:"price"`
	PnL        float64    `json:"pnl,omitempty"`        // SELL 만: (exit-entry)/entry
	Confidence float64    `json:"confidence,omitempty"` // 모델 확률 (있을 때)
	Reason     ExitReason `json:"reason,omitempty"`     // SELL 만
}

// Config holds simulator parameters
type Config struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"` // 기본 10,000,000
	StopLoss       float64 `yaml:"stop_loss" json:"stop_loss"`             // 손절 비율, 기본 0.05, [0,1)
}

// DefaultConfig returns 10M initial capital and a 5% stop loss
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10_000_000,
		StopLoss:       0.05,
	}
}

// Validate checks simulator parameters
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be > 0", contracts.ErrInvalidInput)
	}
	if c.StopLoss < 0 || c.StopLoss >= 1 {
		return fmt.Errorf("%w: stop_loss must be in [0,1)", contracts.ErrInvalidInput)
	}
	return nil
}

// Result is the trade list and equity curve of one simulation
type Result struct {
	InitialCapital float64       `json:"initial_capital"`
	Trades         []TradeRecord `json:"trades"`
	Equity         []float64     `json:"equity"` // len = bars + 1
	BarsInMarket   int           `json:"bars_in_market"`
	OpenPosition   bool          `json:"open_position"`
	StopLossExits  int           `json:"stop_loss_exits"`
}

// FinalEquity returns the last equity value
func (r *Result) FinalEquity() float64 {
	return r.Equity[len(r.Equity)-1]
}

// ClosedReturns returns the pnl of every SELL in order
func (r *Result) ClosedReturns() []float64 {
	var out []float64
	for _, t := range r.Trades {
		if t.Side == SideSell {
			out = append(out, t.PnL)
		}
	}
	return out
}

// BarReturns returns bar-over-bar equity returns
func (r *Result) BarReturns() []float64 {
	out := make([]float64, 0, len(r.Equity)-1)
	for i := 1; i < len(r.Equity); i++ {
		out = append(out, r.Equity[i]/r.Equity[i-1]-1)
	}
	return out
}

// Simulator replays model signals over a price series
// ⭐ SSOT: 백테스팅 시뮬레이션은 여기서만
type Simulator struct {
	config Config
	logger *logger.Logger
}

// NewSimulator creates a new trading simulator
func NewSimulator(config Config, log *logger.Logger) *Simulator {
	return &Simulator{
		config: config,
		logger: log.Component("backtest"),
	}
}

// Config returns the simulator parameters
func (s *Simulator) Config() Config {
	return s.config
}

// Run evaluates the FLAT/LONG state machine bar by bar.
//
//	FLAT → LONG  predicted label 1 (BUY at the bar's price)
//	LONG → FLAT  predicted label 0, or price <= entry × (1 - stop loss) (SELL)
//
// While LONG equity is the entry equity × price/entry; while FLAT it carries forward.
// A position still open at the end is not closed. confidences may be nil.
func (s *Simulator) Run(predictions []int, confidences, prices []float64) (*Result, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if len(predictions) != len(prices) {
		return nil, fmt.Errorf("%w: %d predictions for %d prices", contracts.ErrInvalidInput, len(predictions), len(prices))
	}
	if confidences != nil && len(confidences) != len(prices) {
		return nil, fmt.Errorf("%w: %d confidences for %d prices", contracts.ErrInvalidInput, len(confidences), len(prices))
	}
	for i, p := range prices {
		if !(p > 0) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: price %v at bar %d", contracts.ErrInvalidInput, p, i)
		}
	}

	result := &Result{
		InitialCapital: s.config.InitialCapital,
		Equity:         make([]float64, len(prices)+1),
	}
	result.Equity[0] = s.config.InitialCapital

	state := StateFlat
	var entryPrice, entryEquity float64

	for t, price := range prices {
		confidence := 0.0
		if confidences != nil {
			confidence = confidences[t]
		}

		switch state {
		case StateFlat:
			if predictions[t] == 1 {
				state = StateLong
				entryPrice = price
				entryEquity = result.Equity[t]
				result.Trades = append(result.Trades, TradeRecord{
					Side:       SideBuy,
					Index:      t,
					Price:      price,
					Confidence: confidence,
				})
			}

		case StateLong:
			stopped := price <= entryPrice*(1-s.config.StopLoss)
			if predictions[t] != 1 || stopped {
				reason := ExitSignal
				if stopped {
					reason = ExitStopLoss
					result.StopLossExits++
				}
				result.Trades = append(result.Trades, TradeRecord{
					Side:       SideSell,
					Index:      t,
					Price:      price,
					PnL:        (price - entryPrice) / entryPrice,
					Confidence: confidence,
					Reason:     reason,
				})
				result.Equity[t+1] = entryEquity * price / entryPrice
				state = StateFlat
				continue
			}
		}

		if state == StateLong {
			result.Equity[t+1] = entryEquity * price / entryPrice
			result.BarsInMarket++
		} else {
			result.Equity[t+1] = result.Equity[t]
		}
	}

	result.OpenPosition = state == StateLong

	s.logger.WithFields(map[string]interface{}{
		"bars":      len(prices),
		"trades":    len(result.Trades),
		"stop_loss": result.StopLossExits,
		"open":      result.OpenPosition,
		"final":     result.FinalEquity(),
	}).Debug("Backtest completed")

	return result, nil
}
