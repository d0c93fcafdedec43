package features

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/wonny/modelcmp/internal/contracts"
)

// SyntheticConfig shapes the generated price process
type SyntheticConfig struct {
	StartPrice float64 // 기본 10,000
	Drift      float64 // 일간 기대 수익률
	Volatility float64 // 일간 변동성
	Seed       int64   // 종목 해시와 결합
}

// DefaultSyntheticConfig returns a mildly trending daily process
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		StartPrice: 10_000,
		Drift:      0.0004,
		Volatility: 0.018,
		Seed:       42,
	}
}

// SyntheticColumns are the feature columns the generator derives from closes
var SyntheticColumns = []string{"ret_1", "ret_5", "sma_ratio_10", "rsi_14", "vol_20"}

// Synthetic generates deterministic feature rows per symbol (demo runs, tests)
type Synthetic struct {
	config SyntheticConfig
}

// NewSynthetic creates a synthetic provider
func NewSynthetic(config SyntheticConfig) *Synthetic {
	return &Synthetic{config: config}
}

// GetFeatureRows implements Provider: one row per weekday in [start, end]
func (s *Synthetic) GetFeatureRows(ctx context.Context, symbol string, start, end time.Time) (*contracts.FeatureTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var dates []time.Time
	for d := truncateDay(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			dates = append(dates, d)
		}
	}

	table := &contracts.FeatureTable{
		Symbol:  symbol,
		Columns: append([]string(nil), SyntheticColumns...),
		Rows:    make([]contracts.FeatureRow, len(dates)),
	}
	if len(dates) == 0 {
		return table, nil
	}

	rng := rand.New(rand.NewSource(s.config.Seed ^ symbolSeed(symbol)))
	closes := make([]float64, len(dates))
	price := s.config.StartPrice
	for i, d := range dates {
		open := price
		ret := s.config.Drift + s.config.Volatility*rng.NormFloat64()
		price = open * math.Exp(ret)
		spread := math.Abs(rng.NormFloat64()) * s.config.Volatility * open / 2

		closes[i] = price
		table.Rows[i] = contracts.FeatureRow{
			Date:   d,
			Open:   open,
			High:   math.Max(open, price) + spread,
			Low:    math.Min(open, price) - spread,
			Close:  price,
			Volume: math.Round(100_000 * (1 + rng.Float64())),
		}
	}

	for i := range table.Rows {
		table.Rows[i].Values = []float64{
			pctChange(closes, i, 1),
			pctChange(closes, i, 5),
			smaRatio(closes, i, 10),
			rsi(closes, i, 14),
			rollingVol(closes, i, 20),
		}
	}
	return table, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return int64(h.Sum64() >> 1)
}

// 지표는 충분한 이력이 없으면 NaN

func pctChange(c []float64, i, n int) float64 {
	if i < n {
		return math.NaN()
	}
	return c[i]/c[i-n] - 1
}

func smaRatio(c []float64, i, n int) float64 {
	if i+1 < n {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range c[i+1-n : i+1] {
		sum += v
	}
	return c[i] / (sum / float64(n))
}

func rsi(c []float64, i, n int) float64 {
	if i < n {
		return math.NaN()
	}
	var gain, loss float64
	for k := i - n + 1; k <= i; k++ {
		d := c[k] - c[k-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

func rollingVol(c []float64, i, n int) float64 {
	if i < n {
		return math.NaN()
	}
	rets := make([]float64, n)
	for k := 0; k < n; k++ {
		j := i - n + 1 + k
		rets[k] = math.Log(c[j] / c[j-1])
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(n)
	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	return math.Sqrt(variance / float64(n))
}
