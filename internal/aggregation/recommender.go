package aggregation

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/features"
	"github.com/wonny/modelcmp/pkg/logger"
	"github.com/wonny/modelcmp/pkg/redis"
)

const (
	// RecommendBars is the trailing window classified by the recommender (1 trading year)
	RecommendBars = 252
	// MinRecommendBars is the fewest bars a recommendation is made from
	MinRecommendBars = 20

	recommendLookback = 400 * 24 * time.Hour

	lowVolatility    = 0.20
	mediumVolatility = 0.40
	trendBand        = 0.05
)

// regimeRule lists families per volatility class
type regimeRule struct {
	primary   []contracts.ModelFamily
	secondary []contracts.ModelFamily
	avoid     []contracts.ModelFamily
	reason    string
}

// ⭐ SSOT: 변동성 구간별 모델 추천 규칙
var regimeRules = map[contracts.VolatilityClass]regimeRule{
	contracts.VolatilityLow: {
		primary:   []contracts.ModelFamily{contracts.FamilyNeuralNetwork, contracts.FamilyLogisticRegression},
		secondary: []contracts.ModelFamily{contracts.FamilyGradientBoosting},
		avoid:     []contracts.ModelFamily{},
		reason:    "Low volatility favours smooth models that capture small, persistent patterns",
	},
	contracts.VolatilityMedium: {
		primary:   []contracts.ModelFamily{contracts.FamilyGradientBoosting, contracts.FamilyRandomForest},
		secondary: []contracts.ModelFamily{contracts.FamilyNeuralNetwork},
		avoid:     []contracts.ModelFamily{contracts.FamilyLinearSVM},
		reason:    "Medium volatility favours tree ensembles that handle non-linear regimes",
	},
	contracts.VolatilityHigh: {
		primary:   []contracts.ModelFamily{contracts.FamilyRandomForest, contracts.FamilyGradientBoosting},
		secondary: []contracts.ModelFamily{contracts.FamilyLinearSVM},
		avoid:     []contracts.ModelFamily{contracts.FamilyNeuralNetwork},
		reason:    "High volatility favours robust ensembles; neural networks tend to overfit noise",
	},
}

// Recommender suggests model families from a symbol's recent price behaviour
type Recommender struct {
	provider features.Provider
	cache    *redis.Cache // nil 이면 캐시 비활성
	now      func() time.Time
	logger   *logger.Logger
}

// NewRecommender creates a recommender; cache may be nil
func NewRecommender(provider features.Provider, cache *redis.Cache, log *logger.Logger) *Recommender {
	return &Recommender{
		provider: provider,
		cache:    cache,
		now:      time.Now,
		logger:   log.Component("recommender"),
	}
}

// Recommend classifies the trailing year of symbol and maps it to model families
func (r *Recommender) Recommend(ctx context.Context, symbol string) (*contracts.Recommendation, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", contracts.ErrInvalidInput)
	}

	now := r.now()
	if r.cache == nil {
		return r.compute(ctx, symbol, now)
	}

	var rec contracts.Recommendation
	key := redis.RecommendationKey(symbol, now.Format(features.DateLayout))
	err := r.cache.GetOrSet(ctx, key, &rec, redis.TTLDaily, func() (interface{}, error) {
		return r.compute(ctx, symbol, now)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Recommender) compute(ctx context.Context, symbol string, now time.Time) (*contracts.Recommendation, error) {
	table, err := r.provider.GetFeatureRows(ctx, symbol, now.Add(-recommendLookback), now)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
	}

	// 결측/비정상 종가는 창 길이 계산 전에 제외
	closes := table.ValidCloses()
	if len(closes) > RecommendBars {
		closes = closes[len(closes)-RecommendBars:]
	}
	if len(closes) < MinRecommendBars {
		return nil, &contracts.InsufficientDataError{Symbol: symbol, Rows: len(closes), Required: MinRecommendBars}
	}

	vol, cum := priceRegime(closes)
	rec := Classify(symbol, vol, cum)
	rec.AsOf = now
	rec.Bars = len(closes)

	r.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"volatility": rec.Volatility,
		"trend":      rec.Trend,
		"bars":       rec.Bars,
	}).Info("Recommendation computed")

	return rec, nil
}

// priceRegime returns annualized volatility (population std of daily returns × √252)
// and cumulative return of closes; closes must be valid prices
func priceRegime(closes []float64) (float64, float64) {
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		rets = append(rets, closes[i]/closes[i-1]-1)
	}

	var vol float64
	if len(rets) > 0 {
		_, variance := stat.PopMeanVariance(rets, nil)
		vol = math.Sqrt(variance * 252)
	}

	cum := closes[len(closes)-1]/closes[0] - 1
	return vol, cum
}

// Classify maps a volatility and trend reading to a recommendation
func Classify(symbol string, annualVol, cumReturn float64) *contracts.Recommendation {
	volClass := contracts.VolatilityHigh
	switch {
	case annualVol < lowVolatility:
		volClass = contracts.VolatilityLow
	case annualVol < mediumVolatility:
		volClass = contracts.VolatilityMedium
	}

	trend := contracts.TrendSideways
	switch {
	case cumReturn > trendBand:
		trend = contracts.TrendBullish
	case cumReturn < -trendBand:
		trend = contracts.TrendBearish
	}

	rule := regimeRules[volClass]
	reasoning := []string{
		fmt.Sprintf("Annualized volatility %.1f%% is %s", annualVol*100, volClass),
		rule.reason,
	}
	switch trend {
	case contracts.TrendBullish:
		reasoning = append(reasoning, fmt.Sprintf("Cumulative return %+.1f%% indicates a bullish trend; momentum features should carry signal", cumReturn*100))
	case contracts.TrendBearish:
		reasoning = append(reasoning, fmt.Sprintf("Cumulative return %+.1f%% indicates a bearish trend; long-only signals will be rare", cumReturn*100))
	default:
		reasoning = append(reasoning, fmt.Sprintf("Cumulative return %+.1f%% indicates a sideways market; expect lower trading returns", cumReturn*100))
	}

	return &contracts.Recommendation{
		Symbol:               symbol,
		AnnualizedVolatility: annualVol,
		CumulativeReturn:     cumReturn,
		Volatility:           volClass,
		Trend:                trend,
		Primary:              append([]contracts.ModelFamily(nil), rule.primary...),
		Secondary:            append([]contracts.ModelFamily(nil), rule.secondary...),
		Avoid:                append([]contracts.ModelFamily{}, rule.avoid...),
		Reasoning:            reasoning,
	}
}
