package contracts

import (
	"encoding/json"
	"math"
	"time"
)

// FeatureRow is one trading day of a symbol: OHLCV plus precomputed feature columns.
// Missing values are NaN.
type FeatureRow struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Values []float64 `json:"values"` // Columns 순서와 동일
}

// FeatureTable is a time-ascending sequence of feature rows for one symbol
type FeatureTable struct {
	Symbol  string       `json:"symbol"`
	Columns []string     `json:"columns"`
	Rows    []FeatureRow `json:"rows"`
}

// Width returns the number of values per row used for model input (OHLCV + columns)
func (t *FeatureTable) Width() int {
	return 5 + len(t.Columns)
}

// Vector returns the model input vector of row i: OHLCV followed by feature columns
func (t *FeatureTable) Vector(i int, dst []float64) []float64 {
	r := t.Rows[i]
	dst = append(dst, r.Open, r.High, r.Low, r.Close, r.Volume)
	for j := range t.Columns {
		if j < len(r.Values) {
			dst = append(dst, r.Values[j])
		} else {
			dst = append(dst, math.NaN())
		}
	}
	return dst
}

// Closes returns the close price series
func (t *FeatureTable) Closes() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Close
	}
	return out
}

// ValidCloses returns the close series without missing or non-positive prices
func (t *FeatureTable) ValidCloses() []float64 {
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if ValidPrice(r.Close) {
			out = append(out, r.Close)
		}
	}
	return out
}

// ValidPrice reports whether p is a usable (finite, positive) price
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// IsSorted reports whether rows are strictly time-ascending
func (t *FeatureTable) IsSorted() bool {
	for i := 1; i < len(t.Rows); i++ {
		if !t.Rows[i].Date.After(t.Rows[i-1].Date) {
			return false
		}
	}
	return true
}

// featureRowJSON encodes NaN as null since JSON has no NaN
type featureRowJSON struct {
	Date   time.Time  `json:"date"`
	Open   *float64   `json:"open"`
	High   *float64   `json:"high"`
	Low    *float64   `json:"low"`
	Close  *float64   `json:"close"`
	Volume *float64   `json:"volume"`
	Values []*float64 `json:"values"`
}

// MarshalJSON writes missing values as null
func (r FeatureRow) MarshalJSON() ([]byte, error) {
	out := featureRowJSON{
		Date:   r.Date,
		Open:   nullable(r.Open),
		High:   nullable(r.High),
		Low:    nullable(r.Low),
		Close:  nullable(r.Close),
		Volume: nullable(r.Volume),
		Values: make([]*float64, len(r.Values)),
	}
	for i, v := range r.Values {
		out.Values[i] = nullable(v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null as NaN
func (r *FeatureRow) UnmarshalJSON(data []byte) error {
	var in featureRowJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = FeatureRow{
		Date:   in.Date,
		Open:   orNaN(in.Open),
		High:   orNaN(in.High),
		Low:    orNaN(in.Low),
		Close:  orNaN(in.Close),
		Volume: orNaN(in.Volume),
		Values: make([]float64, len(in.Values)),
	}
	for i, v := range in.Values {
		r.Values[i] = orNaN(v)
	}
	return nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
