package features

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/modelcmp/internal/contracts"
)

// Repository reads feature rows from features.daily_features
// ⭐ SSOT: 피처 저장소는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new feature repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetFeatureRows implements Provider.
// feature_values is a JSONB object; columns are the sorted union of its keys
// and a key missing on a row becomes NaN.
func (r *Repository) GetFeatureRows(ctx context.Context, symbol string, start, end time.Time) (*contracts.FeatureTable, error) {
	query := `
		SELECT trade_date, open, high, low, close, volume, feature_values
		FROM features.daily_features
		WHERE symbol = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query features for %s: %w", symbol, err)
	}
	defer rows.Close()

	type rawRow struct {
		row    contracts.FeatureRow
		values map[string]*float64
	}

	var raw []rawRow
	keys := make(map[string]struct{})
	for rows.Next() {
		var rr rawRow
		var payload []byte
		var o, h, l, c, v *float64
		if err := rows.Scan(&rr.row.Date, &o, &h, &l, &c, &v, &payload); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		rr.row.Open, rr.row.High, rr.row.Low, rr.row.Close, rr.row.Volume = orNaN(o), orNaN(h), orNaN(l), orNaN(c), orNaN(v)

		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &rr.values); err != nil {
				return nil, fmt.Errorf("decode feature_values for %s %s: %w", symbol, rr.row.Date.Format(DateLayout), err)
			}
		}
		for k := range rr.values {
			keys[k] = struct{}{}
		}
		raw = append(raw, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(keys))
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	table := &contracts.FeatureTable{
		Symbol:  symbol,
		Columns: columns,
		Rows:    make([]contracts.FeatureRow, len(raw)),
	}
	for i, rr := range raw {
		rr.row.Values = make([]float64, len(columns))
		for j, col := range columns {
			rr.row.Values[j] = orNaN(rr.values[col])
		}
		table.Rows[i] = rr.row
	}
	return table, nil
}

// SaveTable upserts every row of table
func (r *Repository) SaveTable(ctx context.Context, table *contracts.FeatureTable) error {
	if len(table.Rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO features.daily_features (symbol, trade_date, open, high, low, close, volume, feature_values)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			feature_values = EXCLUDED.feature_values
	`

	batch := &pgx.Batch{}
	for _, row := range table.Rows {
		values := make(map[string]*float64, len(table.Columns))
		for j, col := range table.Columns {
			if j < len(row.Values) {
				values[col] = nullable(row.Values[j])
			}
		}
		payload, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("encode feature_values: %w", err)
		}
		batch.Queue(query, table.Symbol, row.Date,
			nullable(row.Open), nullable(row.High), nullable(row.Low), nullable(row.Close), nullable(row.Volume),
			payload)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range table.Rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert features for %s: %w", table.Symbol, err)
		}
	}
	return nil
}

// Symbols lists symbols with at least minRows stored rows
func (r *Repository) Symbols(ctx context.Context, minRows int) ([]string, error) {
	query := `
		SELECT symbol
		FROM features.daily_features
		GROUP BY symbol
		HAVING COUNT(*) >= $1
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query, minRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
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
