package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/modelcmp/internal/contracts"
)

// RunRepository persists comparison and batch runs
type RunRepository struct {
	db querier
}

// NewRunRepository creates a new run repository (pass *pgxpool.Pool)
func NewRunRepository(db querier) *RunRepository {
	return &RunRepository{db: db}
}

// RunSummary is one row of the run history
type RunSummary struct {
	RunID       string           `json:"run_id"`
	Symbol      string           `json:"symbol"`
	BestModel   string           `json:"best_model"`
	BestMetric  contracts.Metric `json:"best_metric"`
	ProfileHash string           `json:"profile_hash"`
}

// SaveRun stores a comparison run; saving the same run id again overwrites it
func (r *RunRepository) SaveRun(ctx context.Context, run *contracts.ComparisonRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	query := `
		INSERT INTO modelcmp.comparison_runs (
			run_id, symbol, best_model, best_metric, profile_hash, payload, created_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			best_model = EXCLUDED.best_model,
			payload = EXCLUDED.payload
	`

	_, err = r.db.Exec(ctx, query,
		run.RunID, run.Symbol, run.BestModel, string(run.BestMetric), run.ProfileHash, payload, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetRun retrieves a comparison run by id
func (r *RunRepository) GetRun(ctx context.Context, runID string) (*contracts.ComparisonRun, error) {
	query := `
		SELECT payload
		FROM modelcmp.comparison_runs
		WHERE run_id = $1
	`

	var payload []byte
	err := r.db.QueryRow(ctx, query, runID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", contracts.ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run contracts.ComparisonRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the newest runs of symbol (all symbols when empty)
func (r *RunRepository) ListRuns(ctx context.Context, symbol string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id::text, symbol, COALESCE(best_model, ''), best_metric, profile_hash
		FROM modelcmp.comparison_runs
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var metric string
		if err := rows.Scan(&s.RunID, &s.Symbol, &s.BestModel, &metric, &s.ProfileHash); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.BestMetric = contracts.Metric(metric)
		out = append(out, s)
	}

	return out, rows.Err()
}

// SaveAggregate stores a batch comparison
func (r *RunRepository) SaveAggregate(ctx context.Context, agg *contracts.AggregateComparison) error {
	payload, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate: %w", err)
	}

	query := `
		INSERT INTO modelcmp.aggregate_runs (
			run_id, symbols, succeeded, payload, created_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			succeeded = EXCLUDED.succeeded,
			payload = EXCLUDED.payload
	`

	_, err = r.db.Exec(ctx, query,
		agg.RunID, agg.SymbolsAttempted, agg.SymbolsSucceeded, payload, agg.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save aggregate: %w", err)
	}

	return nil
}

// GetAggregate retrieves a batch comparison by id
func (r *RunRepository) GetAggregate(ctx context.Context, runID string) (*contracts.AggregateComparison, error) {
	query := `
		SELECT payload
		FROM modelcmp.aggregate_runs
		WHERE run_id = $1
	`

	var payload []byte
	err := r.db.QueryRow(ctx, query, runID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: aggregate %s", contracts.ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate: %w", err)
	}

	var agg contracts.AggregateComparison
	if err := json.Unmarshal(payload, &agg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal aggregate: %w", err)
	}
	return &agg, nil
}
