package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the tables read and written by the comparison engine.
// features.daily_features is owned by the upstream feature pipeline; it is created
// here only so a fresh database can be seeded for local runs.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS features`,
	`CREATE TABLE IF NOT EXISTS features.daily_features (
		symbol      TEXT        NOT NULL,
		trade_date  DATE        NOT NULL,
		open        DOUBLE PRECISION,
		high        DOUBLE PRECISION,
		low         DOUBLE PRECISION,
		close       DOUBLE PRECISION,
		volume      DOUBLE PRECISION,
		feature_values JSONB    NOT NULL DEFAULT '{}'::jsonb,
		PRIMARY KEY (symbol, trade_date)
	)`,
	`CREATE SCHEMA IF NOT EXISTS modelcmp`,
	`CREATE TABLE IF NOT EXISTS modelcmp.comparison_runs (
		run_id       UUID        PRIMARY KEY,
		symbol       TEXT        NOT NULL,
		best_model   TEXT,
		best_metric  TEXT        NOT NULL,
		profile_hash TEXT        NOT NULL,
		payload      JSONB       NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comparison_runs_symbol ON modelcmp.comparison_runs (symbol, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS modelcmp.aggregate_runs (
		run_id      UUID        PRIMARY KEY,
		symbols     INT         NOT NULL,
		succeeded   INT         NOT NULL,
		payload     JSONB       NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS modelcmp.model_artifacts (
		artifact_id UUID        PRIMARY KEY,
		model_name  TEXT        NOT NULL,
		family      TEXT        NOT NULL,
		symbol      TEXT,
		metadata    JSONB       NOT NULL DEFAULT '{}'::jsonb,
		blob        BYTEA       NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the engine's schemas and tables if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
