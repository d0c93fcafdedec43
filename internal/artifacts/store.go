package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/models"
)

// querier is the subset of *pgxpool.Pool used by the repositories
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Metadata describes a stored model artifact
type Metadata struct {
	ArtifactID  string                  `json:"artifact_id"`
	ModelName   string                  `json:"model_name"`
	Family      contracts.ModelFamily   `json:"family"`
	Symbol      string                  `json:"symbol,omitempty"`
	RunID       string                  `json:"run_id,omitempty"`
	ProfileHash string                  `json:"profile_hash,omitempty"`
	Params      map[string]interface{}  `json:"params"`
	Metrics     *contracts.ModelMetrics `json:"metrics,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Store persists trained models
// ⭐ SSOT: 모델 아티팩트 저장/조회는 여기서만
type Store struct {
	db querier
}

// NewStore creates a new artifact store (pass *pgxpool.Pool)
func NewStore(db querier) *Store {
	return &Store{db: db}
}

// NewMetadata describes the best model of run
func NewMetadata(run *contracts.ComparisonRun, model *models.TrainedModel) Metadata {
	md := Metadata{
		ModelName:   model.Name(),
		Family:      model.Family(),
		Symbol:      run.Symbol,
		RunID:       run.RunID,
		ProfileHash: run.ProfileHash,
		Params:      model.Params(),
	}
	if mm, ok := run.Metrics[model.Name()]; ok {
		md.Metrics = &mm
	}
	return md
}

// Save serializes model and stores it with md; returns the artifact id
func (s *Store) Save(ctx context.Context, model *models.TrainedModel, md Metadata) (string, error) {
	blob, err := models.Marshal(model)
	if err != nil {
		return "", err
	}

	md.ArtifactID = uuid.New().String()
	md.ModelName = model.Name()
	md.Family = model.Family()
	if md.CreatedAt.IsZero() {
		md.CreatedAt = time.Now().UTC()
	}

	mdJSON, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact metadata: %w", err)
	}

	query := `
		INSERT INTO modelcmp.model_artifacts (
			artifact_id, model_name, family, symbol, metadata, blob, created_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
	`

	_, err = s.db.Exec(ctx, query,
		md.ArtifactID, md.ModelName, string(md.Family), md.Symbol, mdJSON, blob, md.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save artifact: %w", err)
	}

	return md.ArtifactID, nil
}

// Load restores a model stored by Save
func (s *Store) Load(ctx context.Context, artifactID string) (*models.TrainedModel, Metadata, error) {
	query := `
		SELECT metadata, blob
		FROM modelcmp.model_artifacts
		WHERE artifact_id = $1
	`

	var mdJSON, blob []byte
	err := s.db.QueryRow(ctx, query, artifactID).Scan(&mdJSON, &blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, Metadata{}, fmt.Errorf("%w: artifact %s", contracts.ErrNotFound, artifactID)
	}
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to load artifact: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(mdJSON, &md); err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to unmarshal artifact metadata: %w", err)
	}

	model, err := models.Unmarshal(blob)
	if err != nil {
		return nil, md, err
	}
	return model, md, nil
}

// List returns the newest artifacts of symbol (all symbols when empty)
func (s *Store) List(ctx context.Context, symbol string, limit int) ([]Metadata, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT metadata
		FROM modelcmp.model_artifacts
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Metadata
	for rows.Next() {
		var mdJSON []byte
		if err := rows.Scan(&mdJSON); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		var md Metadata
		if err := json.Unmarshal(mdJSON, &md); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifact metadata: %w", err)
		}
		out = append(out, md)
	}

	return out, rows.Err()
}
