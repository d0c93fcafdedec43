package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/wonny/modelcmp/internal/features"
	"github.com/wonny/modelcmp/pkg/config"
	"github.com/wonny/modelcmp/pkg/database"
)

// dbCheckCmd represents the db-check command
var dbCheckCmd = &cobra.Command{
	Use:   "db-check",
	Short: "DB 연결 및 데이터 상태 확인",
	Long: `데이터베이스 연결, 커넥션 풀, 비교 엔진 테이블 상태를 확인합니다.

확인 항목:
- 연결 및 응답 시간, 커넥션 풀 통계
- 피처 데이터 (features.daily_features): 종목 수, 기간, 비교 가능 종목 수
- 비교 결과 (modelcmp.comparison_runs / aggregate_runs)
- 저장된 모델 (modelcmp.model_artifacts)

Flags:
  --migrate    스키마/테이블 생성 후 확인
  --min-rows   비교 가능 종목 기준 행 수 (기본: 250)

Example:
  go run ./cmd/quant db-check
  go run ./cmd/quant db-check --migrate`,
	RunE: runDBCheck,
}

var (
	dbCheckMigrate bool
	dbCheckMinRows int
)

func init() {
	rootCmd.AddCommand(dbCheckCmd)

	dbCheckCmd.Flags().BoolVar(&dbCheckMigrate, "migrate", false, "create schemas and tables first")
	dbCheckCmd.Flags().IntVar(&dbCheckMinRows, "min-rows", 250, "rows a symbol needs to count as comparable")
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Model Comparison DB Check ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	// 2. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		PrintError(err.Error())
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if dbCheckMigrate {
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		PrintSuccess("Schema is up to date")
	}

	health, err := db.HealthCheck(ctx)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintHeader("🔌 Connection")
	PrintKeyValue("Response", health.ResponseTime.String(), 12)
	PrintKeyValue("Pool", fmt.Sprintf("%d/%d conns (%d idle, %d acquired)",
		health.Stats.TotalConns, health.Stats.MaxConns, health.Stats.IdleConns, health.Stats.AcquiredConns), 12)

	checkFeatures(ctx, db.Pool, dbCheckMinRows)
	checkResults(ctx, db.Pool)

	return nil
}

func checkFeatures(ctx context.Context, pool *pgxpool.Pool, minRows int) {
	PrintHeader("📈 피처 데이터 (features.daily_features)")

	var total int64
	var symbols int
	var minDate, maxDate *time.Time
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT symbol), MIN(trade_date), MAX(trade_date)
		FROM features.daily_features
	`).Scan(&total, &symbols, &minDate, &maxDate)
	if err != nil {
		PrintError(fmt.Sprintf("query failed: %v (run with --migrate?)", err))
		return
	}

	PrintKeyValue("Rows", fmt.Sprintf("%d", total), 12)
	PrintKeyValue("Symbols", fmt.Sprintf("%d", symbols), 12)
	if minDate != nil && maxDate != nil {
		PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", minDate.Format(features.DateLayout), maxDate.Format(features.DateLayout)), 12)
	}

	comparable, err := features.NewRepository(pool).Symbols(ctx, minRows)
	if err != nil {
		PrintError(err.Error())
		return
	}
	PrintKeyValue("Comparable", fmt.Sprintf("%d symbols with %d+ rows", len(comparable), minRows), 12)
	if len(comparable) == 0 && total > 0 {
		PrintWarning("no symbol has enough rows for a comparison")
	}
}

func checkResults(ctx context.Context, pool *pgxpool.Pool) {
	PrintHeader("🗂  비교 결과 (modelcmp)")

	tables := []struct {
		label string
		query string
	}{
		{"Runs", `SELECT COUNT(*) FROM modelcmp.comparison_runs`},
		{"Aggregates", `SELECT COUNT(*) FROM modelcmp.aggregate_runs`},
		{"Artifacts", `SELECT COUNT(*) FROM modelcmp.model_artifacts`},
	}
	for _, t := range tables {
		var n int64
		if err := pool.QueryRow(ctx, t.query).Scan(&n); err != nil {
			PrintKeyValue(t.label, badColor.Sprintf("unavailable (%v)", err), 12)
			continue
		}
		PrintKeyValue(t.label, fmt.Sprintf("%d", n), 12)
	}

	var last *time.Time
	if err := pool.QueryRow(ctx, `SELECT MAX(created_at) FROM modelcmp.comparison_runs`).Scan(&last); err == nil && last != nil {
		PrintKeyValue("Last run", last.Format("2006-01-02 15:04:05"), 12)
	}
}
