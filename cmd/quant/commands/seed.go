package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/modelcmp/internal/features"
	"github.com/wonny/modelcmp/pkg/config"
	"github.com/wonny/modelcmp/pkg/database"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed [symbols...]",
	Short: "합성 피처 데이터 적재 (로컬 개발용)",
	Long: `결정적 합성 피처 데이터를 features.daily_features 에 적재합니다.
같은 종목/날짜 행은 덮어씁니다.

Example:
  go run ./cmd/quant seed 005930 000660 --days 1095`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSeed,
}

var seedDays int

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntVar(&seedDays, "days", 1095, "calendar days of history to generate")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	synthetic := features.NewSynthetic(features.DefaultSyntheticConfig())
	repo := features.NewRepository(db.Pool)

	end := time.Now()
	start := end.AddDate(0, 0, -seedDays)
	for i, symbol := range args {
		table, err := synthetic.GetFeatureRows(ctx, symbol, start, end)
		if err != nil {
			return fmt.Errorf("generate %s: %w", symbol, err)
		}
		if err := repo.SaveTable(ctx, table); err != nil {
			return fmt.Errorf("save %s: %w", symbol, err)
		}
		fmt.Printf("[Seed] %s: %d rows [%d/%d]\n", symbol, len(table.Rows), i+1, len(args))
	}

	PrintSuccess(fmt.Sprintf("Seeded %d symbols", len(args)))
	return nil
}
