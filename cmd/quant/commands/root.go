package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	profilePath string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "모델 비교 및 트레이딩 성과 평가 엔진",
	Long: `Model Comparison CLI

여러 분류 모델을 같은 데이터셋으로 학습하고,
백테스트 기반 트레이딩 지표로 평가해 베스트 모델을 선정합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant compare 005930
  go run ./cmd/quant batch 005930 000660 035420
  go run ./cmd/quant recommend 005930
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "comparison profile YAML (default: COMPARE_PROFILE or built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
