package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

// recommendCmd represents the recommend command
var recommendCmd = &cobra.Command{
	Use:   "recommend [symbol]",
	Short: "가격 국면 기반 모델 패밀리 추천",
	Long: `최근 252 거래일의 연환산 변동성과 누적 수익률로 종목의 국면을
분류하고, 그 국면에 적합한 모델 패밀리를 추천합니다.

Example:
  go run ./cmd/quant recommend 005930`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

var recommendJSON bool

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "print the recommendation as JSON")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	rec, err := a.recommender.Recommend(ctx, args[0])
	if err != nil {
		PrintError(err.Error())
		return err
	}

	if recommendJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	PrintHeader("Model Recommendation: " + rec.Symbol)
	PrintRecommendation(rec)
	return nil
}
