package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/modelcmp/internal/compareconfig"
)

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "프로필의 모델 목록과 설정 검증",
	Long: `비교 프로필을 로드/검증하고 모델별 하이퍼파라미터를 출력합니다.

DB/Redis 연결 없이 프로필만 확인합니다.

Example:
  go run ./cmd/quant models
  go run ./cmd/quant models --profile configs/compare_profile.yaml`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	profile, err := compareconfig.Load(profilePath)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	hash, err := compareconfig.Hash(profile)
	if err != nil {
		return err
	}
	specs, err := profile.Specs()
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Profile %s v%s", profile.Meta.ProfileID, profile.Meta.Version))
	PrintKeyValue("Hash", hash[:12], 14)
	PrintKeyValue("Metric", string(profile.Selection.Metric), 14)
	PrintKeyValue("Lookback", fmt.Sprintf("%d bars", profile.Dataset.Lookback), 14)
	PrintKeyValue("Model timeout", profile.Runtime.ModelTimeout.String(), 14)
	fmt.Println()

	for _, spec := range specs {
		fmt.Printf("%s (%s)\n", okColor.Sprint(spec.Name), spec.Config.Family())
		params := spec.Config.Params()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			PrintKeyValue(k, fmt.Sprintf("%v", params[k]), 18)
		}
	}

	warnings := compareconfig.Warn(profile)
	if len(warnings) > 0 {
		fmt.Println()
		for _, w := range warnings {
			PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
		}
	}
	return nil
}
