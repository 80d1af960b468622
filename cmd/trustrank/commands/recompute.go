package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/trustrank/internal/brain"
	"github.com/wonny/trustrank/internal/contracts"
)

// recomputeCmd represents the recompute command
var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "점수 재계산",
	Long: `회사 점수를 재계산합니다.

Subcommands:
  one <company_id>  - 단일 회사 동기 재계산 (같은 날 재실행해도 결과 동일)
  all               - 전체 레지스트리 배치 (락 + 커서 이어하기)

Example:
  go run ./cmd/trustrank recompute one 7f3c...
  go run ./cmd/trustrank recompute all
  go run ./cmd/trustrank recompute all --cursor c-0200 --page-size 500`,
}

var (
	recomputeOneCmd = &cobra.Command{
		Use:   "one [company_id]",
		Short: "단일 회사 재계산",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecomputeOne,
	}

	recomputeAllCmd = &cobra.Command{
		Use:   "all",
		Short: "전체 배치 1회 실행",
		Long: `전체 레지스트리를 페이지 단위로 재계산합니다.

- 다른 실행이 락을 잡고 있으면 SKIPPED (busy)
- recompute_enabled=false 이면 SKIPPED (disabled)
- time budget 초과 시 커서를 저장하고 다음 실행에서 이어서 처리`,
		RunE: runRecomputeAll,
	}

	recomputeCursor   string
	recomputePageSize int
	recomputeJSON     bool
)

func init() {
	rootCmd.AddCommand(recomputeCmd)
	recomputeCmd.AddCommand(recomputeOneCmd)
	recomputeCmd.AddCommand(recomputeAllCmd)

	recomputeCmd.PersistentFlags().BoolVar(&recomputeJSON, "json", false, "결과를 JSON 으로 출력")
	recomputeAllCmd.Flags().StringVar(&recomputeCursor, "cursor", "", "시작 커서 (기본: 저장된 커서)")
	recomputeAllCmd.Flags().IntVar(&recomputePageSize, "page-size", 0, "페이지 크기 (기본: SCORE_PAGE_SIZE)")
}

func runRecomputeOne(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.orchestrator.RecomputeOne(cmd.Context(), args[0])
	if err != nil {
		PrintError(fmt.Sprintf("[%s] %v", contracts.KindOf(err), err))
		return err
	}

	if recomputeJSON {
		return printJSON(result)
	}

	PrintDoubleSeparator()
	fmt.Printf("  Recompute: %s\n", result.CompanyID)
	PrintSeparator()
	PrintKeyValue("Trust", fmt.Sprintf("%d (raw %d, conf %d)", result.TrustScore, result.RawTrustScore, result.TrustConfidence), 14)
	PrintKeyValue("Fundamentals", fmt.Sprintf("%d (conf %d)", result.FundamentalsScore, result.FundamentalsConfidence), 14)
	PrintKeyValue("Data conf", strconv.Itoa(result.DataConfidence), 14)
	PrintKeyValue("Stability", string(result.StabilityProfile), 14)
	PrintSeparator()

	if len(result.Forecasts) > 0 {
		PrintTableHeader([]string{"Horizon", "Score", "Band", "Conf"}, []int{8, 6, 10, 5})
		for _, f := range result.Forecasts {
			PrintTableRow([]string{
				fmt.Sprintf("%dd", f.HorizonDays),
				strconv.Itoa(f.ForecastScore),
				fmt.Sprintf("%d-%d", f.BandLow, f.BandHigh),
				strconv.Itoa(f.ForecastConfidence),
			}, []int{8, 6, 10, 5})
		}
	}
	for _, e := range result.ChangeLog {
		PrintWarning(fmt.Sprintf("%s %d → %d (Δ%+d)", e.Metadata.ScoreType, e.Metadata.Previous, e.Metadata.Current, e.Metadata.Delta))
	}
	return nil
}

func runRecomputeAll(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.orchestrator.RecomputeAll(cmd.Context(), brain.RecomputeAllRequest{
		Cursor:   recomputeCursor,
		PageSize: recomputePageSize,
	})
	if result != nil {
		if recomputeJSON {
			if perr := printJSON(result); perr != nil {
				return perr
			}
		} else {
			printRunResult(result)
		}
	}
	return err
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
