package commands

import (
	"github.com/spf13/cobra"
)

// housekeepingCmd runs the retention job once
var housekeepingCmd = &cobra.Command{
	Use:   "housekeeping",
	Short: "보존 기간 지난 스냅샷/이력 정리",
	Long: `SCORE_RETENTION_DAYS 보다 오래된 점수 스냅샷과 이력을 삭제합니다.
회사별 최근 이력은 변동성 윈도우만큼 항상 남깁니다.

Example:
  go run ./cmd/trustrank housekeeping`,
	RunE: runHousekeeping,
}

func init() {
	rootCmd.AddCommand(housekeepingCmd)
}

func runHousekeeping(cmd *cobra.Command, args []string) error {
	return runJob(cmd, []string{"score_housekeeping"})
}
