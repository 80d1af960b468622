package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trustrank",
	Short: "TrustRank - 회사 신뢰/품질 점수 엔진",
	Long: `TrustRank Unified CLI

회사 신뢰도(trust)와 펀더멘털(fundamentals) 점수를 계산하는 코어.
신호 수집 → 엔진 → 스무딩 → 저장 → 감사 로그 → 예측 순서로 처리.

Usage:
  go run ./cmd/trustrank [command]

Examples:
  go run ./cmd/trustrank migrate up
  go run ./cmd/trustrank recompute one <company_id>
  go run ./cmd/trustrank recompute all --page-size 500
  go run ./cmd/trustrank scheduler start
  go run ./cmd/trustrank api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "추가로 읽을 .env 파일 경로")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug 로그 출력")
}
