package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/trustrank/internal/flags"
)

// flagsCmd represents the flags command
var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "기능 플래그 조회/변경",
	Long: `현재 적용되는 기능 플래그를 조회하거나 Redis 오버라이드를 설정합니다.

우선순위: Redis 오버라이드 > FLAGS_FILE (YAML) > 기본값
Redis 장애 시 fail-open 플래그는 기본값, fail-closed 플래그는 제한값을 사용합니다.

Example:
  go run ./cmd/trustrank flags show
  go run ./cmd/trustrank flags set recompute_enabled false`,
}

var (
	flagsShowCmd = &cobra.Command{
		Use:   "show",
		Short: "현재 플래그 스냅샷",
		RunE:  runFlagsShow,
	}

	flagsSetCmd = &cobra.Command{
		Use:   "set [flag] [true|false]",
		Short: "Redis 오버라이드 설정",
		Args:  cobra.ExactArgs(2),
		RunE:  runFlagsSet,
	}
)

func init() {
	rootCmd.AddCommand(flagsCmd)
	flagsCmd.AddCommand(flagsShowCmd)
	flagsCmd.AddCommand(flagsSetCmd)
}

func runFlagsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap := a.flags.Snapshot(cmd.Context())
	values := snap.Map()

	names := make([]string, 0, len(values))
	for f := range values {
		names = append(names, string(f))
	}
	sort.Strings(names)

	PrintTableHeader([]string{"Flag", "Value", "Default", "Fail mode"}, []int{20, 6, 8, 10})
	for _, name := range names {
		f := flags.Flag(name)
		def, _ := flags.Lookup(f)
		PrintTableRow([]string{
			name,
			strconv.FormatBool(values[f]),
			strconv.FormatBool(def.Default),
			string(def.FailMode),
		}, []int{20, 6, 8, 10})
	}
	fmt.Printf("\n   hash: %s\n", snap.Hash())
	return nil
}

func runFlagsSet(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.redisFlg.Set(cmd.Context(), flags.Flag(args[0]), value); err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("%s = %t (%s)", args[0], value, a.redisFlg.Key()))
	return nil
}
