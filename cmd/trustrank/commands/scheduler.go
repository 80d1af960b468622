package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/trustrank/internal/s2_stability"
	"github.com/wonny/trustrank/internal/scheduler"
	"github.com/wonny/trustrank/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/trustrank scheduler start
  go run ./cmd/trustrank scheduler list
  go run ./cmd/trustrank scheduler run score_housekeeping`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- score_recompute: SCORE_RECOMPUTE_SCHEDULE (기본 15분마다)
- score_housekeeping: SCORE_HOUSEKEEPING_SCHEDULE (기본 매일 03:00)

여러 인스턴스를 띄워도 배치는 분산 락으로 한 번에 하나만 실행됩니다.
스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler registers the scoring jobs
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log.WithComponent("scheduler"))

	recompute := jobs.NewRecomputeJob(a.orchestrator, a.cfg.Scoring.RecomputeSchedule, a.log)
	if err := sched.AddJob(recompute); err != nil {
		return nil, err
	}

	housekeeping := jobs.NewHousekeepingJob(
		a.states,
		a.states,
		a.cfg.Scoring.RetentionDays,
		max(a.cfg.Scoring.HistoryWindow, s2_stability.VolatilityWindow),
		a.cfg.Scoring.HousekeepingSchedule,
		a.log,
	)
	if err := sched.AddJob(housekeeping); err != nil {
		return nil, err
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== TrustRank Scheduler ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJobSync(cmd.Context(), jobName)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nRegistered jobs:")
	PrintTableHeader([]string{"Job", "Schedule"}, []int{20, 20})
	for _, name := range names {
		PrintTableRow([]string{name, stats[name].Schedule}, []int{20, 20})
	}
}
