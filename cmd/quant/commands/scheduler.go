package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/scheduler"
	schedjobs "github.com/wonny/modelcmp/internal/scheduler/jobs"
)

// warmupSchedule runs 30 minutes before the default batch schedule
const warmupSchedule = "0 30 18 * * 1-5"

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `정기 배치 비교 스케줄러를 시작하거나 작업을 실행합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run batch_compare`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- feature_warmup: 평일 오후 6시 30분 (워치리스트 피처 캐시 예열)
- batch_compare: BATCH_SCHEDULE (기본 평일 오후 7시, 워치리스트 배치 비교)

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

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Model Comparison Scheduler ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// Start scheduler
	sched.Start()

	fmt.Println()
	PrintSuccess("Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Printf("\nWatchlist: %d symbols\n", len(a.cfg.Scheduler.Watchlist))
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	ctx, stop := signalContext()
	defer stop()
	<-ctx.Done()

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
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer sched.Stop()

	fmt.Printf("Running job: %s\n", jobName)

	result, err := sched.RunJobSync(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	report := result.Report
	PrintKeyValue("Symbols", fmt.Sprintf("%d/%d succeeded", report.Succeeded, report.Symbols), 10)
	if report.RunID != "" {
		PrintKeyValue("Aggregate", report.RunID, 10)
	}
	if len(report.FailedSymbols) > 0 {
		PrintWarning("Failed symbols:")
		PrintList(report.FailedSymbols)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempts (%s): %s", result.JobName, result.Attempts, result.Duration, result.Error))
		return fmt.Errorf("job %s failed", result.JobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", result.JobName, result.Duration))
	return nil
}

func initScheduler(a *app) (*scheduler.Scheduler, error) {
	if len(a.cfg.Scheduler.Watchlist) == 0 {
		return nil, fmt.Errorf("BATCH_WATCHLIST is empty")
	}

	specs, err := a.profile.Specs()
	if err != nil {
		return nil, err
	}

	template := aggregation.BatchRequest{
		Symbols:    a.cfg.Scheduler.Watchlist,
		Specs:      specs,
		Dataset:    &a.profile.Dataset,
		BestMetric: a.profile.Selection.Metric,
	}

	// runs 가 nil 이면 인터페이스에 nil 포인터가 들어가지 않도록 분기
	var store schedjobs.AggregateStore
	if a.runs != nil {
		store = a.runs
	}

	sched := scheduler.New(a.log)

	jobs := []scheduler.Job{
		schedjobs.NewFeatureWarmupJob(a.provider, a.cfg.Scheduler.Watchlist, warmupSchedule, a.cfg.Comparison.HistoryDays, a.log),
		schedjobs.NewBatchCompareJob(a.aggregator, store, template, a.cfg.Scheduler.BatchSchedule, a.cfg.Comparison.HistoryDays, a.log),
	}
	for _, job := range jobs {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("add job %s: %w", job.Name(), err)
		}
	}

	return sched, nil
}
