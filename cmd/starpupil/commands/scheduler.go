package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ziarant/StarPupil/internal/pipeline"
	"github.com/Ziarant/StarPupil/internal/scheduler"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Scheduler management",
	Long: `Starts the scheduler daemon or inspects registered jobs.

Subcommands:
  start   - start the scheduler daemon
  list    - list registered jobs
  run     - fire a job immediately
  status  - show job execution statistics

Example:
  go run ./cmd/starpupil scheduler start
  go run ./cmd/starpupil scheduler run signal_pipeline`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		Long: `Starts the scheduler and registers the recurring pipeline job
(PIPELINE_SCHEDULE, default weekdays after market close).

Stop with Ctrl+C.`,
		RunE: runSchedulerDaemon,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listSchedulerJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Fire a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job execution statistics",
		RunE:  showSchedulerStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

// initScheduler wires the app and registers the pipeline job.
func initScheduler() (*app, *scheduler.Scheduler, error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.log)
	job := pipeline.NewJob(a.orchestrator, a.cfg.Pipeline.ScheduleExpr, a.log)
	if err := sched.AddJob(job); err != nil {
		a.close()
		return nil, nil, fmt.Errorf("register pipeline job: %w", err)
	}

	return a, sched, nil
}

func runSchedulerDaemon(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer a.close()

	sched.Start()

	fmt.Println("Scheduler started. Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listSchedulerJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer a.close()

	for _, jobName := range sched.GetAllJobs() {
		fmt.Println(jobName)
	}
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer a.close()

	jobName := args[0]
	fmt.Printf("Running job %s...\n", jobName)
	if err := sched.RunJob(jobName); err != nil {
		return err
	}

	// RunJob is asynchronous; wait for the history entry.
	for {
		time.Sleep(200 * time.Millisecond)

		history, err := sched.GetJobHistory(jobName)
		if err != nil {
			return err
		}
		if latest := history.GetLatestResults(1); len(latest) > 0 {
			result := latest[0]
			if result.Success {
				fmt.Printf("Job %s completed in %s\n", jobName, result.Duration)
			} else {
				fmt.Printf("Job %s failed: %s\n", jobName, result.Error)
			}
			return nil
		}
	}
}

func showSchedulerStatus(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer a.close()

	for jobName, stats := range sched.GetJobStats() {
		fmt.Printf("%s (schedule %q)\n", jobName, stats.Schedule)
		fmt.Printf("  runs: %d, success: %d, failed: %d, rate: %.0f%%\n",
			stats.TotalRuns, stats.SuccessCount, stats.FailureCount, stats.SuccessRate*100)
	}
	return nil
}
