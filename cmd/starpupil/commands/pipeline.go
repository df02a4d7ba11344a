package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pipelineDate string

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Pipeline operations",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the signal pipeline once",
	Long: `Runs one full pipeline pass: fetch prices and news, compute
indicators, aggregate sentiment, evaluate strategies, persist and notify.

Example:
  go run ./cmd/starpupil pipeline run
  go run ./cmd/starpupil pipeline run --date 2026-08-21`,
	RunE: runPipelineOnce,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineRunCmd.Flags().StringVar(&pipelineDate, "date", "", "trading date (YYYY-MM-DD, default today)")
}

func runPipelineOnce(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	date := time.Now()
	if pipelineDate != "" {
		if date, err = time.Parse("2006-01-02", pipelineDate); err != nil {
			return fmt.Errorf("bad --date: %w", err)
		}
	}
	year, month, day := date.Date()
	date = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	summary, err := a.orchestrator.Run(context.Background(), date)
	if err != nil {
		return err
	}

	fmt.Printf("Pipeline run for %s\n", summary.Date.Format("2006-01-02"))
	fmt.Printf("  instruments: %d (done %d, failed %d)\n", summary.Total, summary.Done, summary.Failed)
	fmt.Printf("  signals:     %d inserted, %d duplicates, %d notified\n",
		summary.Inserted, summary.Duplicates, summary.Notified)

	for _, result := range summary.Results {
		if result.Failed() {
			fmt.Printf("  FAILED %s at %s: %s\n", result.Instrument.Key(), result.FailedAt, result.Reason)
		}
	}

	return nil
}
