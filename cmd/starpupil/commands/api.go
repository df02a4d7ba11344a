package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ziarant/StarPupil/internal/api"
	"github.com/Ziarant/StarPupil/internal/api/handlers"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Starts the read-side HTTP API together with the scheduler, so
signals keep generating while the API serves them.

Endpoints:
  GET  /health
  GET  /api/signals?date=YYYY-MM-DD
  GET  /api/instruments
  GET  /api/instruments/{id}/signals
  POST /api/pipeline/run
  GET  /api/scheduler/jobs
  GET  /api/scheduler/stats
  WS   /ws/signals`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer a.close()

	sched.Start()
	defer sched.Stop()

	router := api.NewRouter(
		handlers.NewSignalHandler(a.store.Signals, a.log),
		handlers.NewInstrumentHandler(a.store.Instruments, a.log),
		handlers.NewPipelineHandler(sched, a.log),
		a.hub,
		a.log,
	)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
