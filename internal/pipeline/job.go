package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/Ziarant/StarPupil/pkg/logger"
)

// JobName is the scheduler registration name for the recurring run.
const JobName = "signal_pipeline"

// Job adapts the orchestrator to the scheduler's Job interface. If a
// previous run is still going when the schedule fires again, the overdue
// run is cancelled and the new one starts; stale runs never pile up.
type Job struct {
	orchestrator *Orchestrator
	schedule     string
	logger       *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJob creates the recurring pipeline job.
func NewJob(orchestrator *Orchestrator, schedule string, log *logger.Logger) *Job {
	return &Job{
		orchestrator: orchestrator,
		schedule:     schedule,
		logger:       log.WithField("component", "pipeline_job"),
	}
}

func (j *Job) Name() string     { return JobName }
func (j *Job) Schedule() string { return j.schedule }

// Run triggers one pipeline run for today's date.
func (j *Job) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	j.mu.Lock()
	if j.cancel != nil {
		j.logger.Warn("Previous run still active; cancelling it")
		j.cancel()
		prev := j.done
		j.mu.Unlock()
		<-prev
		j.mu.Lock()
	}
	j.cancel = cancel
	j.done = done
	j.mu.Unlock()

	defer func() {
		close(done)
		cancel()
		j.mu.Lock()
		if j.done == done {
			j.cancel = nil
			j.done = nil
		}
		j.mu.Unlock()
	}()

	date := tradingDate(time.Now())
	_, err := j.orchestrator.Run(runCtx, date)
	return err
}

// tradingDate truncates a timestamp to its calendar date in local time.
func tradingDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
