package handlers

import (
	"net/http"

	"github.com/Ziarant/StarPupil/internal/pipeline"
	"github.com/Ziarant/StarPupil/internal/scheduler"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// PipelineHandler exposes the manual run trigger and scheduler status.
type PipelineHandler struct {
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewPipelineHandler creates a pipeline handler.
func NewPipelineHandler(sched *scheduler.Scheduler, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{scheduler: sched, logger: log}
}

// TriggerRun fires the pipeline job outside its schedule. The run is
// asynchronous; progress lands in the job history.
// POST /api/pipeline/run
func (h *PipelineHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.RunJob(pipeline.JobName); err != nil {
		h.logger.WithError(err).Error("Failed to trigger pipeline run")
		respondError(w, http.StatusInternalServerError, "failed to trigger run")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    pipeline.JobName,
	})
}

// ListJobs returns registered job names.
// GET /api/scheduler/jobs
func (h *PipelineHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.scheduler.GetAllJobs(),
	})
}

// JobStats returns execution statistics per job.
// GET /api/scheduler/stats
func (h *PipelineHandler) JobStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}
