package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziarant/StarPupil/internal/api/handlers"
	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/internal/pipeline"
	"github.com/Ziarant/StarPupil/internal/scheduler"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

type stubSignalRepo struct {
	signals []contracts.Signal
	err     error
}

func (r *stubSignalRepo) TryInsert(ctx context.Context, sig *contracts.Signal) (contracts.InsertOutcome, error) {
	return contracts.Inserted, nil
}

func (r *stubSignalRepo) ListByInstrument(ctx context.Context, instrumentID int64, from, to time.Time) ([]contracts.Signal, error) {
	return r.signals, r.err
}

func (r *stubSignalRepo) ListByDate(ctx context.Context, date time.Time) ([]contracts.Signal, error) {
	return r.signals, r.err
}

type stubInstrumentRepo struct {
	instruments []contracts.Instrument
}

func (r *stubInstrumentRepo) GetBySymbol(ctx context.Context, exchange, symbol string) (*contracts.Instrument, error) {
	return nil, nil
}

func (r *stubInstrumentRepo) ListActive(ctx context.Context) ([]contracts.Instrument, error) {
	return r.instruments, nil
}

func (r *stubInstrumentRepo) Upsert(ctx context.Context, inst *contracts.Instrument) (*contracts.Instrument, error) {
	return inst, nil
}

type stubJob struct{ runs chan struct{} }

func (j *stubJob) Name() string     { return pipeline.JobName }
func (j *stubJob) Schedule() string { return "@hourly" }
func (j *stubJob) Run(ctx context.Context) error {
	select {
	case j.runs <- struct{}{}:
	default:
	}
	return nil
}

func newTestRouter(t *testing.T, signals *stubSignalRepo, job *stubJob) http.Handler {
	t.Helper()
	log := logger.NewWriter(io.Discard, "error")

	sched := scheduler.New(log)
	if job != nil {
		require.NoError(t, sched.AddJob(job))
	}

	return NewRouter(
		handlers.NewSignalHandler(signals, log),
		handlers.NewInstrumentHandler(&stubInstrumentRepo{
			instruments: []contracts.Instrument{{ID: 1, Exchange: "SSE", Symbol: "600519", Active: true}},
		}, log),
		handlers.NewPipelineHandler(sched, log),
		nil,
		log,
	)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubSignalRepo{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListSignalsByDate(t *testing.T) {
	repo := &stubSignalRepo{signals: []contracts.Signal{
		{ID: 1, InstrumentID: 7, Strategy: "rsi_reversal", Kind: contracts.SignalSell},
	}}
	router := newTestRouter(t, repo, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/signals?date=2026-08-21", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Date    string             `json:"date"`
		Count   int                `json:"count"`
		Signals []contracts.Signal `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-08-21", body.Date)
	assert.Equal(t, 1, body.Count)
}

func TestListSignalsBadDate(t *testing.T) {
	router := newTestRouter(t, &stubSignalRepo{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/signals?date=21-08-2026", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSignalsByInstrument(t *testing.T) {
	repo := &stubSignalRepo{signals: []contracts.Signal{{ID: 1, InstrumentID: 7}}}
	router := newTestRouter(t, repo, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/instruments/7/signals", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		InstrumentID int64 `json:"instrument_id"`
		Count        int   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body.InstrumentID)
	assert.Equal(t, 1, body.Count)
}

func TestListInstruments(t *testing.T) {
	router := newTestRouter(t, &stubSignalRepo{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/instruments", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestTriggerPipelineRun(t *testing.T) {
	job := &stubJob{runs: make(chan struct{}, 1)}
	router := newTestRouter(t, &stubSignalRepo{}, job)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/pipeline/run", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case <-job.runs:
	case <-time.After(time.Second):
		t.Fatal("pipeline job was not triggered")
	}
}

func TestTriggerPipelineRunWithoutJob(t *testing.T) {
	router := newTestRouter(t, &stubSignalRepo{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/pipeline/run", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSchedulerJobsEndpoint(t *testing.T) {
	job := &stubJob{runs: make(chan struct{}, 1)}
	router := newTestRouter(t, &stubSignalRepo{}, job)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/scheduler/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Jobs []string `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{pipeline.JobName}, body.Jobs)
}
