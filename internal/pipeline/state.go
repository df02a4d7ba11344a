// Package pipeline orchestrates one signal-generation run: fetch market
// data and news, compute indicators, aggregate sentiment, evaluate
// strategies, persist deduplicated signals and notify on fresh inserts.
package pipeline

import (
	"time"

	"github.com/Ziarant/StarPupil/internal/contracts"
)

// Stage is the position of one instrument in the per-run state machine.
// Stages only move forward; Failed and Done are terminal.
type Stage string

const (
	StagePending    Stage = "pending"
	StageFetching   Stage = "fetching"
	StageComputing  Stage = "computing"
	StageEvaluating Stage = "evaluating"
	StagePersisting Stage = "persisting"
	StageNotifying  Stage = "notifying"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// InstrumentResult is the terminal record for one instrument in one run.
type InstrumentResult struct {
	Instrument contracts.Instrument `json:"instrument"`
	Stage      Stage                `json:"stage"`
	// FailedAt is the stage the instrument was in when it failed.
	FailedAt Stage  `json:"failed_at,omitempty"`
	Reason   string `json:"reason,omitempty"`

	BarsFetched  int `json:"bars_fetched"`
	NewsFetched  int `json:"news_fetched"`
	NewsScored   int `json:"news_scored"`
	Candidates   int `json:"candidates"`
	Inserted     int `json:"inserted"`
	Duplicates   int `json:"duplicates"`
	Notified     int `json:"notified"`
	StrategyErrs int `json:"strategy_errors"`
}

// Failed reports whether the instrument ended in the failed state.
func (r InstrumentResult) Failed() bool {
	return r.Stage == StageFailed
}

// RunSummary aggregates the terminal states of one run.
type RunSummary struct {
	Date       time.Time          `json:"date"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Results    []InstrumentResult `json:"results"`

	Total      int `json:"total"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Notified   int `json:"notified"`
}

func summarize(date time.Time, startedAt time.Time, results []InstrumentResult) RunSummary {
	summary := RunSummary{
		Date:       date,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Results:    results,
		Total:      len(results),
	}

	for _, r := range results {
		if r.Failed() {
			summary.Failed++
		} else {
			summary.Done++
		}
		summary.Inserted += r.Inserted
		summary.Duplicates += r.Duplicates
		summary.Notified += r.Notified
	}

	return summary
}
