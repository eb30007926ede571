package orchestrator

import (
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/series"
)

// State is a step of the per-asset pipeline.
type State string

const (
	StateLoadHistory State = "load_history"
	StateFetchLive   State = "fetch_live"
	StateMerge       State = "merge"
	StateClean       State = "clean"
	StateForecast    State = "forecast"
	StateEvaluate    State = "evaluate"
	StatePersist     State = "persist"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// AssetOutcome is the terminal result for one asset.
// On failure, State is the step that failed and Err the reason.
type AssetOutcome struct {
	Asset    string
	State    State
	Err      error
	Origin   series.Origin
	Record   *domain.ForecastRecord
	Duration time.Duration
}

// Failed reports whether the asset did not reach StateDone.
func (o AssetOutcome) Failed() bool {
	return o.State != StateDone
}

// RunResult contains results from one pipeline run.
type RunResult struct {
	RunID     string
	Model     string // configured model label
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []AssetOutcome // registry order
}

// Succeeded returns the assets that reached StateDone.
func (r *RunResult) Succeeded() []string {
	var out []string
	for _, o := range r.Outcomes {
		if !o.Failed() {
			out = append(out, o.Asset)
		}
	}
	return out
}

// Failed returns the outcomes of failed assets.
func (r *RunResult) Failed() []AssetOutcome {
	var out []AssetOutcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// HasFailures reports whether any asset failed.
func (r *RunResult) HasFailures() bool {
	return len(r.Failed()) > 0
}
