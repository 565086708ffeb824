package watch

import (
	"time"

	"github.com/google/uuid"
)

// Report aggregates the outcomes of one run. It is owned by a single run,
// mutated only between the concurrent phases of the scheduler, and never
// shared across runs.
type Report struct {
	// RunID correlates every log line of one run.
	RunID string

	Total      int
	Successful int
	Failed     int

	// NoValue counts items whose directory entry exposed no statistic.
	// Informational: those items are already tallied in Successful or
	// Failed according to the scheduler's policy.
	NoValue int

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewReport starts an empty report for a run beginning at start.
func NewReport(start time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: start,
	}
}

// Append folds one terminal Result into the tallies. The caller decides
// which bucket the result lands in; the report stays free of policy.
func (r *Report) Append(res Result, successful bool) {
	r.Total++
	if successful {
		r.Successful++
	} else {
		r.Failed++
	}
	if res.Success && !res.HasCount {
		r.NoValue++
	}
}

// Finish stamps the end of the run.
func (r *Report) Finish(end time.Time) {
	r.FinishedAt = end
}

// Duration is the wall-clock span of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SuccessRate returns the successful share in [0, 1]. An empty run counts
// as fully successful.
func (r *Report) SuccessRate() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Successful) / float64(r.Total)
}
