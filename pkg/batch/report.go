package batch

import (
	"time"

	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// Abort reasons recorded on a Report.
const (
	AbortAuthFailure = "auth_failure"
	AbortCancelled   = "cancelled"
)

// Report is the outcome of one scheduler run.
//
// Only schedule.OutcomeSuccess counts toward Completed. HTTP and transport
// failures still return a FetchResult in Results but are counted in Failed.
// Completed+Failed equals TotalRequested unless AbortedEarly is set, in which
// case the remaining items were never attempted.
type Report struct {
	RunID          string                 `json:"run_id"`
	TotalRequested int                    `json:"total_requests"`
	Completed      int                    `json:"completed_requests"`
	Failed         int                    `json:"failed_requests"`
	Results        []schedule.FetchResult `json:"data"`
	Errors         []string               `json:"errors"`
	AbortedEarly   bool                   `json:"aborted_early"`
	AbortReason    string                 `json:"abort_reason,omitempty"`
	Batches        int                    `json:"batches"`
	Duration       time.Duration          `json:"-"`
}

// Success reports whether every requested item was fetched successfully.
func (r *Report) Success() bool {
	return !r.AbortedEarly && r.Failed == 0
}

// HasAuthFailure reports whether any result was rejected by the upstream.
func (r *Report) HasAuthFailure() bool {
	for _, res := range r.Results {
		if res.Outcome.Kind == schedule.OutcomeAuthFailure {
			return true
		}
	}
	return false
}

// Skipped returns the number of items that were never attempted.
func (r *Report) Skipped() int {
	return r.TotalRequested - len(r.Results)
}

func (r *Report) record(results []schedule.FetchResult) {
	for _, res := range results {
		r.Results = append(r.Results, res)
		if res.OK() {
			r.Completed++
			continue
		}
		r.Failed++
		r.Errors = append(r.Errors, res.Err().Error())
	}
}
