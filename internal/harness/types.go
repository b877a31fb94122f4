package harness

import (
	"github.com/roach88/flowsync/internal/reconcile"
	"github.com/roach88/flowsync/internal/testutil"
	"github.com/roach88/flowsync/internal/workflow"
)

// PassOutcome is the result of one pass.
type PassOutcome struct {
	// Report is the pass report. Empty when the pass did not run.
	Report reconcile.Report `json:"report"`

	// ErrorCode is set when the pass did not run.
	ErrorCode string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every pass expectation and assertion holds.
	Pass bool `json:"pass"`

	// Passes holds one outcome per executed pass, in order.
	Passes []PassOutcome `json:"passes"`

	// Records is the final record set, sorted by id.
	Records []workflow.Record `json:"records"`

	// Registered and Cleaned are the trigger hook calls in order.
	Registered []testutil.Registration `json:"registered"`
	Cleaned    []string                `json:"cleaned"`

	// Fetches counts content downloads per workflow id over all passes.
	Fetches map[string]int `json:"fetches"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Passes:     []PassOutcome{},
		Records:    []workflow.Record{},
		Registered: []testutil.Registration{},
		Cleaned:    []string{},
		Fetches:    make(map[string]int),
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Record returns the final record with id.
func (r *Result) Record(id string) (workflow.Record, bool) {
	for _, rec := range r.Records {
		if rec.ID == id {
			return rec, true
		}
	}
	return workflow.Record{}, false
}
