package reconcile

import "sort"

// Report summarizes one pass. Id lists are sorted.
type Report struct {
	Inserted []string `json:"inserted"`
	Updated  []string `json:"updated"`
	Skipped  []string `json:"skipped"`

	// Failed holds per-entry and persistence failures.
	Failed []*SyncError `json:"failed"`

	// HookFailures holds trigger side effects that failed after commit.
	HookFailures []*SyncError `json:"hookFailures"`

	// Fetches counts content downloads.
	Fetches int `json:"fetches"`
}

func newReport() Report {
	return Report{
		Inserted:     []string{},
		Updated:      []string{},
		Skipped:      []string{},
		Failed:       []*SyncError{},
		HookFailures: []*SyncError{},
	}
}

// Changed reports whether the pass wrote any record.
func (r Report) Changed() bool {
	return len(r.Inserted) > 0 || len(r.Updated) > 0
}

func (r *Report) sort() {
	sort.Strings(r.Inserted)
	sort.Strings(r.Updated)
	sort.Strings(r.Skipped)
	sort.SliceStable(r.Failed, func(i, j int) bool {
		return r.Failed[i].WorkflowID < r.Failed[j].WorkflowID
	})
	sort.SliceStable(r.HookFailures, func(i, j int) bool {
		return r.HookFailures[i].WorkflowID < r.HookFailures[j].WorkflowID
	})
}
