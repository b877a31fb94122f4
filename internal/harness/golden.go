package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/flowsync/internal/reconcile"
	"github.com/roach88/flowsync/internal/workflow"
)

// Snapshot returns the canonical JSON of a run: pass reports, final
// records and trigger hook calls. Error messages and fingerprints are
// left out; codes, ids and whether each record still matches its last
// synced graph are kept.
func Snapshot(name string, result *Result) ([]byte, error) {
	passes := make([]any, len(result.Passes))
	for i, p := range result.Passes {
		if p.ErrorCode != "" {
			passes[i] = map[string]any{"error": p.ErrorCode}
			continue
		}
		passes[i] = map[string]any{
			"inserted":     stringList(p.Report.Inserted),
			"updated":      stringList(p.Report.Updated),
			"skipped":      stringList(p.Report.Skipped),
			"failed":       failureList(p.Report.Failed),
			"hookFailures": failureList(p.Report.HookFailures),
			"fetches":      p.Report.Fetches,
		}
	}

	recs := make([]any, len(result.Records))
	for i, rec := range result.Records {
		recs[i] = map[string]any{
			"id":              rec.ID,
			"name":            rec.Name,
			"nodes":           stringList(nodeIDs(rec)),
			"createdAt":       rec.CreatedAt,
			"updatedAt":       rec.UpdatedAt,
			"isDisabled":      rec.IsDisabled,
			"locallyModified": rec.LocallyModified(),
		}
	}

	registered := make([]any, len(result.Registered))
	for i, r := range result.Registered {
		registered[i] = map[string]any{"workflowId": r.WorkflowID, "node": r.Node.ID}
	}

	return workflow.MarshalCanonical(map[string]any{
		"scenario": name,
		"passes":   passes,
		"records":  recs,
		"hooks": map[string]any{
			"registered": registered,
			"cleaned":    stringList(result.Cleaned),
		},
	})
}

func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func failureList(errs []*reconcile.SyncError) []any {
	out := make([]any, len(errs))
	for i, e := range errs {
		out[i] = map[string]any{"code": string(e.Code), "workflowId": e.WorkflowID}
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can make further checks. Test failure
// (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
