package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/flowsync/internal/workflow"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// assertRecord checks that the record exists, carries the expected
// document fields (subset match) and has the expected node order.
func assertRecord(result *Result, a Assertion) error {
	rec, ok := result.Record(a.ID)
	if !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record %s", a.ID),
			Actual:   "not found",
		}
	}

	if a.Nodes != nil {
		got := nodeIDs(rec)
		if !slices.Equal(got, a.Nodes) {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("record %s nodes %v", a.ID, a.Nodes),
				Actual:   fmt.Sprintf("nodes %v", got),
			}
		}
	}

	if len(a.Expect) == 0 {
		return nil
	}
	doc, err := workflow.ToDocument(rec)
	if err != nil {
		return fmt.Errorf("record %s: %w", a.ID, err)
	}
	actual := normalize(map[string]any(doc))
	expected := normalize(a.Expect)
	if !matchSubset(actual, expected) {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record %s with %v", a.ID, expected),
			Actual:   fmt.Sprintf("%v", subsetView(actual, expected)),
		}
	}
	return nil
}

func assertRecordAbsent(result *Result, a Assertion) error {
	if _, ok := result.Record(a.ID); ok {
		return &AssertionError{
			Type:     AssertRecordAbsent,
			Expected: fmt.Sprintf("no record %s", a.ID),
			Actual:   "record exists",
		}
	}
	return nil
}

func assertRecordCount(result *Result, a Assertion) error {
	if len(result.Records) != a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d records", a.Count),
			Actual:   fmt.Sprintf("%d records", len(result.Records)),
		}
	}
	return nil
}

// assertHookCount counts register or cleanup calls, optionally for one
// workflow.
func assertHookCount(result *Result, a Assertion) error {
	count := 0
	switch a.Hook {
	case "register":
		for _, r := range result.Registered {
			if a.ID == "" || r.WorkflowID == a.ID {
				count++
			}
		}
	case "cleanup":
		for _, id := range result.Cleaned {
			if a.ID == "" || id == a.ID {
				count++
			}
		}
	}

	if count != a.Count {
		target := "all workflows"
		if a.ID != "" {
			target = a.ID
		}
		return &AssertionError{
			Type:     AssertHookCount,
			Expected: fmt.Sprintf("%s called %d times for %s", a.Hook, a.Count, target),
			Actual:   fmt.Sprintf("called %d times", count),
		}
	}
	return nil
}

func assertFetchCount(result *Result, a Assertion) error {
	if got := result.Fetches[a.ID]; got != a.Count {
		return &AssertionError{
			Type:     AssertFetchCount,
			Expected: fmt.Sprintf("%s fetched %d times", a.ID, a.Count),
			Actual:   fmt.Sprintf("fetched %d times", got),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRecord:
			err = assertRecord(result, assertion)
		case AssertRecordAbsent:
			err = assertRecordAbsent(result, assertion)
		case AssertRecordCount:
			err = assertRecordCount(result, assertion)
		case AssertHookCount:
			err = assertHookCount(result, assertion)
		case AssertFetchCount:
			err = assertFetchCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func nodeIDs(rec workflow.Record) []string {
	ids := make([]string, len(rec.Graph.Nodes))
	for i, n := range rec.Graph.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// normalize round-trips v through JSON so YAML ints, json.Number and
// float64 compare equal.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// matchSubset reports whether actual contains expected. Objects match
// when every expected key matches; everything else must be equal.
func matchSubset(actual, expected any) bool {
	em, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	am, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, ev := range em {
		av, exists := am[k]
		if !exists || !matchSubset(av, ev) {
			return false
		}
	}
	return true
}

// subsetView returns the fields of actual named by expected, for error
// messages.
func subsetView(actual, expected any) any {
	em, ok := expected.(map[string]any)
	if !ok {
		return actual
	}
	am, ok := actual.(map[string]any)
	if !ok {
		return actual
	}
	out := make(map[string]any, len(em))
	for k, ev := range em {
		if av, exists := am[k]; exists {
			out[k] = subsetView(av, ev)
		}
	}
	return out
}
