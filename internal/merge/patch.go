package merge

import (
	"fmt"

	"github.com/roach88/flowsync/internal/workflow"
)

// Patch applies a local edit to rec and returns the result with a fresh
// fingerprint.
//
// A shallow patch overwrites each named top-level field. A deep patch
// merges objects recursively and skips null values; sequences are
// replaced in both modes. The id is never changed.
func Patch(rec workflow.Record, patch map[string]any, deep bool) (workflow.Record, error) {
	doc, err := workflow.ToDocument(rec)
	if err != nil {
		return workflow.Record{}, fmt.Errorf("patch %s: %w", rec.ID, err)
	}

	src := workflow.Document(patch).Clone()
	if deep {
		doc = workflow.Overlay(doc, src)
	} else {
		for k, v := range src {
			doc[k] = v
		}
	}

	out, err := doc.Record()
	if err != nil {
		return workflow.Record{}, fmt.Errorf("patch %s: %w", rec.ID, err)
	}
	out.ID = rec.ID
	if err := out.Refresh(); err != nil {
		return workflow.Record{}, fmt.Errorf("patch %s: %w", rec.ID, err)
	}
	return out, nil
}
