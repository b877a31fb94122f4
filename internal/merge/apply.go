package merge

import (
	"fmt"

	"github.com/roach88/flowsync/internal/workflow"
)

// Fields owned by the local side. The remote never supplies them.
var localOnlyFields = []string{"id", "createdAt", "contentHash", "syncedHash"}

// ApplyOptions configures record construction for Insert.
type ApplyOptions struct {
	// DuplicateID assigns a fresh id instead of the content's id.
	DuplicateID bool

	// Version stamps new records that carry none.
	Version string

	// KeepNodes inserts the content's graph exactly as given, so the stored
	// fingerprint equals the content fingerprint. Without it an empty graph
	// receives a default trigger node.
	KeepNodes bool

	IDs   workflow.IDGenerator
	Clock workflow.Clock
}

// Apply builds the record that results from decision. The returned record
// has a fresh fingerprint and SyncedHash equal to it.
//
// updatedAt is left as merged; the record store stamps it on write.
func Apply(decision Decision, local *workflow.Record, content *Content, opts ApplyOptions) (workflow.Record, error) {
	if content == nil {
		return workflow.Record{}, fmt.Errorf("apply %s: no content", decision)
	}

	switch decision {
	case Insert:
		rec, err := workflow.New(content.Doc, workflow.NewOptions{
			DuplicateID: opts.DuplicateID,
			Version:     opts.Version,
			KeepNodes:   opts.KeepNodes,
			IDs:         opts.IDs,
			Clock:       opts.Clock,
		})
		if err != nil {
			return workflow.Record{}, fmt.Errorf("apply insert: %w", err)
		}
		rec.SyncedHash = rec.Fingerprint
		return rec, nil

	case Update, UpdateWithGraphMerge:
		if local == nil {
			return workflow.Record{}, fmt.Errorf("apply %s: no local record", decision)
		}
		return mergeInto(decision, *local, content)

	default:
		return workflow.Record{}, fmt.Errorf("apply %s: decision does not write", decision)
	}
}

func mergeInto(decision Decision, local workflow.Record, content *Content) (workflow.Record, error) {
	base, err := workflow.ToDocument(local)
	if err != nil {
		return workflow.Record{}, fmt.Errorf("apply %s: %w", decision, err)
	}

	remote := content.Doc.Clone()
	for _, k := range localOnlyFields {
		delete(remote, k)
	}

	// The remote graph replaces the local one as a unit. Only zoom, which is
	// editor view state, survives from local when the remote omits it.
	graph, hasGraph := remote["drawflow"].(map[string]any)
	delete(remote, "drawflow")

	var merged workflow.Document
	if decision == Update {
		merged = workflow.Overlay(base, remote)
	} else {
		merged = workflow.Fill(base, remote)
	}
	if hasGraph {
		if _, ok := graph["zoom"]; !ok {
			if localGraph, ok := base["drawflow"].(map[string]any); ok && localGraph["zoom"] != nil {
				graph["zoom"] = localGraph["zoom"]
			}
		}
		merged["drawflow"] = graph
	}

	rec, err := merged.Record()
	if err != nil {
		return workflow.Record{}, fmt.Errorf("apply %s: %w", decision, err)
	}
	rec.ID = local.ID
	rec.CreatedAt = local.CreatedAt
	if err := rec.Refresh(); err != nil {
		return workflow.Record{}, fmt.Errorf("apply %s: %w", decision, err)
	}
	rec.SyncedHash = rec.Fingerprint
	return rec, nil
}
