package merge

import (
	"fmt"

	"github.com/roach88/flowsync/internal/workflow"
)

// Content is fetched remote workflow content in both its raw document form
// and its decoded form.
//
// Doc keeps track of which fields the remote actually sent. Record carries
// a fingerprint recomputed from the remote graph; any contentHash sent by
// the remote is ignored.
type Content struct {
	Doc    workflow.Document
	Record workflow.Record
}

// NewContent decodes doc and recomputes its fingerprint.
func NewContent(doc workflow.Document) (*Content, error) {
	rec, err := doc.Record()
	if err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := rec.Refresh(); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &Content{Doc: doc, Record: rec}, nil
}

// ParseContent parses raw JSON content.
func ParseContent(raw []byte) (*Content, error) {
	doc, err := workflow.ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	return NewContent(doc)
}

// Fingerprint returns the recomputed graph fingerprint.
func (c *Content) Fingerprint() string {
	return c.Record.Fingerprint
}
