package records

import (
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowsync/internal/workflow"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultSeed returns the bundled default workflows.
func DefaultSeed() ([]workflow.Document, error) {
	return parseSeed(defaultsYAML)
}

func parseSeed(data []byte) ([]workflow.Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var file struct {
		Workflows []map[string]any `yaml:"workflows"`
	}
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse default workflows: %w", err)
	}
	docs := make([]workflow.Document, len(file.Workflows))
	for i, w := range file.Workflows {
		docs[i] = workflow.Document(w)
	}
	return docs, nil
}

// seedRecords builds the first-run records through workflow.New so they
// carry the same defaults as any other new record.
func (l *Library) seedRecords() (map[string]workflow.Record, error) {
	docs := l.seed
	if docs == nil {
		var err error
		if docs, err = DefaultSeed(); err != nil {
			return nil, err
		}
	}

	out := make(map[string]workflow.Record, len(docs))
	for i, d := range docs {
		rec, err := workflow.New(d, workflow.NewOptions{
			Version: l.version,
			IDs:     l.ids,
			Clock:   l.clock,
		})
		if err != nil {
			return nil, fmt.Errorf("seed workflow %d: %w", i, err)
		}
		out[rec.ID] = rec
	}
	return out, nil
}
