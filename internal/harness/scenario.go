package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one end-to-end sync test.
type Scenario struct {
	// Name uniquely identifies this scenario. Used as the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// CheckUpdateDate enables the recency gate for every pass.
	CheckUpdateDate bool `yaml:"check_update_date,omitempty"`

	// Clock is the start time in Unix milliseconds. Default: 1000.
	Clock int64 `yaml:"clock,omitempty"`

	// Local lists records present before the first pass.
	Local []LocalRecord `yaml:"local,omitempty"`

	// Passes run in order against the same store.
	Passes []PassStep `yaml:"passes"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// LocalRecord is a record stored before the first pass.
type LocalRecord struct {
	ID string `yaml:"id"`

	// Workflow is the record in document form.
	Workflow map[string]any `yaml:"workflow"`

	// Synced marks the record as written by an earlier pass, so edits made
	// afterwards count as local modifications.
	Synced bool `yaml:"synced,omitempty"`
}

// PassStep configures the remote catalog for one pass and runs it.
type PassStep struct {
	// Clock, when set, moves the clock before the pass.
	Clock int64 `yaml:"clock,omitempty"`

	// Edits are local changes applied before the pass.
	Edits []EditStep `yaml:"edits,omitempty"`

	Listing []ListingEntry `yaml:"listing"`

	// Content maps a workflow id to the content served for it.
	Content map[string]map[string]any `yaml:"content,omitempty"`

	// FailFetch lists ids whose content fetch fails.
	FailFetch []string `yaml:"fail_fetch,omitempty"`

	// FailListing makes the listing request fail.
	FailListing bool `yaml:"fail_listing,omitempty"`

	Expect *PassExpect `yaml:"expect,omitempty"`
}

// EditStep is a local update applied through the record store.
type EditStep struct {
	ID    string         `yaml:"id"`
	Patch map[string]any `yaml:"patch"`
	Deep  bool           `yaml:"deep,omitempty"`
}

// ListingEntry is one remote listing entry.
type ListingEntry struct {
	ID string `yaml:"id"`

	// Fingerprint is a literal fingerprint, "@local" or "@content".
	Fingerprint string `yaml:"fingerprint,omitempty"`

	UpdatedAt int64 `yaml:"updated_at,omitempty"`
}

// Fingerprint placeholders resolved when a pass runs.
const (
	FingerprintLocal   = "@local"
	FingerprintContent = "@content"
)

// PassExpect is checked against a pass report. Nil lists are not checked.
type PassExpect struct {
	Inserted []string `yaml:"inserted,omitempty"`
	Updated  []string `yaml:"updated,omitempty"`
	Skipped  []string `yaml:"skipped,omitempty"`

	// Failed maps a workflow id to its expected error code. The empty id
	// stands for pass-wide failures.
	Failed map[string]string `yaml:"failed,omitempty"`

	// Fetches is the expected number of content downloads.
	Fetches *int `yaml:"fetches,omitempty"`

	// Error is the expected code of a pass that did not run.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of record, record_absent, record_count, hook_count and
	// fetch_count.
	Type string `yaml:"type"`

	// ID selects the record (record, record_absent, fetch_count) or
	// narrows hook calls to one workflow (hook_count).
	ID string `yaml:"id,omitempty"`

	// Expect holds document fields the record must carry (record).
	// Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Nodes is the expected node id order (record).
	Nodes []string `yaml:"nodes,omitempty"`

	// Hook is "register" or "cleanup" (hook_count).
	Hook string `yaml:"hook,omitempty"`

	// Count is the expected number (record_count, hook_count, fetch_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRecord       = "record"
	AssertRecordAbsent = "record_absent"
	AssertRecordCount  = "record_count"
	AssertHookCount    = "hook_count"
	AssertFetchCount   = "fetch_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Passes) == 0 {
		return fmt.Errorf("passes list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool)
	for i, rec := range s.Local {
		if rec.ID == "" {
			return fmt.Errorf("local[%d]: id is required", i)
		}
		if seen[rec.ID] {
			return fmt.Errorf("local[%d]: duplicate id %q", i, rec.ID)
		}
		seen[rec.ID] = true
		if rec.Workflow == nil {
			return fmt.Errorf("local[%d]: workflow is required", i)
		}
	}

	for i, pass := range s.Passes {
		for j, e := range pass.Listing {
			if e.ID == "" {
				return fmt.Errorf("passes[%d].listing[%d]: id is required", i, j)
			}
			if e.Fingerprint == FingerprintContent && pass.Content[e.ID] == nil {
				return fmt.Errorf("passes[%d].listing[%d]: %s needs content for %q", i, j, FingerprintContent, e.ID)
			}
		}
		for j, edit := range pass.Edits {
			if edit.ID == "" {
				return fmt.Errorf("passes[%d].edits[%d]: id is required", i, j)
			}
			if edit.Patch == nil {
				return fmt.Errorf("passes[%d].edits[%d]: patch is required", i, j)
			}
		}
		if pass.Expect != nil && pass.Expect.Error != "" && !pass.FailListing {
			return fmt.Errorf("passes[%d].expect: error is only produced by fail_listing", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRecord:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for record", index)
		}
		if len(a.Expect) == 0 && a.Nodes == nil {
			return fmt.Errorf("assertions[%d]: expect or nodes is required for record", index)
		}
	case AssertRecordAbsent:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for record_absent", index)
		}
	case AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record_count", index)
		}
	case AssertHookCount:
		if a.Hook != "register" && a.Hook != "cleanup" {
			return fmt.Errorf("assertions[%d]: hook must be register or cleanup, got %q", index, a.Hook)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for hook_count", index)
		}
	case AssertFetchCount:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for fetch_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fetch_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
