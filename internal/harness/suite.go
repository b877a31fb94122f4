package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteOptions controls RunDir.
type SuiteOptions struct {
	// Filter is a glob matched against the file name without extension.
	// Empty runs every scenario.
	Filter string

	// GoldenDir holds {scenario.Name}.golden snapshots. Empty disables
	// golden comparison. A scenario without a golden file is judged on
	// its assertions alone.
	GoldenDir string

	// Update rewrites golden files instead of comparing them.
	Update bool
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match" | "mismatch" | "updated"
	Errors []string `json:"errors,omitempty"`
}

// Golden comparison outcomes.
const (
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// Failures returns the scenarios that did not pass.
func (r *SuiteResult) Failures() []ScenarioResult {
	var out []ScenarioResult
	for _, s := range r.Scenarios {
		if !s.Pass {
			out = append(out, s)
		}
	}
	return out
}

// RunDir loads and runs every *.yaml scenario in dir, in file name order.
//
// A scenario that fails to load counts as failed; the remaining scenarios
// still run. The error is non-nil only when dir cannot be listed or the
// filter is malformed.
func RunDir(dir string, opts SuiteOptions) (*SuiteResult, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scenarios directory: %w", err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	sort.Strings(paths)

	result := &SuiteResult{Scenarios: []ScenarioResult{}}
	for _, path := range paths {
		if opts.Filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			matched, err := filepath.Match(opts.Filter, name)
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}

		sr := runFile(path, opts)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	return result, nil
}

func runFile(path string, opts SuiteOptions) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(path), Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return sr
	}
	sr.Errors = result.Errors
	sr.Pass = result.Pass

	if opts.GoldenDir == "" {
		return sr
	}

	golden, err := compareGolden(opts, scenario.Name, result)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
		return sr
	}
	sr.Golden = golden
	if golden == GoldenMismatch {
		sr.Pass = false
		sr.Errors = append(sr.Errors, "snapshot does not match golden file")
	}
	return sr
}

// compareGolden returns "" when no golden file exists and Update is off.
func compareGolden(opts SuiteOptions, name string, result *Result) (string, error) {
	data, err := Snapshot(name, result)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	path := filepath.Join(opts.GoldenDir, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), data) {
		return GoldenMismatch, nil
	}
	return GoldenMatch, nil
}
