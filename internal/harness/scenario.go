package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one declarative conformance test: a patch, a run length, and
// assertions over the recorded frames.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Patch is the path to the CUE patch file, relative to the scenario
	// file location.
	Patch string `yaml:"patch"`

	// Frames is the number of frames to run. The first frame executes at
	// virtual t=0.
	Frames int `yaml:"frames"`

	// DtMS is the virtual time advance per frame. Defaults to 1000/60.
	DtMS float64 `yaml:"dt_ms,omitempty"`

	// Sample lists the debug keys to record per frame. Empty records every
	// key the program exposes.
	Sample []string `yaml:"sample,omitempty"`

	// Swaps stages replacement patches at given frames, exercising the
	// hot-swap and continuity paths.
	Swaps []SwapStep `yaml:"swaps,omitempty"`

	// Inputs feeds dynamic domain counts at given frames.
	Inputs []InputStep `yaml:"inputs,omitempty"`

	// Assertions validate the recording.
	Assertions []Assertion `yaml:"assertions"`
}

// SwapStep stages a new patch before the given frame executes.
type SwapStep struct {
	// Frame is the 1-based frame at which the swap becomes visible.
	Frame int64 `yaml:"frame"`

	// Patch is the replacement patch path, relative to the scenario file.
	Patch string `yaml:"patch"`
}

// InputStep sets dynamic domain counts before the given frame executes.
type InputStep struct {
	Frame  int64          `yaml:"frame"`
	Counts map[string]int `yaml:"counts"`
}

// Assertion validates one property of the recording.
type Assertion struct {
	// Type selects the check:
	//   - "signal_at": a signal component at one frame
	//   - "signal_series": a signal component across consecutive frames
	//   - "field_at": one component of one field element at one frame
	//   - "pass_count": number of render passes at one frame
	//   - "diag_count": occurrences of a runtime diagnostic code
	Type string `yaml:"type"`

	// Key is the debug key ("block.port" or "in:block.port").
	Key string `yaml:"key,omitempty"`

	// Frame is the 1-based frame to inspect. 0 means the last frame.
	Frame int64 `yaml:"frame,omitempty"`

	// Element and Component address into a field sample.
	Element   int `yaml:"element,omitempty"`
	Component int `yaml:"component,omitempty"`

	// Value is the expected scalar (signal_at, field_at).
	Value float64 `yaml:"value,omitempty"`

	// Values is the expected per-frame series starting at frame 1
	// (signal_series).
	Values []float64 `yaml:"values,omitempty"`

	// Within is the comparison tolerance. 0 means exact.
	Within float64 `yaml:"within,omitempty"`

	// Count is the expected occurrence count (pass_count, diag_count).
	Count int `yaml:"count"`

	// Code is the runtime diagnostic code (diag_count).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertSignalAt     = "signal_at"
	AssertSignalSeries = "signal_series"
	AssertFieldAt      = "field_at"
	AssertPassCount    = "pass_count"
	AssertDiagCount    = "diag_count"
)

// LoadScenario reads and parses a scenario YAML file. Patch paths resolve
// relative to the scenario file's directory. Unknown YAML fields are
// rejected so typos fail loudly instead of silently skipping checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return parseScenario(data, filepath.Dir(path))
}

func parseScenario(data []byte, baseDir string) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if baseDir != "" {
		if s.Patch != "" && !filepath.IsAbs(s.Patch) {
			s.Patch = filepath.Join(baseDir, s.Patch)
		}
		for i := range s.Swaps {
			if sw := s.Swaps[i].Patch; sw != "" && !filepath.IsAbs(sw) {
				s.Swaps[i].Patch = filepath.Join(baseDir, sw)
			}
		}
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Patch == "" {
		return fmt.Errorf("patch is required")
	}
	if _, err := os.Stat(s.Patch); err != nil {
		return fmt.Errorf("patch file not found: %s", s.Patch)
	}
	if s.Frames <= 0 {
		return fmt.Errorf("frames must be positive")
	}
	if s.DtMS < 0 {
		return fmt.Errorf("dt_ms must be non-negative")
	}

	lastSwap := int64(0)
	for i, sw := range s.Swaps {
		if sw.Frame <= 1 {
			return fmt.Errorf("swaps[%d]: frame must be greater than 1 (the first frame runs the base patch)", i)
		}
		if sw.Frame <= lastSwap {
			return fmt.Errorf("swaps[%d]: frames must be strictly increasing", i)
		}
		lastSwap = sw.Frame
		if sw.Patch == "" {
			return fmt.Errorf("swaps[%d]: patch is required", i)
		}
		if _, err := os.Stat(sw.Patch); err != nil {
			return fmt.Errorf("swaps[%d]: patch file not found: %s", i, sw.Patch)
		}
	}

	for i, in := range s.Inputs {
		if in.Frame < 1 {
			return fmt.Errorf("inputs[%d]: frame must be at least 1", i)
		}
		if len(in.Counts) == 0 {
			return fmt.Errorf("inputs[%d]: counts is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], int64(s.Frames)); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion, frames int64) error {
	if a.Frame < 0 || a.Frame > frames {
		return fmt.Errorf("assertions[%d]: frame %d outside the run", index, a.Frame)
	}
	switch a.Type {
	case AssertSignalAt, AssertFieldAt:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for %s", index, a.Type)
		}
	case AssertSignalSeries:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for signal_series", index)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values list is required for signal_series", index)
		}
		if int64(len(a.Values)) > frames {
			return fmt.Errorf("assertions[%d]: %d values but only %d frames", index, len(a.Values), frames)
		}
	case AssertPassCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertDiagCount:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diag_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
