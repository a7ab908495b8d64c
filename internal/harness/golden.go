package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/motivelab/motive/internal/ir"
)

// RunWithGolden runs a scenario and compares the full recording against
// testdata/golden/{scenario.Name}.golden. The snapshot is canonical JSON,
// so a byte-level diff is also a semantic diff.
//
// A missing golden file is recorded on first run; regenerate after an
// intentional behavior change with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot, err := marshalSnapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	if _, statErr := os.Stat(filepath.Join("testdata/golden", scenario.Name+".golden")); os.IsNotExist(statErr) {
		if err := g.Update(t, scenario.Name, snapshot); err != nil {
			return nil, fmt.Errorf("record golden: %w", err)
		}
	}
	g.Assert(t, scenario.Name, snapshot)
	return result, nil
}

// marshalSnapshot renders the recording as canonical JSON. Map iteration
// order never leaks into the bytes; keys sort canonically.
func marshalSnapshot(name string, result *Result) ([]byte, error) {
	frames := make([]any, 0, len(result.Frames))
	for _, rec := range result.Frames {
		entry := map[string]any{
			"frame":   rec.Frame,
			"time_ms": rec.TimeMS,
			"passes":  rec.Passes,
		}
		if len(rec.Signals) > 0 {
			signals := make(map[string]any, len(rec.Signals))
			for k, v := range rec.Signals {
				signals[k] = floatsAny(v)
			}
			entry["signals"] = signals
		}
		if len(rec.Fields) > 0 {
			fields := make(map[string]any, len(rec.Fields))
			for k, f := range rec.Fields {
				fields[k] = map[string]any{
					"count":  f.Count,
					"stride": f.Stride,
					"data":   floatsAny(f.Data),
				}
			}
			entry["fields"] = fields
		}
		frames = append(frames, entry)
	}

	diags := make([]any, 0, len(result.Diags))
	for _, d := range result.Diags {
		diags = append(diags, map[string]any{
			"code": d.Code, "key": d.Key, "frame": d.Frame, "count": d.Count,
		})
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario": name,
		"frames":   frames,
		"diags":    diags,
	})
}

func floatsAny(vs []float64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
