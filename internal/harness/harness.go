package harness

import (
	"fmt"

	"github.com/motivelab/motive/internal/blocks"
	"github.com/motivelab/motive/internal/compiler"
	"github.com/motivelab/motive/internal/engine"
	"github.com/motivelab/motive/internal/ir"
	"github.com/motivelab/motive/internal/patchfile"
	"github.com/motivelab/motive/internal/testutil"
)

// Run executes a scenario: compile every patch it names, step the engine on
// the virtual timeline, record the sampled keys per frame, then evaluate
// the assertions. A compile or frame error aborts the run; assertion
// failures accumulate in the result instead.
func Run(scenario *Scenario) (*Result, error) {
	progs, err := compilePatches(scenario)
	if err != nil {
		return nil, err
	}

	e := engine.New(testutil.Logger())
	e.Swap(progs[0])

	driver := testutil.NewFrameDriver(e)
	if scenario.DtMS > 0 {
		driver.DtMS = scenario.DtMS
	}

	swapAt := make(map[int64]*ir.Program, len(scenario.Swaps))
	for i, sw := range scenario.Swaps {
		swapAt[sw.Frame] = progs[i+1]
	}
	inputAt := make(map[int64]map[string]int, len(scenario.Inputs))
	for _, in := range scenario.Inputs {
		inputAt[in.Frame] = in.Counts
	}

	result := &Result{Pass: true}
	for n := int64(1); n <= int64(scenario.Frames); n++ {
		if prog, ok := swapAt[n]; ok {
			e.Swap(prog)
		}
		frame, err := driver.StepInput(engine.FrameInput{Counts: inputAt[n]})
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", n, err)
		}
		result.Frames = append(result.Frames, record(e, frame, scenario.Sample))
	}

	for _, d := range e.Diagnostics() {
		result.Diags = append(result.Diags, DiagRecord{
			Code: string(d.Code), Key: d.Key, Frame: d.Frame, Count: int64(d.Count),
		})
	}

	checkAssertions(result, scenario)
	return result, nil
}

func compilePatches(scenario *Scenario) ([]*ir.Program, error) {
	paths := []string{scenario.Patch}
	for _, sw := range scenario.Swaps {
		paths = append(paths, sw.Patch)
	}

	tokens := testutil.Tokens(len(paths))
	progs := make([]*ir.Program, 0, len(paths))
	for i, path := range paths {
		p, err := patchfile.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		prog, err := compiler.Compile(blocks.Catalog(), p, testutil.Logger())
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		// Fixed tokens keep golden snapshots byte-stable across runs.
		progs = append(progs, testutil.Retoken(prog, tokens[i]))
	}
	return progs, nil
}

func record(e *engine.Engine, frame *engine.Frame, sample []string) FrameRecord {
	keys := sample
	if len(keys) == 0 {
		keys = e.DebugKeys()
	}

	rec := FrameRecord{
		Frame:  frame.Number,
		TimeMS: frame.TimeMS,
		Passes: len(frame.Passes),
	}
	for _, key := range keys {
		if v, ok := e.ReadSignal(key); ok {
			if rec.Signals == nil {
				rec.Signals = make(map[string][]float64)
			}
			rec.Signals[key] = append([]float64(nil), v...)
			continue
		}
		if data, count, ok := e.ReadField(key); ok {
			if rec.Fields == nil {
				rec.Fields = make(map[string]FieldSample)
			}
			stride := 0
			if count > 0 {
				stride = len(data) / count
			}
			rec.Fields[key] = FieldSample{
				Count:  count,
				Stride: stride,
				Data:   append([]float64(nil), data...),
			}
		}
	}
	return rec
}
