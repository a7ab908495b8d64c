// Package testutil provides deterministic drivers for engine tests and the
// scenario harness.
package testutil

import (
	"io"
	"log/slog"

	"github.com/motivelab/motive/internal/engine"
)

// Logger returns a logger that discards everything. Tests pass it wherever
// a component wants structured logging without polluting test output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FrameDriver steps an engine on a fixed virtual timeline. Host wall time
// never enters the loop, so the same driver settings always produce the
// same frame sequence.
type FrameDriver struct {
	Engine *engine.Engine
	// DtMS is the virtual time advance per step. Defaults to 1000/60.
	DtMS float64

	timeMS float64
	ticked bool
}

// NewFrameDriver creates a driver over an engine at 60 virtual fps.
func NewFrameDriver(e *engine.Engine) *FrameDriver {
	return &FrameDriver{Engine: e, DtMS: 1000.0 / 60.0}
}

// Now returns the virtual time of the most recent frame.
func (d *FrameDriver) Now() float64 { return d.timeMS }

// Step runs one frame. The first step executes at t=0; each later step
// advances by DtMS.
func (d *FrameDriver) Step() (*engine.Frame, error) {
	return d.StepInput(engine.FrameInput{})
}

// StepInput runs one frame with per-frame input (dynamic counts, stable
// ids). The input's TimeMS is overwritten with the virtual timeline.
func (d *FrameDriver) StepInput(in engine.FrameInput) (*engine.Frame, error) {
	if d.ticked {
		d.timeMS += d.DtMS
	}
	d.ticked = true
	in.TimeMS = d.timeMS
	return d.Engine.Frame(in)
}

// StepN runs n frames and returns the last one.
func (d *FrameDriver) StepN(n int) (*engine.Frame, error) {
	var last *engine.Frame
	for i := 0; i < n; i++ {
		f, err := d.Step()
		if err != nil {
			return nil, err
		}
		last = f
	}
	return last, nil
}

// Reset rewinds the virtual timeline to t=0 without touching the engine.
func (d *FrameDriver) Reset() {
	d.timeMS = 0
	d.ticked = false
}
