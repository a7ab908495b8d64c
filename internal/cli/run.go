package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/motivelab/motive/internal/engine"
	"github.com/motivelab/motive/internal/testutil"
	"github.com/motivelab/motive/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Frames   int
	DtMS     float64
	Sample   []string
	Database string
}

// FrameReport is the JSON payload for one executed frame.
type FrameReport struct {
	Frame   int64                `json:"frame"`
	TimeMS  float64              `json:"time_ms"`
	Passes  int                  `json:"passes"`
	Signals map[string][]float64 `json:"signals,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <patch.cue>",
		Short: "Compile a patch and run it on a virtual timeline",
		Long: `Compile a CUE patch file and step the engine for a fixed number of
frames on deterministic virtual time. Sampled debug keys print per frame;
with --db the full recording also lands in a SQLite trace database.

Example:
  motive run --frames 60 examples/oscillator.cue
  motive run --frames 600 --db trace.db --sample osc.out examples/oscillator.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrames(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Frames, "frames", 60, "number of frames to run")
	cmd.Flags().Float64Var(&opts.DtMS, "dt", 1000.0/60.0, "virtual milliseconds per frame")
	cmd.Flags().StringSliceVar(&opts.Sample, "sample", nil, "debug keys to print (default: all)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to a SQLite trace database")

	return cmd
}

func runFrames(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Frames <= 0 {
		return NewExitError(ExitCommandError, "--frames must be positive")
	}

	logger := commandLogger(formatter)
	prog, ce, err := compilePatchFile(path, logger)
	if err != nil {
		if fmtErr := formatter.Error("COMPILE", err.Error(), nil); fmtErr != nil {
			return fmtErr
		}
		return err
	}
	if ce != nil {
		return outputDiagnostics(formatter, ce.Diags)
	}

	var recorder *trace.Recorder
	if opts.Database != "" {
		store, err := trace.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace database", err)
		}
		defer store.Close()
		recorder = trace.NewRecorder(store, opts.Sample...)
		formatter.VerboseLog("recording to %s", opts.Database)
	}

	e := engine.New(logger)
	e.Swap(prog)
	driver := testutil.NewFrameDriver(e)
	driver.DtMS = opts.DtMS

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for i := 0; i < opts.Frames; i++ {
		frame, err := driver.Step()
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("frame %d", i+1), err)
		}
		if recorder != nil {
			if err := recorder.Record(ctx, e, frame); err != nil {
				return WrapExitError(ExitCommandError, "failed to record frame", err)
			}
		}
		if err := reportFrame(formatter, e, frame, opts.Sample); err != nil {
			return err
		}
	}

	if diags := e.Diagnostics(); len(diags) > 0 {
		fmt.Fprintf(formatter.ErrWriter, "%d runtime diagnostic(s):\n", len(diags))
		for _, d := range diags {
			fmt.Fprintf(formatter.ErrWriter, "  %s (x%d)\n", d.Error(), d.Count)
		}
		return NewExitError(ExitFailure, "run completed with diagnostics")
	}
	return nil
}

func reportFrame(f *OutputFormatter, e *engine.Engine, frame *engine.Frame, sample []string) error {
	keys := sample
	if len(keys) == 0 {
		keys = e.DebugKeys()
	}

	report := FrameReport{Frame: frame.Number, TimeMS: frame.TimeMS, Passes: len(frame.Passes)}
	for _, key := range keys {
		if v, ok := e.ReadSignal(key); ok {
			if report.Signals == nil {
				report.Signals = make(map[string][]float64)
			}
			report.Signals[key] = v
		}
	}

	if f.Format == "json" {
		return f.Success(report)
	}
	fmt.Fprintf(f.Writer, "frame %-4d t=%.3fms", report.Frame, report.TimeMS)
	for _, key := range keys {
		if v, ok := report.Signals[key]; ok {
			fmt.Fprintf(f.Writer, "  %s=%v", key, v)
		}
	}
	fmt.Fprintln(f.Writer)
	return nil
}
