package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// CompileSummary is the JSON payload of a successful compile.
type CompileSummary struct {
	PatchHash string `json:"patch_hash"`
	Exprs     int    `json:"exprs"`
	Slots     int    `json:"slots"`
	Steps     int    `json:"steps"`
	Adapters  int    `json:"adapters"`
	Dump      string `json:"dump,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <patch.cue>",
		Short: "Compile a patch to a frame program",
		Long: `Compile a CUE patch file through the full pipeline and print the
program's deterministic text dump. The dump excludes the per-compilation
token, so compiling the same patch twice prints identical bytes.

Example:
  motive compile examples/oscillator.cue
  motive compile -o program.txt examples/oscillator.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the program dump to a file instead of stdout")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	prog, ce, err := compilePatchFile(path, commandLogger(formatter))
	if err != nil {
		if fmtErr := formatter.Error("COMPILE", err.Error(), nil); fmtErr != nil {
			return fmtErr
		}
		return err
	}
	if ce != nil {
		return outputDiagnostics(formatter, ce.Diags)
	}

	dump := prog.Dump()
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(dump), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		formatter.VerboseLog("wrote %d bytes to %s", len(dump), opts.Output)
	}

	if opts.Format == "json" {
		summary := CompileSummary{
			PatchHash: prog.PatchHash,
			Exprs:     len(prog.Exprs),
			Slots:     len(prog.Slots),
			Steps:     len(prog.Steps),
			Adapters:  len(prog.Adapters),
		}
		if opts.Output == "" {
			summary.Dump = dump
		}
		return formatter.Success(summary)
	}

	if opts.Output == "" {
		fmt.Fprint(formatter.Writer, dump)
	} else {
		fmt.Fprintf(formatter.Writer, "compiled %s (%d exprs, %d steps)\n", prog.PatchHash[:12], len(prog.Exprs), len(prog.Steps))
	}
	return nil
}
