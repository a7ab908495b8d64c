package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/motivelab/motive/internal/compiler"
)

// ValidationResult holds the outcome of validating one patch file.
type ValidationResult struct {
	Valid       bool                  `json:"valid"`
	Diagnostics []compiler.Diagnostic `json:"diagnostics,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <patch.cue>",
		Short: "Check a patch without producing a program",
		Long: `Parse a CUE patch file, check its graph shape against the block catalog
and run full type resolution. Reports every diagnostic the editor would
show; no program is emitted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	p, err := loadPatch(path)
	if err != nil {
		if fmtErr := formatter.Error("LOAD", err.Error(), nil); fmtErr != nil {
			return fmtErr
		}
		return err
	}

	formatter.VerboseLog("loaded %d blocks, %d edges from %s", len(p.Blocks), len(p.Edges), path)

	_, ce, err := compilePatchFile(path, commandLogger(formatter))
	if err != nil {
		if fmtErr := formatter.Error("COMPILE", err.Error(), nil); fmtErr != nil {
			return fmtErr
		}
		return err
	}
	if ce != nil {
		return outputDiagnostics(formatter, ce.Diags)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "patch is valid")
	return nil
}

func outputDiagnostics(f *OutputFormatter, diags []compiler.Diagnostic) error {
	if f.Format == "json" {
		if err := f.Error("DIAGNOSTICS",
			fmt.Sprintf("%d diagnostic(s)", len(diags)),
			ValidationResult{Valid: false, Diagnostics: diags}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "patch has %d diagnostic(s):\n", len(diags))
		for _, d := range diags {
			fmt.Fprintf(f.Writer, "  %s\n", d.Error())
		}
	}
	return NewExitError(ExitFailure, "validation failed")
}
