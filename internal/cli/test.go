package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/motivelab/motive/internal/harness"
)

// TestReport is the JSON payload of one executed scenario.
type TestReport struct {
	Scenario string   `json:"scenario"`
	Pass     bool     `json:"pass"`
	Frames   int      `json:"frames"`
	Errors   []string `json:"errors,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <scenario.yaml | dir>",
		Short: "Run conformance scenarios",
		Long: `Run one scenario file, or every *.yaml scenario under a directory.
Each scenario compiles its patches, steps the engine on virtual time and
evaluates its assertions. Any failing assertion fails the command.

Example:
  motive test scenarios/counter.yaml
  motive test scenarios/`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, args[0], cmd)
		},
	}
}

func runScenarios(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	paths, err := scenarioPaths(path)
	if err != nil {
		return err
	}

	reports := make([]TestReport, 0, len(paths))
	failed := 0
	for _, p := range paths {
		scenario, err := harness.LoadScenario(p)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("load %s", p), err)
		}
		formatter.VerboseLog("running scenario %s (%d frames)", scenario.Name, scenario.Frames)

		result, err := harness.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("run %s", scenario.Name), err)
		}

		report := TestReport{
			Scenario: scenario.Name,
			Pass:     result.Pass,
			Frames:   len(result.Frames),
			Errors:   result.Errors,
		}
		reports = append(reports, report)
		if !result.Pass {
			failed++
		}

		if formatter.Format != "json" {
			status := "PASS"
			if !result.Pass {
				status = "FAIL"
			}
			fmt.Fprintf(formatter.Writer, "%s  %s (%d frames)\n", status, scenario.Name, len(result.Frames))
			for _, msg := range result.Errors {
				fmt.Fprintf(formatter.Writer, "      %s\n", msg)
			}
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(reports); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "%d scenario(s), %d failed\n", len(reports), failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}

// scenarioPaths expands a path argument to scenario files. Directories pick
// up every *.yaml file, sorted for stable execution order.
func scenarioPaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "scenario path not found", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	matches, err := filepath.Glob(filepath.Join(path, "*.yaml"))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to scan directory", err)
	}
	if len(matches) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no *.yaml scenarios in %s", path))
	}
	sort.Strings(matches)
	return matches, nil
}
