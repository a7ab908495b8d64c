package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/motivelab/motive/internal/trace"
)

// TraceOptions holds flags for the trace series subcommand.
type TraceOptions struct {
	*RootOptions
	Token     string
	Keys      []string
	FromFrame int64
	ToFrame   int64
	Limit     int
}

// NewTraceCommand creates the trace command group.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded trace databases",
		Long: `Read back frame traces recorded by "motive run --db". Programs are
keyed by their compilation token; samples by debug key.`,
	}

	cmd.AddCommand(newTraceListCommand(rootOpts))
	cmd.AddCommand(newTraceSeriesCommand(rootOpts))
	return cmd
}

func newTraceListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <trace.db>",
		Short:         "List recorded program generations",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceList(rootOpts, args[0], cmd)
		},
	}
}

func newTraceSeriesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "series <trace.db>",
		Short: "Read a sample series from a trace",
		Long: `Read sample points for one program generation, optionally filtered by
debug key and frame range. Output order is deterministic: frame, then key,
then element, then component.

Example:
  motive trace series --token <token> --key osc.out trace.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceSeries(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "program token (required)")
	cmd.Flags().StringSliceVar(&opts.Keys, "key", nil, "debug keys to read (default: all)")
	cmd.Flags().Int64Var(&opts.FromFrame, "from", 0, "first frame (inclusive)")
	cmd.Flags().Int64Var(&opts.ToFrame, "to", 0, "last frame (inclusive, 0 = end)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0 = unlimited)")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func openTraceStore(path string) (*trace.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "trace database not found", err)
	}
	store, err := trace.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	return store, nil
}

func runTraceList(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := openTraceStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.ReadPrograms(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read programs", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(formatter.Writer, "no programs recorded")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "%s  patch=%s  frames=%d\n", info.Token, info.PatchHash[:12], info.Frames)
	}
	return nil
}

func runTraceSeries(opts *TraceOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := openTraceStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	points, err := store.ReadSeries(context.Background(), trace.Query{
		Token:     opts.Token,
		Keys:      opts.Keys,
		FromFrame: opts.FromFrame,
		ToFrame:   opts.ToFrame,
		Limit:     opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "query failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(points)
	}
	for _, p := range points {
		fmt.Fprintf(formatter.Writer, "frame=%-5d t=%-10.3f %s[%d][%d] = %v\n",
			p.Frame, p.TimeMS, p.Key, p.Element, p.Component, p.Value)
	}
	formatter.VerboseLog("%d point(s)", len(points))
	return nil
}
