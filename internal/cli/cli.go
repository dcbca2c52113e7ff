// Package cli is the command line entry of the scanner.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"NewsScanner/internal/app"
	"NewsScanner/internal/config"
	"NewsScanner/internal/logging"
	"NewsScanner/internal/usecase"
)

// NewRootCommand builds the command tree. Running it without a subcommand serves.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsscanner",
		Short:         "Ingest, score and serve IT news",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Poll sources on schedule and serve the HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "fetch [source]",
			Short: "Run one poll cycle and exit",
			Long: `Runs one poll cycle over all enabled sources and exits.
If a source name is provided, only that source is fetched, even when disabled.`,
			Args: cobra.MaximumNArgs(1),
			RunE: runFetch,
		},
		newListCommand(),
	)
	return root
}

func newListCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored articles as JSON",
		Long: `Prints filtered articles in their public shape, ordered by final score.
With --all every stored article is printed with its scores.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include unfiltered and unscored articles with scores")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, cmd.OutOrStdout())

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	return application.Run(cmd.Context())
}

func runFetch(cmd *cobra.Command, args []string) error {
	application, err := oneShot(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer application.Close()

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		outcome, err := application.PollSource(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("fetch source: %w", err)
		}
		printOutcome(out, outcome)
		return nil
	}

	report, err := application.PollOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("poll cycle: %w", err)
	}
	fmt.Fprintf(out, "cycle %s finished in %s\n", report.ID, report.Duration)
	for _, o := range report.Sources {
		printOutcome(out, o)
	}
	return nil
}

func printOutcome(w io.Writer, o usecase.SourceOutcome) {
	if o.Err != nil {
		fmt.Fprintf(w, "  %-20s error: %v\n", o.Report.Source, o.Err)
		return
	}
	fmt.Fprintf(w, "  %-20s fetched=%d stored=%d unscored=%d failed=%d\n",
		o.Report.Source, o.Report.Fetched, o.Report.Stored, o.Report.Unscored, len(o.Report.Failed))
}

func runList(cmd *cobra.Command, all bool) error {
	application, err := oneShot(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer application.Close()

	var payload any
	if all {
		payload, err = application.Articles().ListAllScored(cmd.Context())
	} else {
		payload, err = application.Articles().ListFiltered(cmd.Context())
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// oneShot builds the application with logs on w so stdout stays parseable.
func oneShot(ctx context.Context, w io.Writer) (*app.Application, error) {
	cfg := config.Load()
	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, w)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init application: %w", err)
	}
	return application, nil
}
