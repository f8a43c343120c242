package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/artifacts"
	"github.com/xkilldash9x/clickpilot/internal/observability"
	"github.com/xkilldash9x/clickpilot/internal/reporting"
	"github.com/xkilldash9x/clickpilot/internal/workflow"
)

type runOptions struct {
	planPath string
	dryRun   bool
	onlyRow  int
	format   string
	output   string
}

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a plan against every client in the roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), cmd, opts)
		},
	}
	runCmd.Flags().StringVarP(&opts.planPath, "plan", "p", "", "path to the YAML plan (required)")
	runCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log actions without a browser, model or sheet writes")
	runCmd.Flags().IntVar(&opts.onlyRow, "only-row", 0, "process only the client at this sheet row")
	runCmd.Flags().StringVarP(&opts.format, "format", "f", "text", "summary format (text, json)")
	runCmd.Flags().StringVarP(&opts.output, "output", "o", "stdout", "summary destination")
	_ = runCmd.MarkFlagRequired("plan")
	return runCmd
}

func runPlan(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()

	plan, err := workflow.LoadPlan(opts.planPath)
	if err != nil {
		return err
	}
	store, roster, err := openRecords(ctx, cfg, opts.dryRun, true, logger)
	if err != nil {
		return err
	}
	steps, err := plan.Expand(roster, workflow.ExpandOptions{
		Records:  cfg.Records,
		LoginURL: cfg.Browser.LoginURL,
		OnlyRow:  opts.onlyRow,
	})
	if err != nil {
		return err
	}

	components, err := initializeRunComponents(ctx, cfg, opts.dryRun, store, roster, logger)
	if components != nil {
		defer components.Shutdown(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize run components: %w", err)
	}

	logger.Info("Starting run",
		zap.String("run_id", components.RunDir.ID()),
		zap.String("plan", opts.planPath),
		zap.Int("clients", len(roster.Clients)),
		zap.Int("steps", len(steps)),
		zap.Bool("dry_run", opts.dryRun))

	report, runErr := components.Engine.Run(ctx, steps)

	if err := writeReports(components.RunDir, report, opts); err != nil {
		logger.Warn("Failed to write run report.", zap.Error(err))
	}

	switch {
	case runErr == nil:
		logger.Info("Run completed", zap.String("run_id", components.RunDir.ID()))
	case errors.Is(runErr, workflow.ErrAbortProgram):
		// Already logged by the engine.
	case errors.Is(runErr, context.Canceled):
		logger.Warn("Run cancelled by signal", zap.String("run_id", components.RunDir.ID()))
	}
	return runErr
}

// writeReports prints the summary and keeps a JSON copy in the run dir.
func writeReports(runDir *artifacts.RunDir, report workflow.Report, opts *runOptions) error {
	summary, err := reporting.New(opts.format, opts.output)
	if err != nil {
		return err
	}
	if err := summary.Write(report); err != nil {
		summary.Close()
		return err
	}
	if err := summary.Close(); err != nil {
		return err
	}

	f, err := runDir.Create("report.json")
	if err != nil {
		return err
	}
	archived, err := reporting.NewWriter("json", f)
	if err != nil {
		f.Close()
		return err
	}
	defer archived.Close()
	return archived.Write(report)
}
