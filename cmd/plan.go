package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/clickpilot/internal/observability"
	"github.com/xkilldash9x/clickpilot/internal/workflow"
)

// newPlanCmd groups plan maintenance subcommands.
func newPlanCmd() *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect workflow plans",
	}
	planCmd.AddCommand(newPlanValidateCmd())
	return planCmd
}

func newPlanValidateCmd() *cobra.Command {
	var (
		planPath string
		dryRun   bool
		onlyRow  int
	)
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse a plan, expand it against the roster and print the steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			plan, err := workflow.LoadPlan(planPath)
			if err != nil {
				return err
			}
			_, roster, err := openRecords(ctx, cfg, dryRun, false, observability.GetLogger())
			if err != nil {
				return err
			}
			steps, err := plan.Expand(roster, workflow.ExpandOptions{
				Records:  cfg.Records,
				LoginURL: cfg.Browser.LoginURL,
				OnlyRow:  onlyRow,
			})
			if err != nil {
				return err
			}
			printSteps(cmd.OutOrStdout(), steps, 0)
			fmt.Fprintf(cmd.OutOrStdout(), "\nPlan OK: %d steps, %d clients.\n", len(steps), len(roster.Clients))
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&planPath, "plan", "p", "", "path to the YAML plan (required)")
	validateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "expand against an empty roster instead of the sheet")
	validateCmd.Flags().IntVar(&onlyRow, "only-row", 0, "expand only the client at this sheet row")
	_ = validateCmd.MarkFlagRequired("plan")
	return validateCmd
}

// printSteps lists steps with corrective branches indented beneath them.
func printSteps(w io.Writer, steps []workflow.Step, depth int) {
	indent := strings.Repeat("    ", depth)
	for i, s := range steps {
		fmt.Fprintf(w, "%s%3d  %s\n", indent, i, s)
		if s.Validation == nil {
			continue
		}
		if len(s.Validation.OnYes) > 0 {
			fmt.Fprintf(w, "%s     on yes:\n", indent)
			printSteps(w, s.Validation.OnYes, depth+1)
		}
		if len(s.Validation.OnNo) > 0 {
			fmt.Fprintf(w, "%s     on no:\n", indent)
			printSteps(w, s.Validation.OnNo, depth+1)
		}
	}
}
