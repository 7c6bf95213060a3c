// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/schemaplan/core/pkg/analyzer"
	"github.com/schemaplan/core/pkg/coordinator"
	"github.com/schemaplan/core/pkg/plan"
	"github.com/schemaplan/core/pkg/planlog"
)

func planCmd() *cobra.Command {
	var currentPath, targetPath, outputPath string
	var planName, migrationID, migrationName string
	var enableRollback, isProd bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compile a phased, rollback-augmented execution plan between two schema states",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			current, err := readSchemaState(currentPath)
			if err != nil {
				return err
			}
			target, err := readSchemaState(targetPath)
			if err != nil {
				return err
			}

			co := coordinator.New(crypto, clock, planlog.NewLogger())
			cycle, err := co.Run(
				ctx,
				current.Freeze(), target.Freeze(),
				plan.Options{PlanName: planName, EnableRollback: enableRollback},
				analyzer.Context{IsProd: isProd},
				migrationID, migrationName,
			)
			if err != nil {
				return fmt.Errorf("run planning cycle: %w", err)
			}

			if !cycle.Validation.Valid {
				pterm.Error.Printf("plan is invalid: %v\n", cycle.Validation.Errors)
			}
			for _, w := range cycle.Validation.Warnings {
				pterm.Warning.Println(w)
			}

			if err := writeOutput(outputPath, cycle); err != nil {
				return err
			}
			pterm.Success.Printf(
				"plan %s compiled: %d step(s), risk=%s, estimated=%dms\n",
				cycle.Plan.ID, len(cycle.Plan.Steps), cycle.Analysis.RiskLevel, cycle.Validation.EstimatedMs,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&currentPath, "current", "", "Path to the current schema state file")
	cmd.Flags().StringVar(&targetPath, "target", "", "Path to the target schema state file")
	cmd.Flags().StringVar(&outputPath, "output", "-", "Where to write the compiled plan (default: stdout)")
	cmd.Flags().StringVar(&planName, "name", "", "Plan name")
	cmd.Flags().StringVar(&migrationID, "migration-id", "", "Migration identifier to attach to the generated metadata")
	cmd.Flags().StringVar(&migrationName, "migration-name", "", "Migration name to attach to the generated metadata")
	cmd.Flags().BoolVar(&enableRollback, "rollback", true, "Attach rollback SQL to reversible steps")
	cmd.Flags().BoolVar(&isProd, "prod", false, "Analyze as a production deployment")
	cmd.MarkFlagRequired("current")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("migration-id")
	cmd.MarkFlagRequired("migration-name")

	return cmd
}
