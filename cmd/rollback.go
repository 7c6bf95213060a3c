// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/schemaplan/core/pkg/plan"
)

func rollbackCmd() *cobra.Command {
	var planPath, outputPath string

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Generate the rollback plan for a previously executed plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(planPath)
			if err != nil {
				return fmt.Errorf("read plan file %q: %w", planPath, err)
			}

			var p plan.Plan
			if err := yaml.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("parse plan file %q: %w", planPath, err)
			}

			rollbackPlan := p.GenerateRollbackPlan()

			if err := writeOutput(outputPath, rollbackPlan); err != nil {
				return err
			}
			pterm.Success.Printf("rollback plan %s generated with %d step(s)\n", rollbackPlan.ID, len(rollbackPlan.Steps))
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "Path to a previously compiled and executed plan")
	cmd.Flags().StringVar(&outputPath, "output", "-", "Where to write the rollback plan (default: stdout)")
	cmd.MarkFlagRequired("plan")

	return cmd
}
