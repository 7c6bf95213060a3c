// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/schemaplan/core/pkg/diff"
)

func diffCmd() *cobra.Command {
	var currentPath, targetPath, outputPath string
	var optimize bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compute the migration operations needed to go from one schema state to another",
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

			engine := diff.New(crypto)
			operations, err := engine.CalculateDiff(ctx, current.Freeze(), target.Freeze())
			if err != nil {
				return fmt.Errorf("calculate diff: %w", err)
			}
			if optimize {
				operations = diff.Optimize(operations)
			}

			if err := writeOutput(outputPath, operations); err != nil {
				return err
			}
			pterm.Success.Printf("%d operation(s) computed\n", len(operations))
			return nil
		},
	}

	cmd.Flags().StringVar(&currentPath, "current", "", "Path to the current schema state file")
	cmd.Flags().StringVar(&targetPath, "target", "", "Path to the target schema state file")
	cmd.Flags().StringVar(&outputPath, "output", "-", "Where to write the operation list (default: stdout)")
	cmd.Flags().BoolVar(&optimize, "optimize", true, "Deduplicate repeated operations on the same object")
	cmd.MarkFlagRequired("current")
	cmd.MarkFlagRequired("target")

	return cmd
}
