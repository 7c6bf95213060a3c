// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/schemaplan/core/pkg/deploy"
)

func tagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Generate, parse, and compare deployment tags",
	}
	cmd.AddCommand(tagGenerateCmd())
	cmd.AddCommand(tagParseCmd())
	cmd.AddCommand(tagCompareCmd())
	return cmd
}

func tagGenerateCmd() *cobra.Command {
	var environment, migrationID, timestamp string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a deployment tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			if timestamp == "" {
				timestamp = clock.Now(cmd.Context())
			}
			t, err := deploy.GenerateTag(environment, migrationID, timestamp)
			if err != nil {
				return err
			}
			fmt.Println(t)
			return nil
		},
	}
	cmd.Flags().StringVar(&environment, "environment", "", "Deployment environment")
	cmd.Flags().StringVar(&migrationID, "migration-id", "", "Migration identifier")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "ISO-8601 UTC timestamp (default: now)")
	cmd.MarkFlagRequired("environment")
	cmd.MarkFlagRequired("migration-id")
	return cmd
}

func tagParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "parse <tag>",
		Short:     "Parse a deployment tag into its constituent parts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"tag"},
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := deploy.ParseTag(args[0])
			if err != nil {
				return err
			}
			pterm.Printf("environment: %s\nmigration_id: %s\ntimestamp: %s\n", parsed.Environment, parsed.MigrationID, parsed.Timestamp)
			return nil
		},
	}
}

func tagCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "compare <tag-a> <tag-b>",
		Short:     "Compare two deployment tags chronologically",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"tag-a", "tag-b"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deploy.ParseTag(args[0])
			if err != nil {
				return err
			}
			b, err := deploy.ParseTag(args[1])
			if err != nil {
				return err
			}
			switch c := deploy.CompareTags(a, b); {
			case c < 0:
				fmt.Println("older")
			case c > 0:
				fmt.Println("newer")
			default:
				fmt.Println("equal")
			}
			return nil
		},
	}
}
