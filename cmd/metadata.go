// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/schemaplan/core/pkg/metadata"
)

func readMetadataFile(path string) (*metadata.Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file %q: %w", path, err)
	}
	var m metadata.Metadata
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse metadata file %q: %w", path, err)
	}
	return &m, nil
}

func metadataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Inspect and advance a migration's pending/tested/promoted lifecycle record",
	}
	cmd.AddCommand(metadataCreateCmd())
	cmd.AddCommand(metadataShowCmd())
	cmd.AddCommand(metadataTestResultCmd())
	cmd.AddCommand(metadataPromoteCmd())
	return cmd
}

func metadataCreateCmd() *cobra.Command {
	var id, name, outputPath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a fresh, pending metadata record",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := metadata.CreateDefault(cmd.Context(), clock, id, name)
			if err != nil {
				return err
			}
			return writeOutput(outputPath, m)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Migration identifier")
	cmd.Flags().StringVar(&name, "name", "", "Migration name")
	cmd.Flags().StringVar(&outputPath, "output", "-", "Where to write the metadata record (default: stdout)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("name")
	return cmd
}

func metadataShowCmd() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Validate and print a metadata record",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readMetadataFile(filePath)
			if err != nil {
				return err
			}
			result := metadata.Validate(m)
			if !result.Valid {
				pterm.Error.Printf("metadata is invalid: %v\n", result.Errors)
			}
			return writeOutput("-", m)
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "Path to a metadata record")
	cmd.MarkFlagRequired("file")
	return cmd
}

func metadataTestResultCmd() *cobra.Command {
	var filePath, outputPath string
	var passed, failed int

	cmd := &cobra.Command{
		Use:   "test-result",
		Short: "Record a test run's outcome against a metadata record",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readMetadataFile(filePath)
			if err != nil {
				return err
			}
			updated, err := metadata.UpdateTestResults(cmd.Context(), clock, m, passed, failed)
			if err != nil {
				return err
			}
			if err := writeOutput(outputPath, updated); err != nil {
				return err
			}
			pterm.Success.Printf("metadata %s is now %q\n", updated.ID, updated.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "Path to a metadata record")
	cmd.Flags().StringVar(&outputPath, "output", "-", "Where to write the updated record (default: stdout)")
	cmd.Flags().IntVar(&passed, "passed", 0, "Number of tests that passed")
	cmd.Flags().IntVar(&failed, "failed", 0, "Number of tests that failed")
	cmd.MarkFlagRequired("file")
	return cmd
}

func metadataPromoteCmd() *cobra.Command {
	var filePath, outputPath, promotedBy string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote a tested migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readMetadataFile(filePath)
			if err != nil {
				return err
			}
			if ready, reason := metadata.CheckPromotionReadiness(m); !ready {
				pterm.Warning.Println("promotion readiness check: " + reason)
			}
			updated, err := metadata.UpdatePromotion(cmd.Context(), clock, m, promotedBy)
			if err != nil {
				return err
			}
			if err := writeOutput(outputPath, updated); err != nil {
				return err
			}
			pterm.Success.Printf("metadata %s promoted by %s\n", updated.ID, promotedBy)
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "Path to a metadata record")
	cmd.Flags().StringVar(&outputPath, "output", "-", "Where to write the updated record (default: stdout)")
	cmd.Flags().StringVar(&promotedBy, "by", "", "Who is promoting this migration")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("by")
	return cmd
}
