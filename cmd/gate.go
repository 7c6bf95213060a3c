// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/schemaplan/core/internal/config"
	"github.com/schemaplan/core/pkg/deploy"
	"github.com/schemaplan/core/pkg/safety"
)

func gateCmd() *cobra.Command {
	var (
		configPath        string
		gitStatusPath     string
		branch            string
		testResultsPath   string
		confirmation      string
		force             bool
		forceConfirmation string
		outputPath        string
	)

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Run the safety gates guarding a production deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			gateCfg := safety.GateConfig{
				Environment:       cfg.DefaultEnvironment,
				Force:             force,
				RequiredBranch:    cfg.RequireBranch,
				CoverageThreshold: cfg.CoverageThreshold,
			}
			if result := safety.ValidateGateConfig(gateCfg); !result.Valid {
				return fmt.Errorf("invalid gate config: %v", result.Errors)
			}

			execPlan := safety.CreateGateExecutionPlan(gateCfg)
			if execPlan.SkipAll {
				if execPlan.RequiresForceConfirm && forceConfirmation != "FORCE" {
					return fmt.Errorf("force bypass requires --force-confirmation FORCE")
				}
				pterm.Warning.Println("all safety gates bypassed via --force")
				return nil
			}

			var entries []safety.AuditEntry
			for _, gate := range execPlan.Gates {
				passed, issues, metadata := evaluateGate(gate, gitStatusPath, branch, cfg, testResultsPath, confirmation)
				entries = append(entries, safety.CreateAuditEntry(cmd.Context(), clock, gate, passed, issues, metadata))
			}

			score := safety.CalculateSafetyScore(entries)
			actions := safety.GetRecommendedActions(entries)

			report := map[string]any{
				"entries":             entries,
				"score":               score,
				"recommended_actions": actions,
			}
			if err := writeOutput(outputPath, report); err != nil {
				return err
			}

			if !score.AllPassed {
				pterm.Error.Printf("safety gates failed: %.1f%% passed\n", score.PassedPercentage)
				if len(score.CriticalFailures) > 0 {
					return fmt.Errorf("critical gate failures: %v", score.CriticalFailures)
				}
			} else {
				pterm.Success.Println("all safety gates passed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a schemaplan.toml configuration file")
	cmd.Flags().StringVar(&gitStatusPath, "git-status", "", "Path to a working-tree status file")
	cmd.Flags().StringVar(&branch, "branch", "", "Current git branch")
	cmd.Flags().StringVar(&testResultsPath, "test-results", "", "Path to a test results file")
	cmd.Flags().StringVar(&confirmation, "confirmation", "", "Operator-supplied confirmation phrase")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass every safety gate")
	cmd.Flags().StringVar(&forceConfirmation, "force-confirmation", "", "Required literal \"FORCE\" to authorize --force")
	cmd.Flags().StringVar(&outputPath, "output", "-", "Where to write the gate report (default: stdout)")

	return cmd
}

func evaluateGate(
	gate safety.Gate, gitStatusPath, branch string, cfg config.Config, testResultsPath, confirmation string,
) (bool, []string, map[string]any) {
	switch gate {
	case safety.GateGitClean:
		status, err := readWorkingTreeStatus(gitStatusPath)
		if err != nil {
			return false, []string{err.Error()}, nil
		}
		passed, issues := safety.ValidateGitStatus(status)
		return passed, issues, nil
	case safety.GateBranchValidation:
		passed, issues := safety.ValidateBranch(branch, cfg.RequireBranch)
		return passed, issues, map[string]any{"expected_branch": cfg.RequireBranch}
	case safety.GateTestValidation:
		results, err := readTestResults(testResultsPath)
		if err != nil {
			return false, []string{err.Error()}, nil
		}
		passed, issues := safety.ValidateTestResults(results, cfg.CoverageThreshold)
		return passed, issues, map[string]any{"coverage_threshold": cfg.CoverageThreshold}
	case safety.GateProductionConfirmation:
		passed, issues := safety.ValidateConfirmation(confirmation, "I understand this deploys to production")
		return passed, issues, nil
	default:
		return false, []string{"unhandled gate"}, nil
	}
}

func readWorkingTreeStatus(path string) (deploy.WorkingTreeStatus, error) {
	if path == "" {
		return deploy.WorkingTreeStatus{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return deploy.WorkingTreeStatus{}, fmt.Errorf("read git status file %q: %w", path, err)
	}
	var status deploy.WorkingTreeStatus
	if err := yaml.Unmarshal(raw, &status); err != nil {
		return deploy.WorkingTreeStatus{}, fmt.Errorf("parse git status file %q: %w", path, err)
	}
	return status, nil
}

func readTestResults(path string) (safety.TestResults, error) {
	if path == "" {
		return safety.TestResults{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return safety.TestResults{}, fmt.Errorf("read test results file %q: %w", path, err)
	}
	var results safety.TestResults
	if err := yaml.Unmarshal(raw, &results); err != nil {
		return safety.TestResults{}, fmt.Errorf("parse test results file %q: %w", path, err)
	}
	return results, nil
}
