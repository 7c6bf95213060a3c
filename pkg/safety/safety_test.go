// SPDX-License-Identifier: Apache-2.0

package safety_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaplan/core/internal/testsupport"
	"github.com/schemaplan/core/pkg/deploy"
	"github.com/schemaplan/core/pkg/safety"
)

func TestValidateGateConfigRequiresEnvironment(t *testing.T) {
	t.Parallel()

	result := safety.ValidateGateConfig(safety.GateConfig{})
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateGateConfigRejectsUnknownGate(t *testing.T) {
	t.Parallel()

	result := safety.ValidateGateConfig(safety.GateConfig{
		Environment:  "production",
		EnabledGates: []safety.Gate{safety.GateGitClean, "made-up-gate"},
	})
	assert.False(t, result.Valid)

	found := false
	for _, e := range result.Errors {
		if _, ok := e.(safety.UnknownGateError); ok {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateGateConfigRejectsOutOfRangeCoverage(t *testing.T) {
	t.Parallel()

	result := safety.ValidateGateConfig(safety.GateConfig{Environment: "production", CoverageThreshold: 150})
	assert.False(t, result.Valid)
}

func TestValidateGateConfigAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()

	result := safety.ValidateGateConfig(safety.GateConfig{
		Environment:       "production",
		RequiredBranch:    "main",
		CoverageThreshold: 80,
		EnabledGates:      []safety.Gate{safety.GateGitClean, safety.GateTestValidation},
	})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestCreateGateExecutionPlanForceBypassesAllGates(t *testing.T) {
	t.Parallel()

	plan := safety.CreateGateExecutionPlan(safety.GateConfig{Environment: "production", Force: true})
	assert.True(t, plan.SkipAll)
	assert.True(t, plan.RequiresForceConfirm)
	assert.Empty(t, plan.Gates)
}

func TestCreateGateExecutionPlanDefaultsToFullGateOrder(t *testing.T) {
	t.Parallel()

	plan := safety.CreateGateExecutionPlan(safety.GateConfig{Environment: "production"})
	assert.False(t, plan.SkipAll)
	assert.Equal(t, safety.GateOrder(), plan.Gates)
}

func TestValidateGitStatusDelegatesToDeploy(t *testing.T) {
	t.Parallel()

	ok, issues := safety.ValidateGitStatus(deploy.WorkingTreeStatus{})
	assert.True(t, ok)
	assert.Empty(t, issues)

	ok, issues = safety.ValidateGitStatus(deploy.WorkingTreeStatus{Modified: []string{"x.go"}})
	assert.False(t, ok)
	assert.NotEmpty(t, issues)
}

func TestValidateBranchTrimsWhitespace(t *testing.T) {
	t.Parallel()

	ok, _ := safety.ValidateBranch(" main\n", "main")
	assert.True(t, ok)

	ok, issues := safety.ValidateBranch("feature/x", "main")
	assert.False(t, ok)
	assert.NotEmpty(t, issues)
}

func TestValidateTestResultsChecksFailuresCoverageAndEmptiness(t *testing.T) {
	t.Parallel()

	ok, issues := safety.ValidateTestResults(safety.TestResults{}, 80)
	assert.False(t, ok)
	assert.Contains(t, issues, "no tests were run")

	ok, issues = safety.ValidateTestResults(safety.TestResults{Total: 10, Failed: 1, Coverage: safety.CoverageResult{Total: 90}}, 80)
	assert.False(t, ok)
	assert.Len(t, issues, 1)

	ok, _ = safety.ValidateTestResults(safety.TestResults{Total: 10, Failed: 0, Coverage: safety.CoverageResult{Total: 90}}, 80)
	assert.True(t, ok)
}

func TestValidateConfirmationTrimsWhitespace(t *testing.T) {
	t.Parallel()

	ok, _ := safety.ValidateConfirmation(" DEPLOY \n", "DEPLOY")
	assert.True(t, ok)

	ok, issues := safety.ValidateConfirmation("nope", "DEPLOY")
	assert.False(t, ok)
	assert.NotEmpty(t, issues)
}

func TestCreateAuditEntryRecordsPassAndFail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := testsupport.NewFixedClock("2025-08-28T12:00:00.000Z")

	passed := safety.CreateAuditEntry(ctx, clock, safety.GateGitClean, true, nil, nil)
	assert.Equal(t, safety.StatusPassed, passed.Status)
	assert.Equal(t, "2025-08-28T12:00:00.000Z", passed.Timestamp)

	failed := safety.CreateAuditEntry(ctx, clock, safety.GateBranchValidation, false, []string{"wrong branch"}, nil)
	assert.Equal(t, safety.StatusFailed, failed.Status)
	assert.Equal(t, []string{"wrong branch"}, failed.Issues)
}

func TestCalculateSafetyScoreNoEntriesIsFullyPassed(t *testing.T) {
	t.Parallel()

	score := safety.CalculateSafetyScore(nil)
	assert.Equal(t, 100.0, score.PassedPercentage)
	assert.True(t, score.AllPassed)
}

func TestCalculateSafetyScoreFlagsCriticalFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := testsupport.NewFixedClock("2025-08-28T12:00:00.000Z")

	entries := []safety.AuditEntry{
		safety.CreateAuditEntry(ctx, clock, safety.GateGitClean, false, []string{"dirty tree"}, nil),
		safety.CreateAuditEntry(ctx, clock, safety.GateTestValidation, true, nil, nil),
	}

	score := safety.CalculateSafetyScore(entries)
	assert.False(t, score.AllPassed)
	assert.Equal(t, 50.0, score.PassedPercentage)
	require.Len(t, score.CriticalFailures, 1)
	assert.Equal(t, safety.GateGitClean, score.CriticalFailures[0].Gate)
}

func TestGetRecommendedActionsOnlyCoversFailedGates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := testsupport.NewFixedClock("2025-08-28T12:00:00.000Z")

	entries := []safety.AuditEntry{
		safety.CreateAuditEntry(ctx, clock, safety.GateGitClean, true, nil, nil),
		safety.CreateAuditEntry(ctx, clock, safety.GateTestValidation, false, []string{"coverage too low"}, nil),
	}

	actions := safety.GetRecommendedActions(entries)
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0], string(safety.GateTestValidation))
}
