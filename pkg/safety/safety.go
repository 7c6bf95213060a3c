// SPDX-License-Identifier: Apache-2.0

// Package safety implements the business rules that gate a migration
// deployment: working-tree cleanliness, branch validation, test
// thresholds, and an operator confirmation, plus the audit trail and
// aggregate scoring over the gates that ran.
package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/schemaplan/core/pkg/deploy"
	"github.com/schemaplan/core/pkg/ports"
)

// Gate is the closed set of safety gates a deployment passes through, in
// execution order.
type Gate string

const (
	GateGitClean               Gate = "git-clean-check"
	GateBranchValidation       Gate = "branch-validation"
	GateTestValidation         Gate = "test-validation"
	GateProductionConfirmation Gate = "production-confirmation"
)

// GateOrder lists every gate in the order it executes.
func GateOrder() []Gate {
	return []Gate{GateGitClean, GateBranchValidation, GateTestValidation, GateProductionConfirmation}
}

func isKnownGate(g Gate) bool {
	for _, k := range GateOrder() {
		if k == g {
			return true
		}
	}
	return false
}

// TestResults is the subset of a test run's outcome the test-validation
// gate inspects.
type TestResults struct {
	Total    int
	Failed   int
	Coverage CoverageResult
}

// CoverageResult carries an aggregate coverage percentage.
type CoverageResult struct {
	Total float64
}

// GateConfig configures which gates run and with what thresholds.
type GateConfig struct {
	Environment       string
	SkipAll           bool
	Force             bool
	RequiredBranch    string
	CoverageThreshold float64
	EnabledGates      []Gate
}

const gateConfigSchema = `{
	"type": "object",
	"required": ["environment"],
	"properties": {
		"environment": {"type": "string", "minLength": 1},
		"required_branch": {"type": "string"},
		"coverage_threshold": {"type": "number", "minimum": 0, "maximum": 100},
		"enabled_gates": {
			"type": "array",
			"items": {"enum": ["git-clean-check", "branch-validation", "test-validation", "production-confirmation"]}
		}
	}
}`

var compiledGateConfigSchema = mustCompileGateConfigSchema()

func mustCompileGateConfigSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("gate_config.json", strings.NewReader(gateConfigSchema)); err != nil {
		panic(err)
	}
	sch, err := c.Compile("gate_config.json")
	if err != nil {
		panic(err)
	}
	return sch
}

// ConfigValidationResult is the structured outcome of ValidateGateConfig.
type ConfigValidationResult struct {
	Valid  bool
	Errors []error
}

// ValidateGateConfig checks a gate configuration for required fields,
// value ranges, and gate-name validity using a JSON Schema document.
func ValidateGateConfig(cfg GateConfig) ConfigValidationResult {
	var errs []error

	raw, err := json.Marshal(map[string]any{
		"environment":        cfg.Environment,
		"required_branch":    cfg.RequiredBranch,
		"coverage_threshold": cfg.CoverageThreshold,
		"enabled_gates":      cfg.EnabledGates,
	})
	if err != nil {
		return ConfigValidationResult{Valid: false, Errors: []error{fmt.Errorf("encode gate config: %w", err)}}
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return ConfigValidationResult{Valid: false, Errors: []error{fmt.Errorf("decode gate config: %w", err)}}
	}

	if err := compiledGateConfigSchema.Validate(instance); err != nil {
		errs = append(errs, err)
	}

	for _, g := range cfg.EnabledGates {
		if !isKnownGate(g) {
			errs = append(errs, UnknownGateError{Gate: string(g)})
		}
	}

	return ConfigValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// GateStatus is the outcome of a single gate evaluation.
type GateStatus string

const (
	StatusPassed GateStatus = "PASSED"
	StatusFailed GateStatus = "FAILED"
)

// AuditEntry is the durable record of one gate's evaluation.
type AuditEntry struct {
	Gate      Gate
	Timestamp string
	Status    GateStatus
	Issues    []string
	Metadata  map[string]any
}

// CreateAuditEntry builds the audit record for a gate evaluation, timestamped
// through clock so a whole gate run can share one frozen timestamp source.
func CreateAuditEntry(ctx context.Context, clock ports.ClockPort, gate Gate, passed bool, issues []string, metadata map[string]any) AuditEntry {
	status := StatusPassed
	if !passed {
		status = StatusFailed
	}
	return AuditEntry{
		Gate:      gate,
		Timestamp: clock.Now(ctx),
		Status:    status,
		Issues:    issues,
		Metadata:  metadata,
	}
}

// ValidateGitStatus fails if any working-tree change category is
// non-empty.
func ValidateGitStatus(status deploy.WorkingTreeStatus) (bool, []string) {
	return deploy.ValidateWorkingTreeStatus(status)
}

// ValidateBranch checks current equals expected after trimming
// whitespace.
func ValidateBranch(current, expected string) (bool, []string) {
	if strings.TrimSpace(current) == strings.TrimSpace(expected) {
		return true, nil
	}
	return false, []string{fmt.Sprintf("on branch %q, expected %q", current, expected)}
}

// ValidateTestResults fails if any test failed, coverage is below
// threshold, or no tests ran at all.
func ValidateTestResults(results TestResults, threshold float64) (bool, []string) {
	var issues []string
	if results.Total == 0 {
		issues = append(issues, "no tests were run")
	}
	if results.Failed > 0 {
		issues = append(issues, fmt.Sprintf("%d test(s) failed", results.Failed))
	}
	if results.Coverage.Total < threshold {
		issues = append(issues, fmt.Sprintf("coverage %.1f%% is below threshold %.1f%%", results.Coverage.Total, threshold))
	}
	return len(issues) == 0, issues
}

// ValidateConfirmation checks provided equals expected after trimming
// whitespace.
func ValidateConfirmation(provided, expected string) (bool, []string) {
	if strings.TrimSpace(provided) == strings.TrimSpace(expected) {
		return true, nil
	}
	return false, []string{"confirmation text does not match"}
}

// GateExecutionPlan is the ordered set of gates a deployment must pass,
// or a force bypass demanding a separate force-confirmation.
type GateExecutionPlan struct {
	Gates                []Gate
	SkipAll              bool
	RequiresForceConfirm bool
}

// CreateGateExecutionPlan builds the gate sequence for a configuration.
// force=true bypasses every gate but demands a force-confirmation
// upstream.
func CreateGateExecutionPlan(cfg GateConfig) GateExecutionPlan {
	if cfg.Force {
		return GateExecutionPlan{SkipAll: true, RequiresForceConfirm: true}
	}

	gates := cfg.EnabledGates
	if len(gates) == 0 {
		gates = GateOrder()
	}
	return GateExecutionPlan{Gates: gates}
}

// CriticalFailure names a gate whose failure should block deployment
// regardless of the aggregate score.
type CriticalFailure struct {
	Gate   Gate
	Issues []string
}

// SafetyScore is the aggregate outcome of a gate run.
type SafetyScore struct {
	PassedPercentage float64
	AllPassed        bool
	CriticalFailures []CriticalFailure
}

// criticalGates fail the deployment outright: a dirty tree or the wrong
// branch are never acceptable even if other gates pass.
var criticalGates = map[Gate]bool{
	GateGitClean:         true,
	GateBranchValidation: true,
}

// CalculateSafetyScore aggregates a set of audit entries into an overall
// pass percentage and a list of gates whose failure is critical.
func CalculateSafetyScore(entries []AuditEntry) SafetyScore {
	if len(entries) == 0 {
		return SafetyScore{PassedPercentage: 100, AllPassed: true}
	}

	passed := 0
	var critical []CriticalFailure
	for _, e := range entries {
		if e.Status == StatusPassed {
			passed++
			continue
		}
		if criticalGates[e.Gate] {
			critical = append(critical, CriticalFailure{Gate: e.Gate, Issues: e.Issues})
		}
	}

	return SafetyScore{
		PassedPercentage: 100 * float64(passed) / float64(len(entries)),
		AllPassed:        passed == len(entries),
		CriticalFailures: critical,
	}
}

var remediation = map[Gate]string{
	GateGitClean:               "Commit or stash outstanding changes before deploying",
	GateBranchValidation:       "Checkout the expected branch before deploying",
	GateTestValidation:         "Fix failing tests or raise coverage above the required threshold",
	GateProductionConfirmation: "Obtain and supply the exact production confirmation phrase",
}

// GetRecommendedActions returns one remediation string per failed gate,
// each prefixed with the gate name and sorted alphabetically.
func GetRecommendedActions(entries []AuditEntry) []string {
	var actions []string
	for _, e := range entries {
		if e.Status == StatusFailed {
			if msg, ok := remediation[e.Gate]; ok {
				actions = append(actions, fmt.Sprintf("%s: %s", e.Gate, msg))
			}
		}
	}
	sort.Strings(actions)
	return actions
}
