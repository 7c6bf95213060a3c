// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/schemaplan/core/pkg/ops"
)

// maxReasonablePlanMs is the one-hour threshold past which ValidatePlan
// warns about total estimated duration.
const maxReasonablePlanMs = 3_600_000

// timeoutMsByKind gives the default per-step timeout for each operation
// kind; kinds absent from the table use the 60s default.
var timeoutMsByKind = map[ops.Kind]int{
	ops.CreateTable: 60_000,
	ops.DropTable:   30_000,
	ops.AlterTable:  120_000,
	ops.CreateIndex: 30_000,
	ops.DropIndex:   15_000,
	ops.InsertData:  300_000,
	ops.UpdateData:  300_000,
}

const defaultTimeoutMs = 60_000

func timeoutForKind(k ops.Kind) int {
	if t, ok := timeoutMsByKind[k]; ok {
		return t
	}
	return defaultTimeoutMs
}

// Options configures PlanCompiler.Compile.
type Options struct {
	PlanID            string
	PlanName          string
	EnableRollback    bool
	ParallelExecution bool
}

// DefaultOptions returns the default compile options.
func DefaultOptions() Options {
	return Options{EnableRollback: true}
}

// Compiler transforms an unordered operation set into a phased,
// dependency-linked, rollback-augmented ExecutionPlan.
type Compiler struct{}

// NewCompiler returns a PlanCompiler. It holds no state — Compile is pure
// given its inputs.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile never fails; use ValidatePlan on the result to detect cycles,
// empty plans, or excessively long plans.
func (c *Compiler) Compile(operations []*ops.Operation, opts Options) *Plan {
	planID := opts.PlanID
	if planID == "" {
		planID = uuid.NewString()
	}
	planName := opts.PlanName
	if planName == "" {
		planName = "migration plan"
	}

	p := New(planID, planName)

	// One step per operation, added phase by phase (keeping the
	// operations' existing priority order within a phase), building
	// dependencies as we go so later phases depend on the immediately
	// preceding non-empty phase.
	ordered := append([]*ops.Operation(nil), operations...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return phaseForOperation(ordered[i]) < phaseForOperation(ordered[j])
	})
	lastPhaseIndices := map[Phase][]int{}

	for _, op := range ordered {
		phase := phaseForOperation(op)
		step := stepForOperation(op, phase, opts.EnableRollback)
		step.Dependencies = dependenciesForPhase(p, phase, lastPhaseIndices)

		idx, err := p.AddStep(step)
		if err != nil {
			// Dependencies are always drawn from already-added steps, so
			// AddStep cannot reject them.
			panic(err)
		}
		lastPhaseIndices[phase] = append(lastPhaseIndices[phase], idx)
	}

	// Synthetic validation step, always appended, depending on every
	// step of the nearest preceding non-empty phase.
	validationStep := &Step{
		ID:          "step_validation",
		Description: "Validate migration",
		SQL:         nil,
		Phase:       Validation,
		Options: StepOptions{
			CanRollback:     false,
			TimeoutMs:       defaultTimeoutMs,
			ContinueOnError: true,
		},
	}
	validationStep.Dependencies = dependenciesForPhase(p, Validation, lastPhaseIndices)
	if _, err := p.AddStep(validationStep); err != nil {
		panic(err)
	}

	p.Compiled = true
	return p
}

// dependenciesForPhase returns, for a step about to be added in `phase`,
// the indices of every step in the nearest preceding non-empty phase.
func dependenciesForPhase(p *Plan, phase Phase, lastPhaseIndices map[Phase][]int) []int {
	var deps []int
	for _, earlier := range PhaseOrder() {
		if earlier >= phase {
			break
		}
		if indices, ok := lastPhaseIndices[earlier]; ok && len(indices) > 0 {
			// Only the nearest non-empty phase matters; overwrite as we
			// scan forward so `deps` ends up holding the closest one.
			deps = indices
		}
	}
	return deps
}

// phaseForOperation assigns an operation's execution phase: destructive
// operations drop first, remaining schema operations (kind ordinal <= 8)
// create next, everything else is data migration.
func phaseForOperation(op *ops.Operation) Phase {
	switch {
	case op.IsDestructive():
		return SchemaDrop
	case int(op.Kind) <= int(ops.DropView): // ordinal <= 8: schema operations
		return SchemaCreate
	default:
		return DataMigration
	}
}

func stepForOperation(op *ops.Operation, phase Phase, enableRollback bool) *Step {
	return &Step{
		ID:          fmt.Sprintf("step_%s_%d", op.ObjectName, int(op.Kind)),
		Description: fmt.Sprintf("%s %s", op.Kind.Verb(), op.ObjectName),
		SQL:         []string{op.SQL},
		Phase:       phase,
		Options: StepOptions{
			CanRollback: enableRollback && !op.IsDestructive(),
			TimeoutMs:   timeoutForKind(op.Kind),
		},
		RollbackSQL: rollbackSQLForOperation(op),
		EstimatedMs: estimateDurationMs(op.SQL),
	}
}

// rollbackSQLForOperation returns the inverse SQL for reversible create
// operations (table/index/function/view); all other kinds get no
// rollback SQL.
func rollbackSQLForOperation(op *ops.Operation) []string {
	word := ""
	switch op.Kind {
	case ops.CreateTable:
		word = "TABLE"
	case ops.CreateIndex:
		word = "INDEX"
	case ops.CreateFunction:
		word = "FUNCTION"
	case ops.CreateView:
		word = "VIEW"
	default:
		return nil
	}
	return []string{fmt.Sprintf("DROP %s IF EXISTS %s", word, pq.QuoteIdentifier(op.ObjectName))}
}

var (
	keywordPattern   = regexp.MustCompile(`(?i)\b(CREATE|ALTER|DROP|INSERT|UPDATE|DELETE)\b`)
	referencePattern = regexp.MustCompile(`(?i)\b(FROM|JOIN|INTO|TABLE)\s+([A-Za-z_][A-Za-z0-9_."]*)`)
)

// estimateDurationMs estimates a step's runtime from its SQL text:
// 1000 + 500*keywordCount + 200*tableReferenceCount milliseconds.
func estimateDurationMs(sql string) int {
	keywordCount := len(keywordPattern.FindAllString(sql, -1))
	referenceCount := len(referencePattern.FindAllStringSubmatch(sql, -1))
	return 1000 + 500*keywordCount + 200*referenceCount
}

// Result is the structured output of ValidatePlan.
type Result struct {
	Valid       bool
	Errors      []string
	Warnings    []string
	EstimatedMs int
	StepCount   int
}

// ValidatePlan reports structural problems with a compiled plan.
// Errors: the plan was never compiled, or its dependency graph has a
// cycle. Warnings: the plan has no steps, or its total estimated
// duration exceeds one hour.
func ValidatePlan(p *Plan) Result {
	result := Result{
		Valid:       true,
		EstimatedMs: p.TotalEstimatedMs(),
		StepCount:   len(p.Steps),
	}

	if !p.Compiled {
		result.Valid = false
		result.Errors = append(result.Errors, "plan has not been compiled")
	}

	if p.HasCycles() {
		result.Valid = false
		result.Errors = append(result.Errors, "plan contains circular dependencies")
	}

	if len(p.Steps) == 0 {
		result.Warnings = append(result.Warnings, "plan has no steps")
	}

	if result.EstimatedMs > maxReasonablePlanMs {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"plan's estimated duration of %dms exceeds the one-hour advisory threshold", result.EstimatedMs))
	}

	return result
}
