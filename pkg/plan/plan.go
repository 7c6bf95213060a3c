// SPDX-License-Identifier: Apache-2.0

// Package plan models the dependency-aware execution plan PlanCompiler
// produces from an operation set: phased ExecutionSteps, a DAG of
// dependencies expressed as indices into the plan's step arena (per the
// spec's design notes, to keep the graph serializable and free of
// ownership cycles), cycle detection, and rollback-plan generation.
package plan

import "fmt"

// Phase is the closed, ordered set of coarse execution groupings.
type Phase int

const (
	PreMigration Phase = iota
	SchemaDrop
	SchemaCreate
	DataMigration
	PostMigration
	Validation
)

func (p Phase) String() string {
	switch p {
	case PreMigration:
		return "PreMigration"
	case SchemaDrop:
		return "SchemaDrop"
	case SchemaCreate:
		return "SchemaCreate"
	case DataMigration:
		return "DataMigration"
	case PostMigration:
		return "PostMigration"
	case Validation:
		return "Validation"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// phaseOrder is the ascending execution order of all phases.
var phaseOrder = []Phase{PreMigration, SchemaDrop, SchemaCreate, DataMigration, PostMigration, Validation}

// PhaseOrder returns the phases in ascending execution order.
func PhaseOrder() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// StepOptions configures how an executor should run and roll back a step.
type StepOptions struct {
	CanRollback     bool
	TimeoutMs       int
	RetryCount      int
	ContinueOnError bool
}

// DefaultStepOptions returns the default step option values.
func DefaultStepOptions() StepOptions {
	return StepOptions{CanRollback: true, TimeoutMs: 30_000, RetryCount: 0, ContinueOnError: false}
}

// Step is one node in the execution plan: one or more SQL statements,
// the phase it belongs to, rollback metadata, and dependencies expressed
// as indices into the owning ExecutionPlan's Steps slice.
//
// A step is ready iff every dependency has Executed set to true.
// Rollback-step generation requires CanRollback and a non-empty
// RollbackSQL.
type Step struct {
	ID           string
	Description  string
	SQL          []string
	Phase        Phase
	Options      StepOptions
	Dependencies []int
	RollbackSQL  []string
	Executed     bool
	EstimatedMs  int
}

// UnknownStepError reports a dependency index that does not address a
// valid step in the plan's arena.
type UnknownStepError struct {
	Index int
}

func (e UnknownStepError) Error() string {
	return fmt.Sprintf("dependency references unknown step index %d", e.Index)
}

// SelfDependencyError reports a step declaring itself as a dependency.
type SelfDependencyError struct {
	Index int
}

func (e SelfDependencyError) Error() string {
	return fmt.Sprintf("step at index %d cannot depend on itself", e.Index)
}

// Plan is a dependency-respecting, phase-grouped sequence of steps with
// rollback metadata. Execution is a DAG: for every pair of phases p < q,
// every step in p is an ancestor of every step in q.
type Plan struct {
	ID       string
	Name     string
	Steps    []*Step
	Phases   map[Phase][]int
	Metadata map[string]any
	Compiled bool
}

// New returns an empty, uncompiled plan.
func New(id, name string) *Plan {
	return &Plan{
		ID:       id,
		Name:     name,
		Phases:   make(map[Phase][]int),
		Metadata: make(map[string]any),
	}
}

// AddStep appends a step to the plan's arena, validating that its
// dependencies reference existing, prior steps and contain no self-loop.
// It returns the new step's index.
func (p *Plan) AddStep(step *Step) (int, error) {
	idx := len(p.Steps)
	for _, dep := range step.Dependencies {
		if dep == idx {
			return 0, SelfDependencyError{Index: idx}
		}
		if dep < 0 || dep >= idx {
			return 0, UnknownStepError{Index: dep}
		}
	}
	p.Steps = append(p.Steps, step)
	p.Phases[step.Phase] = append(p.Phases[step.Phase], idx)
	return idx, nil
}

// TotalEstimatedMs sums every step's EstimatedMs.
func (p *Plan) TotalEstimatedMs() int {
	total := 0
	for _, s := range p.Steps {
		total += s.EstimatedMs
	}
	return total
}

// Ready reports whether the step at idx has every dependency executed.
func (p *Plan) Ready(idx int) bool {
	step := p.Steps[idx]
	for _, dep := range step.Dependencies {
		if !p.Steps[dep].Executed {
			return false
		}
	}
	return true
}

// color is the DFS visitation state used by HasCycles.
type color int

const (
	white color = iota
	gray
	black
)

// HasCycles runs a classic 3-color DFS over the dependency graph and
// returns true iff any back-edge (a dependency reachable from itself) is
// found.
func (p *Plan) HasCycles() bool {
	colors := make([]color, len(p.Steps))

	var visit func(idx int) bool
	visit = func(idx int) bool {
		colors[idx] = gray
		for _, dep := range p.Steps[idx].Dependencies {
			switch colors[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		colors[idx] = black
		return false
	}

	for i := range p.Steps {
		if colors[i] == white {
			if visit(i) {
				return true
			}
		}
	}
	return false
}

// GenerateRollbackPlan selects executed steps with CanRollback and a
// non-empty RollbackSQL, in reverse execution order, and returns a fresh
// plan containing one SchemaDrop step per selection (itself
// non-rollbackable), with timeouts carried over unchanged.
func (p *Plan) GenerateRollbackPlan() *Plan {
	rollback := New(p.ID+"_rollback", p.Name+" rollback")

	for i := len(p.Steps) - 1; i >= 0; i-- {
		step := p.Steps[i]
		if !step.Executed || !step.Options.CanRollback || len(step.RollbackSQL) == 0 {
			continue
		}
		rollbackStep := &Step{
			ID:          step.ID + "_rollback",
			Description: "Rollback " + step.Description,
			SQL:         append([]string(nil), step.RollbackSQL...),
			Phase:       SchemaDrop,
			Options: StepOptions{
				CanRollback:     false,
				TimeoutMs:       step.Options.TimeoutMs,
				RetryCount:      step.Options.RetryCount,
				ContinueOnError: step.Options.ContinueOnError,
			},
		}
		// Rollback steps within the derived plan execute strictly in
		// reverse order; each depends on the one before it.
		deps := []int(nil)
		if len(rollback.Steps) > 0 {
			deps = []int{len(rollback.Steps) - 1}
		}
		rollbackStep.Dependencies = deps
		if _, err := rollback.AddStep(rollbackStep); err != nil {
			// AddStep only fails on malformed dependency indices, which
			// cannot occur for the single-predecessor chain built above.
			panic(err)
		}
	}

	rollback.Compiled = true
	return rollback
}
