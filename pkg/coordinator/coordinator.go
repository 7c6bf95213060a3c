// SPDX-License-Identifier: Apache-2.0

// Package coordinator drives a single planning cycle end to end:
// diffing two schema states, compiling the resulting operations into an
// execution plan, annotating that plan with risk analysis, and folding
// the outcome into a migration's metadata record.
package coordinator

import (
	"context"
	"fmt"

	"github.com/schemaplan/core/pkg/analyzer"
	"github.com/schemaplan/core/pkg/diff"
	"github.com/schemaplan/core/pkg/metadata"
	"github.com/schemaplan/core/pkg/ops"
	"github.com/schemaplan/core/pkg/plan"
	"github.com/schemaplan/core/pkg/planlog"
	"github.com/schemaplan/core/pkg/ports"
	"github.com/schemaplan/core/pkg/schema"
)

// Coordinator wires the diff, compile, and analyze stages together and
// logs each transition. It holds no mutable state of its own; every
// method call is a self-contained planning cycle.
type Coordinator struct {
	Diff     *diff.Engine
	Compiler *plan.Compiler
	Clock    ports.ClockPort
	Logger   planlog.Logger
}

// New builds a Coordinator from its ports. A nil logger falls back to a
// no-op implementation.
func New(crypto ports.CryptoPort, clock ports.ClockPort, logger planlog.Logger) *Coordinator {
	if logger == nil {
		logger = planlog.NewNoopLogger()
	}
	return &Coordinator{
		Diff:     diff.New(crypto),
		Compiler: plan.NewCompiler(),
		Clock:    clock,
		Logger:   logger,
	}
}

// Cycle is the full output of a single planning cycle: the raw
// operations, the compiled plan, its risk analysis, and the metadata
// record produced from it.
type Cycle struct {
	Operations []*ops.Operation
	Plan       *plan.Plan
	Validation plan.Result
	Analysis   analyzer.Analysis
	Metadata   *metadata.Metadata
}

// Run executes current -> target -> [operations] -> plan -> analysis ->
// metadata, exactly the sequence described for a single planning cycle:
// diff, then compile, then analyze, then fold the result into a fresh
// pending metadata record for (migrationID, migrationName).
func (c *Coordinator) Run(
	ctx context.Context,
	current, target *schema.State,
	compileOpts plan.Options,
	analysisCtx analyzer.Context,
	migrationID, migrationName string,
) (*Cycle, error) {
	c.Logger.LogDiffStart(len(currentObjectNames(current)), len(currentObjectNames(target)))
	operations, err := c.Diff.CalculateDiff(ctx, current, target)
	if err != nil {
		return nil, fmt.Errorf("calculate diff: %w", err)
	}
	operations = diff.Optimize(operations)
	c.Logger.LogDiffComplete(len(operations))

	c.Logger.LogCompileStart(len(operations))
	compiled := c.Compiler.Compile(operations, compileOpts)
	validation := plan.ValidatePlan(compiled)
	c.Logger.LogCompileComplete(compiled)

	analysis := analyzer.Analyze(operations, analysisCtx)
	c.Logger.LogAnalysisComplete(analysis.RiskLevel.String(), len(analysis.Recommendations))

	m, err := metadata.CreateDefault(ctx, c.Clock, migrationID, migrationName)
	if err != nil {
		return nil, fmt.Errorf("create metadata: %w", err)
	}
	m, err = metadata.Update(m, metadata.Patch{
		Generation: &metadata.GenerationPatch{
			GeneratedAt:         strPtr(m.Generated),
			HasDifferences:      boolPtr(len(operations) > 0),
			StatementCount:      intPtr(len(operations)),
			SourceFilesCompiled: intPtr(1),
			GenerationTimeMs:    intPtr(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("attach generation details to metadata: %w", err)
	}
	c.Logger.LogMetadataTransition(m.ID, "", string(m.Status))

	return &Cycle{
		Operations: operations,
		Plan:       compiled,
		Validation: validation,
		Analysis:   analysis,
		Metadata:   m,
	}, nil
}

func currentObjectNames(s *schema.State) []string {
	var names []string
	for _, category := range schema.CategoryOrder() {
		names = append(names, s.Names(category)...)
	}
	return names
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }
