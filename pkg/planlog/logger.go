// SPDX-License-Identifier: Apache-2.0

// Package planlog logs the lifecycle of a planning cycle — diffing,
// compilation, analysis, and metadata transitions — through pterm's
// structured logger, or a no-op implementation.
package planlog

import (
	"github.com/pterm/pterm"

	"github.com/schemaplan/core/pkg/plan"
)

// Logger is responsible for logging every stage of a planning cycle.
type Logger interface {
	LogDiffStart(currentObjectCount, targetObjectCount int)
	LogDiffComplete(operationCount int)

	LogCompileStart(operationCount int)
	LogCompileComplete(p *plan.Plan)

	LogStepStart(step *plan.Step)
	LogStepComplete(step *plan.Step)
	LogStepRollback(step *plan.Step)

	LogAnalysisComplete(riskLevel string, recommendationCount int)

	LogMetadataTransition(id string, from, to string)

	Info(msg string, args ...any)
}

type planLogger struct {
	logger pterm.Logger
}

type noopLogger struct{}

// NewLogger returns a Logger backed by pterm's default structured logger.
func NewLogger() Logger {
	return &planLogger{logger: pterm.DefaultLogger}
}

// NewNoopLogger returns a Logger that discards every call, for use in
// tests and non-interactive contexts.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (l *planLogger) LogDiffStart(currentObjectCount, targetObjectCount int) {
	l.logger.Info("calculating schema diff", l.logger.Args(
		"current_objects", currentObjectCount,
		"target_objects", targetObjectCount,
	))
}

func (l *planLogger) LogDiffComplete(operationCount int) {
	l.logger.Info("schema diff calculated", l.logger.Args("operation_count", operationCount))
}

func (l *planLogger) LogCompileStart(operationCount int) {
	l.logger.Info("compiling execution plan", l.logger.Args("operation_count", operationCount))
}

func (l *planLogger) LogCompileComplete(p *plan.Plan) {
	l.logger.Info("execution plan compiled", l.logger.Args(
		"plan_id", p.ID,
		"step_count", len(p.Steps),
		"estimated_ms", p.TotalEstimatedMs(),
	))
}

func (l *planLogger) LogStepStart(step *plan.Step) {
	l.logger.Info("starting step", l.logger.Args(
		"id", step.ID,
		"phase", step.Phase.String(),
		"description", step.Description,
	))
}

func (l *planLogger) LogStepComplete(step *plan.Step) {
	l.logger.Info("completed step", l.logger.Args("id", step.ID, "phase", step.Phase.String()))
}

func (l *planLogger) LogStepRollback(step *plan.Step) {
	l.logger.Info("rolling back step", l.logger.Args("id", step.ID, "phase", step.Phase.String()))
}

func (l *planLogger) LogAnalysisComplete(riskLevel string, recommendationCount int) {
	l.logger.Info("risk analysis complete", l.logger.Args(
		"risk_level", riskLevel,
		"recommendation_count", recommendationCount,
	))
}

func (l *planLogger) LogMetadataTransition(id string, from, to string) {
	l.logger.Info("metadata status transition", l.logger.Args("id", id, "from", from, "to", to))
}

func (l *planLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args))
}

func (l *noopLogger) LogDiffStart(currentObjectCount, targetObjectCount int)        {}
func (l *noopLogger) LogDiffComplete(operationCount int)                           {}
func (l *noopLogger) LogCompileStart(operationCount int)                           {}
func (l *noopLogger) LogCompileComplete(p *plan.Plan)                              {}
func (l *noopLogger) LogStepStart(step *plan.Step)                                 {}
func (l *noopLogger) LogStepComplete(step *plan.Step)                              {}
func (l *noopLogger) LogStepRollback(step *plan.Step)                              {}
func (l *noopLogger) LogAnalysisComplete(riskLevel string, recommendationCount int) {}
func (l *noopLogger) LogMetadataTransition(id string, from, to string)             {}
func (l *noopLogger) Info(msg string, args ...any)                                 {}
