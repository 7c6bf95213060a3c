// SPDX-License-Identifier: Apache-2.0

// Package metadata implements the pending -> tested -> promoted
// lifecycle record attached to a planned migration, its validation
// rules, and its partial-update ("patch") semantics.
package metadata

import (
	"context"
	"time"

	"github.com/schemaplan/core/pkg/ports"
)

// Status is the closed set of lifecycle states.
type Status string

const (
	StatusPending  Status = "pending"
	StatusTested   Status = "tested"
	StatusPromoted Status = "promoted"
)

// Testing records the result of running a migration's tests.
type Testing struct {
	TestedAt    *string
	TestsPassed int
	TestsFailed int
}

// Promotion records who promoted a migration, and when.
type Promotion struct {
	PromotedAt *string
	PromotedBy *string
}

// Generation records how a migration was produced.
type Generation struct {
	GeneratedAt         string
	HasDifferences      bool
	StatementCount      int
	SourceFilesCompiled int
	GenerationTimeMs    int
}

// Metadata is the full lifecycle record for a planned migration.
type Metadata struct {
	ID         string
	Name       string
	Generated  string
	Status     Status
	Testing    *Testing
	Promotion  *Promotion
	Generation *Generation
}

// CreateDefault produces a fresh metadata record in the pending state.
// It fails fast if id or name is empty.
func CreateDefault(ctx context.Context, clock ports.ClockPort, id, name string) (*Metadata, error) {
	if id == "" {
		return nil, FieldRequiredError{Field: "id"}
	}
	if name == "" {
		return nil, FieldRequiredError{Field: "name"}
	}
	return &Metadata{
		ID:        id,
		Name:      name,
		Generated: clock.Now(ctx),
		Status:    StatusPending,
	}, nil
}

// ValidationResult is the structured outcome of Validate.
type ValidationResult struct {
	Valid  bool
	Errors []error
}

// Validate enforces the required-field, format, and state-machine rules
// for a metadata record. It never mutates m.
func Validate(m *Metadata) ValidationResult {
	var errs []error

	if m == nil {
		return ValidationResult{Valid: false, Errors: []error{FieldRequiredError{Field: "metadata"}}}
	}

	if m.ID == "" {
		errs = append(errs, FieldRequiredError{Field: "id"})
	}
	if m.Name == "" {
		errs = append(errs, FieldRequiredError{Field: "name"})
	}
	if m.Generated == "" {
		errs = append(errs, FieldRequiredError{Field: "generated"})
	} else if !isValidISO8601(m.Generated) {
		errs = append(errs, InvalidFormatError{Field: "generated", Reason: "not a round-trippable ISO-8601 UTC timestamp"})
	}

	switch m.Status {
	case StatusPending, StatusTested, StatusPromoted:
	default:
		errs = append(errs, InvalidFormatError{Field: "status", Reason: "must be one of pending, tested, promoted"})
	}

	if m.Testing != nil {
		if m.Testing.TestsPassed < 0 {
			errs = append(errs, NegativeCountError{Field: "testing.tests_passed", Value: m.Testing.TestsPassed})
		}
		if m.Testing.TestsFailed < 0 {
			errs = append(errs, NegativeCountError{Field: "testing.tests_failed", Value: m.Testing.TestsFailed})
		}
		if m.Testing.TestedAt != nil && *m.Testing.TestedAt != "" && !isValidISO8601(*m.Testing.TestedAt) {
			errs = append(errs, InvalidFormatError{Field: "testing.tested_at", Reason: "not a round-trippable ISO-8601 UTC timestamp"})
		}
	}

	if m.Promotion != nil && m.Promotion.PromotedAt != nil && *m.Promotion.PromotedAt != "" && !isValidISO8601(*m.Promotion.PromotedAt) {
		errs = append(errs, InvalidFormatError{Field: "promotion.promoted_at", Reason: "not a round-trippable ISO-8601 UTC timestamp"})
	}

	if err := validateTransitionInvariants(m); err != nil {
		errs = append(errs, err)
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// validateTransitionInvariants checks that the record's current status is
// internally consistent with its testing/promotion substructures — i.e.
// that it could only have been reached via a legal sequence of
// transitions.
func validateTransitionInvariants(m *Metadata) error {
	switch m.Status {
	case StatusTested, StatusPromoted:
		if m.Testing == nil || m.Testing.TestedAt == nil || *m.Testing.TestedAt == "" || m.Testing.TestsFailed != 0 {
			return InvalidStateTransitionError{
				From: StatusPending, To: m.Status,
				Reason: "tested/promoted status requires testing.tested_at set and testing.tests_failed == 0",
			}
		}
	}
	if m.Status == StatusPromoted {
		if m.Promotion == nil || m.Promotion.PromotedAt == nil || *m.Promotion.PromotedAt == "" ||
			m.Promotion.PromotedBy == nil || *m.Promotion.PromotedBy == "" {
			return InvalidStateTransitionError{
				From: StatusTested, To: StatusPromoted,
				Reason: "promoted status requires promotion.promoted_at and promotion.promoted_by set",
			}
		}
	}
	return nil
}

func isValidISO8601(s string) bool {
	layouts := []string{
		"2006-01-02T15:04:05.000Z",
		time.RFC3339Nano,
		time.RFC3339,
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.UTC().Format(layout) == s {
			return true
		}
	}
	return false
}

// Patch is a partial update to a Metadata record: present pointer fields
// overwrite, nil fields leave the corresponding existing value
// untouched. The empty Patch{} is an identity update.
type Patch struct {
	Status     *Status
	Testing    *TestingPatch
	Promotion  *PromotionPatch
	Generation *GenerationPatch
}

type TestingPatch struct {
	TestedAt    *string
	TestsPassed *int
	TestsFailed *int
}

type PromotionPatch struct {
	PromotedAt *string
	PromotedBy *string
}

type GenerationPatch struct {
	GeneratedAt         *string
	HasDifferences      *bool
	StatementCount      *int
	SourceFilesCompiled *int
	GenerationTimeMs    *int
}

// Update deep-merges patch into a clone of existing (objects merge
// key-wise, scalars overwrite) and validates the result. existing is
// never mutated. On validation failure it returns a ValidationFailure
// and no metadata.
func Update(existing *Metadata, patch Patch) (*Metadata, error) {
	next := clone(existing)

	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Testing != nil {
		if next.Testing == nil {
			next.Testing = &Testing{}
		}
		if patch.Testing.TestedAt != nil {
			next.Testing.TestedAt = patch.Testing.TestedAt
		}
		if patch.Testing.TestsPassed != nil {
			next.Testing.TestsPassed = *patch.Testing.TestsPassed
		}
		if patch.Testing.TestsFailed != nil {
			next.Testing.TestsFailed = *patch.Testing.TestsFailed
		}
	}
	if patch.Promotion != nil {
		if next.Promotion == nil {
			next.Promotion = &Promotion{}
		}
		if patch.Promotion.PromotedAt != nil {
			next.Promotion.PromotedAt = patch.Promotion.PromotedAt
		}
		if patch.Promotion.PromotedBy != nil {
			next.Promotion.PromotedBy = patch.Promotion.PromotedBy
		}
	}
	if patch.Generation != nil {
		if next.Generation == nil {
			next.Generation = &Generation{}
		}
		if patch.Generation.GeneratedAt != nil {
			next.Generation.GeneratedAt = *patch.Generation.GeneratedAt
		}
		if patch.Generation.HasDifferences != nil {
			next.Generation.HasDifferences = *patch.Generation.HasDifferences
		}
		if patch.Generation.StatementCount != nil {
			next.Generation.StatementCount = *patch.Generation.StatementCount
		}
		if patch.Generation.SourceFilesCompiled != nil {
			next.Generation.SourceFilesCompiled = *patch.Generation.SourceFilesCompiled
		}
		if patch.Generation.GenerationTimeMs != nil {
			next.Generation.GenerationTimeMs = *patch.Generation.GenerationTimeMs
		}
	}

	if result := Validate(next); !result.Valid {
		return nil, ValidationFailure{Errors: result.Errors}
	}
	return next, nil
}

// UpdateTestResults records a test run's outcome. Status becomes
// "tested" when failed == 0, otherwise it stays/reverts to "pending".
func UpdateTestResults(ctx context.Context, clock ports.ClockPort, m *Metadata, passed, failed int) (*Metadata, error) {
	if passed < 0 {
		return nil, NegativeCountError{Field: "tests_passed", Value: passed}
	}
	if failed < 0 {
		return nil, NegativeCountError{Field: "tests_failed", Value: failed}
	}

	status := StatusPending
	if failed == 0 {
		status = StatusTested
	}
	now := clock.Now(ctx)

	return Update(m, Patch{
		Status: &status,
		Testing: &TestingPatch{
			TestedAt:    &now,
			TestsPassed: &passed,
			TestsFailed: &failed,
		},
	})
}

// UpdatePromotion promotes a tested migration. It fails fast (returns
// InvalidStateTransitionError) if m is not currently "tested".
func UpdatePromotion(ctx context.Context, clock ports.ClockPort, m *Metadata, promotedBy string) (*Metadata, error) {
	if m.Status != StatusTested {
		return nil, InvalidStateTransitionError{From: m.Status, To: StatusPromoted, Reason: "only a tested migration can be promoted"}
	}
	if promotedBy == "" {
		return nil, FieldRequiredError{Field: "promoted_by"}
	}

	now := clock.Now(ctx)
	promoted := StatusPromoted

	return Update(m, Patch{
		Status: &promoted,
		Promotion: &PromotionPatch{
			PromotedAt: &now,
			PromotedBy: &promotedBy,
		},
	})
}

// CheckPromotionReadiness reports whether m is ready for promotion and,
// if not, why.
func CheckPromotionReadiness(m *Metadata) (ready bool, reason string) {
	if m.Status != StatusTested {
		return false, "status is not \"tested\""
	}
	if m.Testing == nil || m.Testing.TestedAt == nil || *m.Testing.TestedAt == "" {
		return false, "testing.tested_at is not set"
	}
	if m.Testing.TestsFailed != 0 {
		return false, "testing.tests_failed is non-zero"
	}
	return true, ""
}

func clone(m *Metadata) *Metadata {
	out := &Metadata{
		ID:        m.ID,
		Name:      m.Name,
		Generated: m.Generated,
		Status:    m.Status,
	}
	if m.Testing != nil {
		t := *m.Testing
		out.Testing = &t
	}
	if m.Promotion != nil {
		p := *m.Promotion
		out.Promotion = &p
	}
	if m.Generation != nil {
		g := *m.Generation
		out.Generation = &g
	}
	return out
}
