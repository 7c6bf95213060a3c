// SPDX-License-Identifier: Apache-2.0

package metadata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaplan/core/internal/testsupport"
	"github.com/schemaplan/core/pkg/metadata"
)

func TestCreateDefaultRequiresIDAndName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := testsupport.NewFixedClock("2025-08-28T12:00:00.000Z")

	_, err := metadata.CreateDefault(ctx, clock, "", "name")
	assert.Equal(t, metadata.FieldRequiredError{Field: "id"}, err)

	_, err = metadata.CreateDefault(ctx, clock, "id", "")
	assert.Equal(t, metadata.FieldRequiredError{Field: "name"}, err)

	m, err := metadata.CreateDefault(ctx, clock, "migration_001", "add users table")
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusPending, m.Status)
	assert.Equal(t, "2025-08-28T12:00:00.000Z", m.Generated)
}

// S6: a migration's lifecycle walks pending -> tested -> promoted, and
// each transition's preconditions are enforced.
func TestLifecycleTransitionsPendingTestedPromoted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &testsupport.MockClock{Timestamps: []string{
		"2025-08-28T12:00:00.000Z",
		"2025-08-28T12:05:00.000Z",
		"2025-08-28T12:10:00.000Z",
	}}

	m, err := metadata.CreateDefault(ctx, clock, "migration_001", "add users table")
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusPending, m.Status)

	// Promotion before testing is rejected.
	_, err = metadata.UpdatePromotion(ctx, clock, m, "alice")
	assert.Error(t, err)
	assert.IsType(t, metadata.InvalidStateTransitionError{}, err)

	m, err = metadata.UpdateTestResults(ctx, clock, m, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusTested, m.Status)

	ready, reason := metadata.CheckPromotionReadiness(m)
	assert.True(t, ready, reason)

	m, err = metadata.UpdatePromotion(ctx, clock, m, "alice")
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusPromoted, m.Status)
	require.NotNil(t, m.Promotion)
	assert.Equal(t, "alice", *m.Promotion.PromotedBy)
}

func TestUpdateTestResultsWithFailuresStaysPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := testsupport.NewFixedClock("2025-08-28T12:00:00.000Z")

	m, err := metadata.CreateDefault(ctx, clock, "migration_001", "add users table")
	require.NoError(t, err)

	m, err = metadata.UpdateTestResults(ctx, clock, m, 8, 2)
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusPending, m.Status)

	ready, reason := metadata.CheckPromotionReadiness(m)
	assert.False(t, ready)
	assert.NotEmpty(t, reason)
}

func TestUpdatePromotionRequiresPromotedBy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := testsupport.NewFixedClock("2025-08-28T12:00:00.000Z")

	m, err := metadata.CreateDefault(ctx, clock, "migration_001", "add users table")
	require.NoError(t, err)
	m, err = metadata.UpdateTestResults(ctx, clock, m, 5, 0)
	require.NoError(t, err)

	_, err = metadata.UpdatePromotion(ctx, clock, m, "")
	assert.Equal(t, metadata.FieldRequiredError{Field: "promoted_by"}, err)
}

func TestUpdateIsIdentityWithEmptyPatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := testsupport.NewFixedClock("2025-08-28T12:00:00.000Z")

	m, err := metadata.CreateDefault(ctx, clock, "migration_001", "add users table")
	require.NoError(t, err)

	updated, err := metadata.Update(m, metadata.Patch{})
	require.NoError(t, err)
	assert.Equal(t, m, updated)
	// Update never mutates its input.
	assert.NotSame(t, m, updated)
}

func TestValidateRejectsNegativeCounts(t *testing.T) {
	t.Parallel()

	m := &metadata.Metadata{
		ID: "m1", Name: "n", Generated: "2025-08-28T12:00:00.000Z", Status: metadata.StatusPending,
		Testing: &metadata.Testing{TestsPassed: -1, TestsFailed: -2},
	}
	result := metadata.Validate(m)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}

func TestValidateRejectsMalformedTimestamp(t *testing.T) {
	t.Parallel()

	m := &metadata.Metadata{ID: "m1", Name: "n", Generated: "not-a-timestamp", Status: metadata.StatusPending}
	result := metadata.Validate(m)
	assert.False(t, result.Valid)
}

func TestValidateRejectsTestedWithoutTestedAt(t *testing.T) {
	t.Parallel()

	m := &metadata.Metadata{ID: "m1", Name: "n", Generated: "2025-08-28T12:00:00.000Z", Status: metadata.StatusTested}
	result := metadata.Validate(m)
	assert.False(t, result.Valid)
}

func TestValidateNilMetadata(t *testing.T) {
	t.Parallel()

	result := metadata.Validate(nil)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, metadata.FieldRequiredError{Field: "metadata"}, result.Errors[0])
}
