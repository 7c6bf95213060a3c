// SPDX-License-Identifier: Apache-2.0

package deploy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaplan/core/pkg/deploy"
)

// S7: generating a tag and parsing it back recovers the original fields
// exactly.
func TestGenerateTagParseTagRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		environment string
		migrationID string
		timestamp   string
	}{
		{"utc zulu", "production", "migration_001", "2025-08-28T12:00:00.000Z"},
		{"numeric offset without colon", "staging", "migration_002", "2025-08-28T12:00:00.000+0200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := deploy.GenerateTag(tt.environment, tt.migrationID, tt.timestamp)
			require.NoError(t, err)

			parsed, err := deploy.ParseTag(tag)
			require.NoError(t, err)

			assert.Equal(t, tt.environment, parsed.Environment)
			assert.Equal(t, tt.migrationID, parsed.MigrationID)
			assert.Equal(t, tt.timestamp, parsed.Timestamp)
		})
	}
}

func TestGenerateTagRequiresAllFields(t *testing.T) {
	t.Parallel()

	_, err := deploy.GenerateTag("", "migration_001", "2025-08-28T12:00:00.000Z")
	assert.Equal(t, deploy.FieldRequiredError{Field: "environment"}, err)

	_, err = deploy.GenerateTag("production", "", "2025-08-28T12:00:00.000Z")
	assert.Equal(t, deploy.FieldRequiredError{Field: "migration_id"}, err)

	_, err = deploy.GenerateTag("production", "migration_001", "")
	assert.Equal(t, deploy.FieldRequiredError{Field: "timestamp"}, err)
}

func TestParseTagRejectsMissingPrefix(t *testing.T) {
	t.Parallel()

	_, err := deploy.ParseTag("not-a-deploy-tag")
	require.Error(t, err)
	assert.IsType(t, deploy.ParseTagError{}, err)
}

func TestParseTagRejectsMalformedTimestamp(t *testing.T) {
	t.Parallel()

	_, err := deploy.ParseTag("data-deploy-production-migration_001-garbage")
	require.Error(t, err)
}

func TestCompareTagsOrdersChronologically(t *testing.T) {
	t.Parallel()

	older := deploy.Tag{Environment: "production", MigrationID: "m1", Timestamp: "2025-08-28T12:00:00.000Z"}
	newer := deploy.Tag{Environment: "production", MigrationID: "m2", Timestamp: "2025-08-29T12:00:00.000Z"}

	assert.Negative(t, deploy.CompareTags(older, newer))
	assert.Positive(t, deploy.CompareTags(newer, older))
	assert.Zero(t, deploy.CompareTags(older, older))
}

func TestFilterTagsByEnvironment(t *testing.T) {
	t.Parallel()

	history := []deploy.Tag{
		{Environment: "production", MigrationID: "m1"},
		{Environment: "staging", MigrationID: "m2"},
		{Environment: "production", MigrationID: "m3"},
	}

	filtered := deploy.FilterTagsByEnvironment(history, "production")
	require.Len(t, filtered, 2)
	assert.Equal(t, "m1", filtered[0].MigrationID)
	assert.Equal(t, "m3", filtered[1].MigrationID)
}

func TestGetRollbackInfoExplicitRollbackFrom(t *testing.T) {
	t.Parallel()

	info := deploy.GetRollbackInfo(nil, "production", "m2", "m1")
	assert.True(t, info.IsRollback)
	assert.Contains(t, info.Reason, "m1")
}

func TestGetRollbackInfoDetectsNewerExistingDeployment(t *testing.T) {
	t.Parallel()

	history := []deploy.Tag{
		{Environment: "production", MigrationID: "m1", Timestamp: "2025-08-28T12:00:00.000Z"},
		{Environment: "production", MigrationID: "m2", Timestamp: "2025-08-29T12:00:00.000Z"},
	}

	info := deploy.GetRollbackInfo(history, "production", "m1", "")
	assert.True(t, info.IsRollback)
}

func TestGetRollbackInfoFreshDeploymentIsNotRollback(t *testing.T) {
	t.Parallel()

	history := []deploy.Tag{
		{Environment: "production", MigrationID: "m1", Timestamp: "2025-08-28T12:00:00.000Z"},
	}

	info := deploy.GetRollbackInfo(history, "production", "m2", "")
	assert.False(t, info.IsRollback)
}

func TestValidateWorkingTreeStatus(t *testing.T) {
	t.Parallel()

	clean := deploy.WorkingTreeStatus{}
	valid, issues := deploy.ValidateWorkingTreeStatus(clean)
	assert.True(t, valid)
	assert.Empty(t, issues)
	assert.True(t, clean.IsClean())

	dirty := deploy.WorkingTreeStatus{Modified: []string{"a.go"}, Untracked: []string{"b.go"}}
	valid, issues = deploy.ValidateWorkingTreeStatus(dirty)
	assert.False(t, valid)
	assert.Len(t, issues, 2)
	assert.False(t, dirty.IsClean())
}

func TestValidateReleaseVersion(t *testing.T) {
	t.Parallel()

	assert.NoError(t, deploy.ValidateReleaseVersion("v1.4.2"))
	assert.NoError(t, deploy.ValidateReleaseVersion("1.4.2"))
	assert.Error(t, deploy.ValidateReleaseVersion("not-a-version"))
}
