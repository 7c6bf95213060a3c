// SPDX-License-Identifier: Apache-2.0

// Package deploy implements the deployment-tag grammar used to record
// which migration was deployed to which environment and when, plus
// rollback inference over a tag history. It performs no git I/O itself —
// the surrounding CLI supplies tag histories and working-tree status.
package deploy

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const tagPrefix = "data-deploy-"

// Tag is a parsed deployment tag.
type Tag struct {
	Environment string
	MigrationID string
	Timestamp   string // ISO-8601 UTC, e.g. 2025-08-28T12:00:00.000Z
}

// GenerateTag renders the wire form of a deployment tag:
// data-deploy-{environment}-{migrationID}-{timestamp}, with ':' and '.'
// in the timestamp replaced by '-'.
func GenerateTag(environment, migrationID, timestamp string) (string, error) {
	if environment == "" {
		return "", FieldRequiredError{Field: "environment"}
	}
	if migrationID == "" {
		return "", FieldRequiredError{Field: "migration_id"}
	}
	if timestamp == "" {
		return "", FieldRequiredError{Field: "timestamp"}
	}

	wire := strings.NewReplacer(":", "-", ".", "-").Replace(timestamp)
	return fmt.Sprintf("%s%s-%s-%s", tagPrefix, environment, migrationID, wire), nil
}

// ParseTagError reports a tag that does not conform to the grammar.
type ParseTagError struct {
	Tag    string
	Reason string
}

func (e ParseTagError) Error() string {
	return fmt.Sprintf("cannot parse deployment tag %q: %s", e.Tag, e.Reason)
}

// timestampPattern reconstructs an ISO-8601 UTC instant from its
// dash-substituted wire form: YYYY-MM-DDTHH-MM-SS-sssZ -> the same with
// ':' between hour/minute/second and '.' before the milliseconds. A
// numeric zone offset is only recovered in ±HHMM form: GenerateTag turns
// the ':' of a ±HH:MM offset into '-', which this pattern does not match.
var timestampPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})T(\d{2})-(\d{2})-(\d{2})-(\d+)(Z|[+-]\d{2}:?\d{2})?$`)

// ParseTag parses the wire form of a deployment tag back into its
// constituent parts. The prefix is fixed; the remainder splits on '-'
// into [environment, migration_id, ...timestamp_parts] — fewer than
// three parts is an error.
func ParseTag(tag string) (Tag, error) {
	if !strings.HasPrefix(tag, tagPrefix) {
		return Tag{}, ParseTagError{Tag: tag, Reason: fmt.Sprintf("missing required prefix %q", tagPrefix)}
	}

	remainder := strings.TrimPrefix(tag, tagPrefix)
	parts := strings.Split(remainder, "-")
	if len(parts) < 3 {
		return Tag{}, ParseTagError{Tag: tag, Reason: "expected environment, migration id and timestamp"}
	}

	environment := parts[0]
	migrationID := parts[1]
	wireTimestamp := strings.Join(parts[2:], "-")

	timestamp, err := reverseTimestamp(wireTimestamp)
	if err != nil {
		return Tag{}, ParseTagError{Tag: tag, Reason: err.Error()}
	}

	return Tag{Environment: environment, MigrationID: migrationID, Timestamp: timestamp}, nil
}

func reverseTimestamp(wire string) (string, error) {
	m := timestampPattern.FindStringSubmatch(wire)
	if m == nil {
		return "", fmt.Errorf("timestamp segment %q does not match the expected ISO-8601 grammar", wire)
	}
	zone := m[6]
	if zone == "" {
		zone = "Z"
	}
	return fmt.Sprintf("%sT%s:%s:%s.%s%s", m[1], m[2], m[3], m[4], m[5], zone), nil
}

// CompareTags compares two tags chronologically by reconstructing their
// ISO-8601 instants. It returns a negative number if a is older than b,
// zero if equal, and positive if a is newer than b. If either timestamp
// does not parse as an instant, the two timestamps are compared as
// strings.
func CompareTags(a, b Tag) int {
	instant := func(s string) (time.Time, bool) {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999Z0700"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	ta, okA := instant(a.Timestamp)
	tb, okB := instant(b.Timestamp)
	if !okA || !okB {
		return strings.Compare(a.Timestamp, b.Timestamp)
	}
	return ta.Compare(tb)
}

// FilterTagsByEnvironment returns the subset of tags deployed to the
// given environment, in their original order.
func FilterTagsByEnvironment(tags []Tag, environment string) []Tag {
	var out []Tag
	for _, t := range tags {
		if t.Environment == environment {
			out = append(out, t)
		}
	}
	return out
}

// RollbackInfo is the result of inferring whether a deployment is a
// rollback.
type RollbackInfo struct {
	IsRollback bool
	Reason     string
}

// GetRollbackInfo determines whether deploying migrationID to environment
// constitutes a rollback: either rollbackFrom is explicitly set, or a
// newer tag than migrationID's own already exists in the environment's
// history.
func GetRollbackInfo(history []Tag, environment, migrationID, rollbackFrom string) RollbackInfo {
	if rollbackFrom != "" {
		return RollbackInfo{IsRollback: true, Reason: "metadata.rollback_from is set to " + rollbackFrom}
	}

	envTags := FilterTagsByEnvironment(history, environment)

	var ownTag *Tag
	for i := range envTags {
		if envTags[i].MigrationID == migrationID {
			t := envTags[i]
			ownTag = &t
			break
		}
	}
	if ownTag == nil {
		return RollbackInfo{IsRollback: false, Reason: "no prior deployment of this migration found"}
	}

	for _, t := range envTags {
		if t.MigrationID != migrationID && CompareTags(t, *ownTag) > 0 {
			return RollbackInfo{IsRollback: true, Reason: "a newer deployment (" + t.MigrationID + ") already exists in " + environment}
		}
	}

	return RollbackInfo{IsRollback: false, Reason: "no newer deployment found"}
}

// WorkingTreeStatus mirrors a `git status --porcelain` summary.
type WorkingTreeStatus struct {
	Modified  []string
	Untracked []string
	Staged    []string
	Deleted   []string
}

// IsClean reports whether every change category is empty.
func (s WorkingTreeStatus) IsClean() bool {
	return len(s.Modified) == 0 && len(s.Untracked) == 0 && len(s.Staged) == 0 && len(s.Deleted) == 0
}

// ValidateWorkingTreeStatus reports whether the working tree is clean
// and, if not, which categories have outstanding changes.
func ValidateWorkingTreeStatus(status WorkingTreeStatus) (valid bool, issues []string) {
	if len(status.Modified) > 0 {
		issues = append(issues, fmt.Sprintf("%d modified file(s)", len(status.Modified)))
	}
	if len(status.Untracked) > 0 {
		issues = append(issues, fmt.Sprintf("%d untracked file(s)", len(status.Untracked)))
	}
	if len(status.Staged) > 0 {
		issues = append(issues, fmt.Sprintf("%d staged file(s)", len(status.Staged)))
	}
	if len(status.Deleted) > 0 {
		issues = append(issues, fmt.Sprintf("%d deleted file(s)", len(status.Deleted)))
	}
	return len(issues) == 0, issues
}

// FieldRequiredError reports a missing required field when generating a
// tag.
type FieldRequiredError struct {
	Field string
}

func (e FieldRequiredError) Error() string {
	return fmt.Sprintf("field %q is required", e.Field)
}

// ValidateReleaseVersion checks an optional semantic-version suffix some
// environments attach to their deployment tags (e.g. "v1.4.2"), using
// golang.org/x/mod/semver. A missing leading "v" is accepted.
func ValidateReleaseVersion(version string) error {
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%q is not a valid semantic version", version)
	}
	return nil
}
