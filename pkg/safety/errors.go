// SPDX-License-Identifier: Apache-2.0

package safety

import "fmt"

// FieldRequiredError reports a missing required field in a gate config.
type FieldRequiredError struct {
	Field string
}

func (e FieldRequiredError) Error() string {
	return fmt.Sprintf("field %q is required", e.Field)
}

// UnknownGateError reports a gate name that isn't part of the closed set.
type UnknownGateError struct {
	Gate string
}

func (e UnknownGateError) Error() string {
	return fmt.Sprintf("unknown gate %q", e.Gate)
}

// ConfigValidationFailure aggregates gate-config validation errors.
type ConfigValidationFailure struct {
	Errors []error
}

func (e ConfigValidationFailure) Error() string {
	if len(e.Errors) == 0 {
		return "gate config validation failed"
	}
	return fmt.Sprintf("gate config validation failed: %s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}
