// internal/workflow/errors.go
package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorCode is a stable identifier for a workflow failure class.
type ErrorCode string

const (
	// ErrCodeStepFailed covers any action that returned an error.
	ErrCodeStepFailed ErrorCode = "STEP_FAILED"
	// ErrCodeValidationFailed means the validation screenshot could not be
	// taken. A failed yes/no call is not an error; it answers false.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrCodePlanInvalid is a structural problem found before running.
	ErrCodePlanInvalid ErrorCode = "PLAN_INVALID"
	// ErrCodeCollaboratorMissing means the engine was built without a
	// dependency the step needs.
	ErrCodeCollaboratorMissing ErrorCode = "COLLABORATOR_MISSING"
)

// StepError wraps a step failure with where it happened. Index is the
// top-level plan index; Path adds the corrective-branch indexes below it.
type StepError struct {
	Code  ErrorCode
	Index int
	Path  []int
	Kind  Kind
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s) %s: %v", formatPath(e.Path, e.Index), e.Kind, e.Code, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// CodeOf returns the ErrorCode carried by err, or "" when err is not a
// StepError.
func CodeOf(err error) ErrorCode {
	var se *StepError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func newStepError(code ErrorCode, path []int, kind Kind, err error) *StepError {
	index := 0
	if len(path) > 0 {
		index = path[0]
	}
	return &StepError{Code: code, Index: index, Path: append([]int(nil), path...), Kind: kind, Err: err}
}

func formatPath(path []int, index int) string {
	if len(path) == 0 {
		return strconv.Itoa(index)
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

var errMissing = errors.New("collaborator not configured")

func missingCollaborator(name string) error {
	return fmt.Errorf("%w: %s", errMissing, name)
}
