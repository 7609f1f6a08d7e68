package skills

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed skill definition or a call-time input
// that violates the skill's declared schema.
type ValidationError struct {
	Skill   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed")
	if e.Skill != "" {
		fmt.Fprintf(&sb, " for skill %q", e.Skill)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, " at %s", e.Field)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	return sb.String()
}

// NewValidationError builds a ValidationError with a formatted message
func NewValidationError(skill, field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Skill:   skill,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// MissingDependencyError reports a required dependency absent from the registry
type MissingDependencyError struct {
	Skill      string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("skill %q requires missing dependency %q", e.Skill, e.Dependency)
}

// CycleDetectedError reports a skill recurring on the active resolution path
type CycleDetectedError struct {
	Path []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// ExecutionError annotates a backend failure with the skill and execution type
type ExecutionError struct {
	Skill string
	Type  ExecutionKind
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("skill %q (%s) failed: %v", e.Skill, e.Type, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// OutputMismatchError reports outputs that do not satisfy the declared schema
type OutputMismatchError struct {
	Skill   string
	Output  string
	Message string
}

func (e *OutputMismatchError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("skill %q returned mismatched outputs: %s", e.Skill, e.Message)
	}
	return fmt.Sprintf("skill %q returned mismatched output %q: %s", e.Skill, e.Output, e.Message)
}

// NotFoundError reports a lookup of a skill name that is not registered
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("skill %q not found", e.Name)
}
