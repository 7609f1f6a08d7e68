package skills

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// Validator checks skill definitions for structural and semantic problems.
// It is stateless and never mutates the skill it inspects.
type Validator struct{}

// NewValidator creates a skill validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns the first violation found as a *ValidationError
func (v *Validator) Validate(skill *skilltypes.Skill) error {
	if skill == nil {
		return &skilltypes.ValidationError{Message: "skill is nil"}
	}
	checks := []func(*skilltypes.Skill) error{
		v.validateMetadata,
		v.validateInputs,
		v.validateOutputs,
		v.validateExecution,
		v.validateDependencies,
	}
	for _, check := range checks {
		if err := check(skill); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateMetadata(skill *skilltypes.Skill) error {
	if skill.Name == "" {
		return skilltypes.NewValidationError("", "name", "name is required")
	}
	// names become file names on install
	if !namePattern.MatchString(skill.Name) || strings.Contains(skill.Name, "..") {
		return skilltypes.NewValidationError(skill.Name, "name", "name %q may only contain letters, digits, '.', '_' and '-'", skill.Name)
	}
	if !versionPattern.MatchString(skill.Version) {
		return skilltypes.NewValidationError(skill.Name, "version", "version %q must match MAJOR.MINOR.PATCH", skill.Version)
	}
	if skill.Description == "" {
		return skilltypes.NewValidationError(skill.Name, "description", "description is required")
	}
	if skill.Execution == nil {
		return skilltypes.NewValidationError(skill.Name, "execution.type", "execution is required")
	}
	if !skill.Execution.Kind().IsValid() {
		return skilltypes.NewValidationError(skill.Name, "execution.type", "unknown execution type %q", skill.Execution.Kind())
	}
	return nil
}

func (v *Validator) validateInputs(skill *skilltypes.Skill) error {
	return validateParameters(skill.Name, "inputs", skill.Inputs, true)
}

func (v *Validator) validateOutputs(skill *skilltypes.Skill) error {
	return validateParameters(skill.Name, "outputs", skill.Outputs, false)
}

func validateParameters(skillName, list string, params []skilltypes.Parameter, allowRequired bool) error {
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		field := fmt.Sprintf("%s[%d]", list, i)
		if p.Name == "" {
			return skilltypes.NewValidationError(skillName, field+".name", "parameter name is required")
		}
		if seen[p.Name] {
			return skilltypes.NewValidationError(skillName, field+".name", "duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true

		if !p.Type.IsValid() {
			return skilltypes.NewValidationError(skillName, field+".type", "parameter %q has unknown type %q", p.Name, p.Type)
		}
		if p.Type == skilltypes.ParamTypeEnum && len(p.Values) == 0 {
			return skilltypes.NewValidationError(skillName, field+".values", "enum parameter %q requires a non-empty values list", p.Name)
		}
		if p.Type != skilltypes.ParamTypeEnum && len(p.Values) > 0 {
			return skilltypes.NewValidationError(skillName, field+".values", "values are only allowed on enum parameters, %q is %s", p.Name, p.Type)
		}
		if !allowRequired && p.Required {
			return skilltypes.NewValidationError(skillName, field+".required", "output %q cannot be marked required", p.Name)
		}
		if p.Default != nil {
			if err := checkValue(p, p.Default); err != nil {
				return skilltypes.NewValidationError(skillName, field+".default", "default for %q: %s", p.Name, err)
			}
		}
	}
	return nil
}

func (v *Validator) validateExecution(skill *skilltypes.Skill) error {
	switch exec := skill.Execution.(type) {
	case *skilltypes.PromptExecution:
		if exec.Prompt == "" {
			return skilltypes.NewValidationError(skill.Name, "execution.prompt", "ai-prompt execution requires a prompt")
		}
		for i, ex := range exec.FewShotExamples {
			if ex.Input == "" || ex.Output == "" {
				return skilltypes.NewValidationError(skill.Name, fmt.Sprintf("execution.fewShotExamples[%d]", i), "few-shot example requires input and output")
			}
		}
	case *skilltypes.ScriptExecution:
		if exec.Code == "" {
			return skilltypes.NewValidationError(skill.Name, "execution.code", "script execution requires code")
		}
		if exec.Language == "" {
			return skilltypes.NewValidationError(skill.Name, "execution.language", "script execution requires a language")
		}
	case *skilltypes.MCPExecution:
		if exec.Server == "" {
			return skilltypes.NewValidationError(skill.Name, "execution.server", "mcp execution requires a server")
		}
		if exec.Tool == "" {
			return skilltypes.NewValidationError(skill.Name, "execution.tool", "mcp execution requires a tool")
		}
	case *skilltypes.CompositeExecution:
		if len(exec.Steps) == 0 {
			return skilltypes.NewValidationError(skill.Name, "execution.steps", "composite execution requires at least one step")
		}
		ids := make(map[string]bool, len(exec.Steps))
		for i, step := range exec.Steps {
			field := fmt.Sprintf("execution.steps[%d]", i)
			if step.Skill == "" {
				return skilltypes.NewValidationError(skill.Name, field+".skill", "step requires a skill")
			}
			if ids[step.ID()] {
				return skilltypes.NewValidationError(skill.Name, field+".name", "duplicate step name %q", step.ID())
			}
			ids[step.ID()] = true
		}
		outputNames := skill.OutputNames()
		for name := range exec.Outputs {
			if len(outputNames) > 0 && !slices.Contains(outputNames, name) {
				return skilltypes.NewValidationError(skill.Name, "execution.outputs", "output mapping %q is not a declared output", name)
			}
		}
	default:
		return skilltypes.NewValidationError(skill.Name, "execution.type", "unsupported execution %T", skill.Execution)
	}
	return nil
}

func (v *Validator) validateDependencies(skill *skilltypes.Skill) error {
	seen := make(map[string]bool, len(skill.Dependencies))
	for i, dep := range skill.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		if dep.Name == "" {
			return skilltypes.NewValidationError(skill.Name, field+".name", "dependency name is required")
		}
		if dep.Name == skill.Name {
			return skilltypes.NewValidationError(skill.Name, field+".name", "skill cannot depend on itself")
		}
		if seen[dep.Name] {
			return skilltypes.NewValidationError(skill.Name, field+".name", "duplicate dependency %q", dep.Name)
		}
		seen[dep.Name] = true
	}
	return nil
}

// ApplyDefaults returns a copy of inputs with declared defaults filled in for
// absent parameters.
func ApplyDefaults(skill *skilltypes.Skill, inputs skilltypes.Values) skilltypes.Values {
	out := make(skilltypes.Values, len(inputs))
	for k, v := range inputs {
		out[k] = v
	}
	for _, p := range skill.Inputs {
		if _, ok := out[p.Name]; !ok && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// ValidateInputs checks call-time inputs against the skill's input schema:
// required presence, enum membership and basic type conformance.
func ValidateInputs(skill *skilltypes.Skill, inputs skilltypes.Values) error {
	for _, p := range skill.Inputs {
		value, present := inputs[p.Name]
		if !present || value == nil {
			if p.Required {
				return skilltypes.NewValidationError(skill.Name, "inputs."+p.Name, "required input %q is missing", p.Name)
			}
			continue
		}
		if err := checkValue(p, value); err != nil {
			return skilltypes.NewValidationError(skill.Name, "inputs."+p.Name, "%s", err)
		}
	}
	return nil
}

// ValidateOutputs checks returned outputs against the declared output schema.
// Declared outputs carry no required flag, so an absent one is accepted, but
// a present one must be non-null and of its declared type. Undeclared keys
// are rejected. With no declared outputs any result is accepted.
func ValidateOutputs(skill *skilltypes.Skill, outputs skilltypes.Values) error {
	if len(skill.Outputs) == 0 {
		return nil
	}
	declared := make(map[string]skilltypes.Parameter, len(skill.Outputs))
	for _, p := range skill.Outputs {
		declared[p.Name] = p
	}
	for name := range outputs {
		if _, ok := declared[name]; !ok {
			return &skilltypes.OutputMismatchError{Skill: skill.Name, Output: name, Message: "output is not declared"}
		}
	}
	for _, p := range skill.Outputs {
		value, ok := outputs[p.Name]
		if !ok {
			continue
		}
		if value == nil {
			return &skilltypes.OutputMismatchError{Skill: skill.Name, Output: p.Name, Message: "declared output is null"}
		}
		if err := checkValue(p, value); err != nil {
			return &skilltypes.OutputMismatchError{Skill: skill.Name, Output: p.Name, Message: err.Error()}
		}
	}
	return nil
}

func checkValue(p skilltypes.Parameter, value any) error {
	switch p.Type {
	case skilltypes.ParamTypeEnum:
		s := fmt.Sprint(value)
		if !slices.Contains(p.Values, s) {
			return errors.Errorf("value %q for %q is not one of %v", s, p.Name, p.Values)
		}
	case skilltypes.ParamTypeString:
		if _, ok := value.(string); !ok {
			return errors.Errorf("%q must be a string, got %T", p.Name, value)
		}
	case skilltypes.ParamTypeNumber:
		if !isNumber(value) {
			return errors.Errorf("%q must be a number, got %T", p.Name, value)
		}
	case skilltypes.ParamTypeBoolean:
		if _, ok := value.(bool); !ok {
			return errors.Errorf("%q must be a boolean, got %T", p.Name, value)
		}
	case skilltypes.ParamTypeObject:
		if reflect.TypeOf(value).Kind() != reflect.Map {
			return errors.Errorf("%q must be an object, got %T", p.Name, value)
		}
	case skilltypes.ParamTypeArray:
		kind := reflect.TypeOf(value).Kind()
		if kind != reflect.Slice && kind != reflect.Array {
			return errors.Errorf("%q must be an array, got %T", p.Name, value)
		}
	}
	return nil
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	if n, ok := value.(interface{ Float64() (float64, error) }); ok {
		_, err := n.Float64()
		return err == nil
	}
	return false
}
