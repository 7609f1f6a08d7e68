// Package skills defines the shared data model of the skill engine: skill
// definitions, their typed parameters, the closed set of execution kinds,
// the error taxonomy, and the collaborator interfaces the executor drives.
package skills

// ParamType is the declared type of an input or output parameter
type ParamType string

const (
	ParamTypeString  ParamType = "string"
	ParamTypeNumber  ParamType = "number"
	ParamTypeBoolean ParamType = "boolean"
	ParamTypeEnum    ParamType = "enum"
	ParamTypeObject  ParamType = "object"
	ParamTypeArray   ParamType = "array"
)

// ParamTypes lists every allowed parameter type
var ParamTypes = []ParamType{
	ParamTypeString,
	ParamTypeNumber,
	ParamTypeBoolean,
	ParamTypeEnum,
	ParamTypeObject,
	ParamTypeArray,
}

// IsValid reports whether t is one of the allowed parameter types
func (t ParamType) IsValid() bool {
	for _, known := range ParamTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Origin identifies which definition root a skill was discovered in
type Origin string

const (
	OriginBuiltin   Origin = "builtin"
	OriginCommunity Origin = "community"
	OriginCustom    Origin = "custom"
	OriginInline    Origin = "inline"
)

// Skill is a named, versioned, declaratively defined unit of invocable behavior.
// A registered Skill is treated as immutable.
type Skill struct {
	Name         string       `json:"name" yaml:"name"`
	Version      string       `json:"version" yaml:"version"`
	Description  string       `json:"description" yaml:"description"`
	Category     string       `json:"category,omitempty" yaml:"category,omitempty"`
	Tags         []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Inputs       []Parameter  `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs      []Parameter  `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Execution    Execution    `json:"execution" yaml:"-"`
	Dependencies []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Source       Source       `json:"source" yaml:"-"`
}

// Parameter describes one input or output of a skill
type Parameter struct {
	Name        string    `json:"name" yaml:"name" mapstructure:"name"`
	Type        ParamType `json:"type" yaml:"type" mapstructure:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Values      []string  `json:"values,omitempty" yaml:"values,omitempty" mapstructure:"values"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
}

// Dependency references another skill that must be resolvable before execution
type Dependency struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty" mapstructure:"optional"`
}

// Source records where a skill definition came from
type Source struct {
	Path   string `json:"path,omitempty"`
	Origin Origin `json:"origin,omitempty"`
}

// ExecutionKind returns the kind of the skill's execution, or "" when none is set
func (s *Skill) ExecutionKind() ExecutionKind {
	if s == nil || s.Execution == nil {
		return ""
	}
	return s.Execution.Kind()
}

// Input returns the declared input parameter with the given name
func (s *Skill) Input(name string) (Parameter, bool) {
	for _, p := range s.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// OutputNames returns declared output names in declaration order
func (s *Skill) OutputNames() []string {
	names := make([]string, 0, len(s.Outputs))
	for _, p := range s.Outputs {
		names = append(names, p.Name)
	}
	return names
}

// HasTag reports whether the skill carries the tag (exact match)
func (s *Skill) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
