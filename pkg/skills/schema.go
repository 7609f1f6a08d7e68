package skills

import (
	"github.com/invopop/jsonschema"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// InputSchema describes the skill's inputs as a JSON schema object
func InputSchema(skill *skilltypes.Skill) *jsonschema.Schema {
	schema := parametersSchema(skill.Inputs, true)
	schema.Title = skill.Name
	schema.Description = skill.Description
	return schema
}

// OutputSchema describes the skill's declared outputs
func OutputSchema(skill *skilltypes.Skill) *jsonschema.Schema {
	return parametersSchema(skill.Outputs, false)
}

func parametersSchema(params []skilltypes.Parameter, withRequired bool) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:                 "object",
		Properties:           jsonschema.NewProperties(),
		AdditionalProperties: jsonschema.FalseSchema,
	}
	for _, p := range params {
		schema.Properties.Set(p.Name, parameterSchema(p))
		if withRequired && p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

func parameterSchema(p skilltypes.Parameter) *jsonschema.Schema {
	s := &jsonschema.Schema{Description: p.Description, Default: p.Default}
	switch p.Type {
	case skilltypes.ParamTypeEnum:
		s.Type = "string"
		for _, v := range p.Values {
			s.Enum = append(s.Enum, v)
		}
	case skilltypes.ParamTypeNumber:
		s.Type = "number"
	case skilltypes.ParamTypeBoolean:
		s.Type = "boolean"
	case skilltypes.ParamTypeObject:
		s.Type = "object"
	case skilltypes.ParamTypeArray:
		s.Type = "array"
	default:
		s.Type = "string"
	}
	return s
}
