package skills

import (
	"embed"
	"io/fs"

	"github.com/pkg/errors"
)

// Embedded built-in skill definitions
//
//go:embed builtin
var builtinSkills embed.FS

// BuiltinFS returns the built-in definitions rooted at the builtin directory
func BuiltinFS() (fs.FS, error) {
	sub, err := fs.Sub(builtinSkills, "builtin")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open builtin skills")
	}
	return sub, nil
}
