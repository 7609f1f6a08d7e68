package executor

import (
	"context"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

func (e *Executor) executeMCP(ctx context.Context, skill *skilltypes.Skill, exec *skilltypes.MCPExecution, inputs skilltypes.Values) (skilltypes.Values, error) {
	if e.toolCaller == nil {
		return nil, errors.New("no MCP client configured")
	}

	result, err := e.toolCaller.CallTool(ctx, exec.Server, exec.Tool, inputs)
	if err != nil {
		return nil, errors.Wrapf(err, "tool %s on server %s failed", exec.Tool, exec.Server)
	}
	return ShapeValue(skill, result), nil
}
