package executor

import (
	"context"

	"github.com/jingkaihe/skillet/pkg/interpolate"
	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

// RenderPrompt builds the final prompt text: the few-shot block, if any,
// followed by the template rendered against context overlaid with inputs
func RenderPrompt(exec *skilltypes.PromptExecution, inputs, execCtx skilltypes.Values) string {
	rendered := interpolate.Interpolate(exec.Prompt, interpolate.Merge(execCtx, inputs))
	if len(exec.FewShotExamples) == 0 {
		return rendered
	}
	return interpolate.FormatExamples(exec.FewShotExamples) + "\n\n" + rendered
}

func (e *Executor) executePrompt(ctx context.Context, skill *skilltypes.Skill, exec *skilltypes.PromptExecution, inputs, execCtx skilltypes.Values) (skilltypes.Values, error) {
	if e.generator == nil {
		return nil, errors.New("no language model configured")
	}

	prompt := RenderPrompt(exec, inputs, execCtx)
	logger.G(ctx).WithField("skill", skill.Name).WithField("prompt_length", len(prompt)).Debug("submitting prompt")

	text, err := e.generator.Generate(ctx, prompt, skilltypes.GenerateOptions{
		System:      interpolate.Interpolate(exec.System, interpolate.Merge(execCtx, inputs)),
		Model:       exec.Model,
		MaxTokens:   exec.MaxTokens,
		Temperature: exec.Temperature,
	})
	if err != nil {
		return nil, errors.Wrap(err, "language model call failed")
	}
	return ShapeText(skill, text), nil
}
