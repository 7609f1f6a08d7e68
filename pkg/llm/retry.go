package llm

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

type retryingGenerator struct {
	next   skilltypes.Generator
	config RetryConfig
}

// WithRetry retries transient failures of gen according to config
func WithRetry(gen skilltypes.Generator, config RetryConfig) skilltypes.Generator {
	return &retryingGenerator{next: gen, config: config}
}

func (g *retryingGenerator) Generate(ctx context.Context, prompt string, opts skilltypes.GenerateOptions) (string, error) {
	var (
		text           string
		originalErrors []error
	)

	var delayType retry.DelayTypeFunc
	switch g.config.BackoffType {
	case "fixed":
		delayType = retry.FixedDelay
	default:
		delayType = retry.BackOffDelay
	}

	err := retry.Do(
		func() error {
			var err error
			text, err = g.next.Generate(ctx, prompt, opts)
			if err != nil {
				originalErrors = append(originalErrors, err)
			}
			return err
		},
		retry.RetryIf(isRetryableError),
		retry.Attempts(uint(g.config.Attempts)),
		retry.Delay(time.Duration(g.config.InitialDelay)*time.Millisecond),
		retry.MaxDelay(time.Duration(g.config.MaxDelay)*time.Millisecond),
		retry.DelayType(delayType),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("max_attempts", g.config.Attempts).Warn("retrying language model call")
		}),
	)
	if err != nil {
		if len(originalErrors) > 1 {
			return "", errors.Wrapf(err, "all %d attempts failed", len(originalErrors))
		}
		return "", err
	}
	return text, nil
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"internal error",
	"overloaded",
	"rate limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"529",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
