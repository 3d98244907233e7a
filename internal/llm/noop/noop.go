package noop

import (
	"context"

	"shell-tracker/internal/logger"
	"shell-tracker/internal/types"
)

// Completer stands in when no completion API key is configured.
type Completer struct{}

func New() *Completer {
	return &Completer{}
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	logger.Debug(ctx, "Noop completer called", "prompt_len", len(prompt))
	return "", types.ErrNotConfigured
}
