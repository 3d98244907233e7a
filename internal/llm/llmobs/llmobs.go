package llmobs

import (
	"context"

	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/trace"
)

// observableCompleter wraps a Completer with observability (logging & tracing)
type observableCompleter struct {
	completer interfaces.Completer
}

// Compile-time interface check
var _ interfaces.Completer = (*observableCompleter)(nil)

// Wrap wraps a completer with observability middleware
func Wrap(c interfaces.Completer) interfaces.Completer {
	return &observableCompleter{completer: c}
}

func (oc *observableCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Complete")
	defer span.End()

	timer := logger.StartOperation(ctx, "llm.complete", "prompt_len", len(prompt))
	out, err := oc.completer.Complete(timer.GetContext(), prompt)
	if err != nil {
		timer.EndWithError(err)
		return "", err
	}

	timer.End("reply_len", len(out))
	return out, nil
}
