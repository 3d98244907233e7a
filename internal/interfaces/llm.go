package interfaces

import "context"

// Completer sends a single-turn prompt to a chat-completion endpoint.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
