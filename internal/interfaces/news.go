package interfaces

import (
	"context"

	"shell-tracker/internal/types"
)

// HeadlineSource is one news provider in the fan-out.
type HeadlineSource interface {
	Name() string
	Headlines(ctx context.Context) ([]string, error)
}

// NewsProcessor runs a news cycle and remembers the digest of the last one.
type NewsProcessor interface {
	FetchAndProcess(ctx context.Context) types.Sentiment
	LastDigest() string
}

type Notifier interface {
	SendMessage(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, path, caption string) error
}
