// Package llm holds the chat-completion clients used for news sentiment.
package llm

import "errors"

// ErrMalformedResponse marks a completion reply that could not be decoded.
var ErrMalformedResponse = errors.New("malformed completion response")
