package types

import "errors"

var (
	// ErrNotConfigured marks a collaborator running without credentials.
	ErrNotConfigured = errors.New("not configured")
	// ErrInsufficientCandles is returned when a series is too short to score.
	ErrInsufficientCandles = errors.New("insufficient candle data")
	// ErrSendInterrupted is returned when report delivery is cancelled between sends.
	ErrSendInterrupted = errors.New("send interrupted")
)
