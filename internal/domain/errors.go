package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidBrief    = errors.New("invalid brief")
	ErrSessionNotReady = errors.New("session not ready")
	ErrProviderFailure = errors.New("provider failure")
)
