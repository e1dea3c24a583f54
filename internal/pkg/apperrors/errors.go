package apperrors

import "errors"

var (
	// ErrSessionNotFound means the meeting session is unknown to the store,
	// either not yet created or already evicted. Callers decide whether to
	// ignore, create, or report upstream; it is never fatal.
	ErrSessionNotFound = errors.New("meeting session not found")

	// ErrExternalCall marks a classification/completion or platform call that
	// failed or timed out. Analyzers skip the cycle, Q&A degrades the answer.
	ErrExternalCall = errors.New("external call failed")

	// ErrInvalidEvent marks a malformed ingestion payload. Dropped and logged,
	// never retried.
	ErrInvalidEvent = errors.New("invalid event payload")

	// ErrSessionEnded is returned for mutations against a session that has
	// already transitioned to ended.
	ErrSessionEnded = errors.New("meeting session already ended")
)
