package core

import "errors"

// Error taxonomy for the dispatcher boundary. Every failure that crosses the
// dispatcher wraps exactly one of these sentinels, so callers can classify with
// errors.Is without depending on adapter internals.
var (
	// ErrUnknownEngine indicates the requested engine id was never registered.
	// Always a caller bug.
	ErrUnknownEngine = errors.New("unknown engine")

	// ErrEngineUnavailable indicates a registered engine whose backing assets
	// are not ready. Recoverable by the caller: retry later or pick another
	// engine. Never retried by the gateway.
	ErrEngineUnavailable = errors.New("engine is not available")

	// ErrInvalidInput indicates the request shape violates the dispatch
	// contract. Always caller-fixable; never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSynthesisFailed indicates the external synthesis system raised an
	// error or timed out. Possibly transient; safe for the caller to retry
	// once. The gateway itself never retries.
	ErrSynthesisFailed = errors.New("synthesis failed")
)
