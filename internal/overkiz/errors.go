package overkiz

import "errors"

// Client errors. Callers branch on these with errors.Is(); anything
// else coming out of the client is a transient transport failure.
var (
	// ErrNotConnected is returned when a verb is called before
	// Connect succeeds or after Disconnect.
	ErrNotConnected = errors.New("overkiz: not connected")

	// ErrNotAuthenticated is returned on a 401/403 response. The
	// token is wrong or revoked; retrying cannot help.
	ErrNotAuthenticated = errors.New("overkiz: not authenticated")

	// ErrListenerExpired is returned when the gateway no longer
	// recognises the event listener ID. Register a new one.
	ErrListenerExpired = errors.New("overkiz: event listener expired")

	// ErrNoListener is returned when FetchEvents is called before
	// RegisterListener.
	ErrNoListener = errors.New("overkiz: no event listener registered")

	// ErrRateLimited is returned on a 429 response.
	ErrRateLimited = errors.New("overkiz: rate limited")

	// ErrExecutionQueueFull is returned when the gateway refuses a
	// command because its execution queue is at capacity.
	ErrExecutionQueueFull = errors.New("overkiz: execution queue full")
)
