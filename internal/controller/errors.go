package controller

import "errors"

// Controller errors.
var (
	// ErrEntityNotFound is returned when a command addresses an
	// entity the registry does not know.
	ErrEntityNotFound = errors.New("controller: entity not found")

	// ErrCommandDropped is returned when the gateway did not produce
	// an execution ID for a command. The caller must re-issue.
	ErrCommandDropped = errors.New("controller: command dropped")

	// ErrStartupFailed is returned when the startup handshake cannot
	// complete within the startup timeout.
	ErrStartupFailed = errors.New("controller: startup failed")
)
