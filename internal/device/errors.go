package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrShadeNotFound) {
//	    // handle not found case
//	}
var (
	// ErrShadeNotFound is returned when no shade matches the given
	// address or device URL.
	ErrShadeNotFound = errors.New("device: shade not found")

	// ErrSceneNotFound is returned when no scene matches the given
	// address or OID.
	ErrSceneNotFound = errors.New("device: scene not found")

	// ErrShadeExists is returned when registering a shade whose
	// address is already taken by a different device URL.
	ErrShadeExists = errors.New("device: shade address already registered")

	// ErrSceneExists is returned when registering a scene whose
	// address is already taken by a different OID.
	ErrSceneExists = errors.New("device: scene address already registered")

	// ErrInvalidRecord is returned when a record is missing its
	// identifier or address.
	ErrInvalidRecord = errors.New("device: invalid record")
)
