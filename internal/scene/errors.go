package scene

import "errors"

// Evaluation errors. All of them mean "not active" to callers; they
// exist so logs can say why a scene failed to match.
var (
	// ErrNoMembers is returned for a scene with an empty membership
	// list. A scene with nothing to track cannot be active.
	ErrNoMembers = errors.New("scene: no members")

	// ErrMemberNotFound is returned when a member device has no
	// registry record.
	ErrMemberNotFound = errors.New("scene: member not found")

	// ErrAxisUnavailable is returned when a target names an axis the
	// member shade has never reported.
	ErrAxisUnavailable = errors.New("scene: axis reading unavailable")
)
