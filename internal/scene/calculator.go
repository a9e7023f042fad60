package scene

import (
	"fmt"

	"github.com/sejgit/shadesync/internal/device"
)

const (
	// tolerance is the maximum deviation, in percent, between a
	// member's target and its actual reading that still counts as a
	// match. Shade motors routinely stop a point or two off.
	tolerance = 2

	// positionScale divides pos1/pos2 targets down to the 0-100
	// range the gateway reports actual positions in. Tilt targets
	// are already in degrees-equivalent units and pass through.
	positionScale = 100
	tiltScale     = 1

	// Duolite exclusivity readings: before the front fabric counts
	// as positioned the rear must be fully deployed, and vice versa.
	duoliteSecondaryDeployed = 100
	duolitePrimaryOpen       = 0
)

// ShadeLookup resolves a member's device URL to its current record.
// *device.Registry satisfies it.
type ShadeLookup interface {
	GetShadeByURL(deviceURL string) (*device.Shade, error)
}

// Active reports whether every member of the scene is within tolerance
// of its target. Any evaluation failure means not active.
func Active(sc *device.Scene, shades ShadeLookup) bool {
	active, err := Evaluate(sc, shades)
	if err != nil {
		return false
	}
	return active
}

// Evaluate computes the scene's activity state, returning an error for
// conditions that make the scene unmatchable. Callers treat any error
// as "not active"; the error only feeds logging.
func Evaluate(sc *device.Scene, shades ShadeLookup) (bool, error) {
	if sc == nil || len(sc.Members) == 0 {
		return false, ErrNoMembers
	}

	for _, m := range sc.Members {
		shade, err := shades.GetShadeByURL(m.DeviceURL)
		if err != nil {
			return false, fmt.Errorf("%w: %s", ErrMemberNotFound, m.DeviceURL)
		}

		match, err := memberMatches(m, shade)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}

	return true, nil
}

// memberMatches checks one (device, axis, target) entry against the
// shade's current readings.
func memberMatches(m device.SceneMember, shade *device.Shade) (bool, error) {
	switch m.StateName {
	case "pos1":
		actual := shade.Positions.Primary
		// Top-down/bottom-up shades report their rails the other
		// way round: pos1 drives the secondary (bottom-up) rail.
		if shade.Capability == device.ClassTopDownBottomUp {
			actual = shade.Positions.Secondary
		}
		if !withinTolerance(m.Target/positionScale, actual) {
			return false, errIfMissing(actual, m, shade)
		}
		if shade.Capability.Duolite() {
			// The rear fabric must be fully deployed before the
			// front one counts as positioned.
			if shade.Positions.Secondary == nil || *shade.Positions.Secondary != duoliteSecondaryDeployed {
				return false, nil
			}
		}
		return true, nil

	case "pos2":
		actual := shade.Positions.Secondary
		if shade.Capability == device.ClassTopDownBottomUp {
			actual = shade.Positions.Primary
		}
		if !withinTolerance(m.Target/positionScale, actual) {
			return false, errIfMissing(actual, m, shade)
		}
		if shade.Capability.Duolite() {
			if shade.Positions.Primary == nil || *shade.Positions.Primary != duolitePrimaryOpen {
				return false, nil
			}
		}
		return true, nil

	case "tilt":
		actual := shade.Positions.Tilt
		if !withinTolerance(m.Target/tiltScale, actual) {
			return false, errIfMissing(actual, m, shade)
		}
		return true, nil

	default:
		// Velocity, ETA and anything else the gateway attaches to a
		// scene member are never position checks.
		return true, nil
	}
}

// withinTolerance reports whether actual is present and within the
// match tolerance of want.
func withinTolerance(want int, actual *int) bool {
	if actual == nil {
		return false
	}
	diff := want - *actual
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// errIfMissing distinguishes "axis never reported" from a plain
// out-of-tolerance miss so the log line can say which it was.
func errIfMissing(actual *int, m device.SceneMember, shade *device.Shade) error {
	if actual == nil {
		return fmt.Errorf("%w: %s %s on %s", ErrAxisUnavailable, m.DeviceURL, m.StateName, shade.Address)
	}
	return nil
}
