package device

import (
	"time"
)

// CapabilityClass enumerates what a shade can physically do: which of the
// primary, secondary and tilt axes are meaningful, and how scene targets
// map onto them. The numbering follows the PowerView shade-type taxonomy
// so gateway-reported capabilities translate one to one.
type CapabilityClass int

// Capability classes. The zero value is a plain bottom-up shade.
const (
	ClassBottomUp          CapabilityClass = 0  // primary lift only
	ClassBottomUpTilt90    CapabilityClass = 1  // primary lift + 90 degree tilt
	ClassBottomUpTilt180   CapabilityClass = 2  // primary lift + 180 degree tilt
	ClassVertical          CapabilityClass = 3  // primary traverse only
	ClassVerticalTilt180   CapabilityClass = 4  // primary traverse + 180 degree tilt
	ClassTiltOnly180       CapabilityClass = 5  // tilt only, no lift
	ClassTopDown           CapabilityClass = 6  // secondary (top-down) rail only
	ClassTopDownBottomUp   CapabilityClass = 7  // both rails, pos1/pos2 swapped
	ClassDuoliteLift       CapabilityClass = 8  // dual fabric, lift only
	ClassDuoliteLiftTilt90 CapabilityClass = 9  // dual fabric, lift + 90 degree tilt
	ClassDuoliteTilt180    CapabilityClass = 10 // dual fabric, lift + 180 degree tilt
	ClassFull              CapabilityClass = 11 // primary, secondary, and tilt

	// ClassUnknown marks a shade whose gateway type was not recognised.
	// It reports every axis so no state is silently dropped.
	ClassUnknown CapabilityClass = -1
)

// AllCapabilityClasses returns every known capability class.
func AllCapabilityClasses() []CapabilityClass {
	return []CapabilityClass{
		ClassBottomUp,
		ClassBottomUpTilt90,
		ClassBottomUpTilt180,
		ClassVertical,
		ClassVerticalTilt180,
		ClassTiltOnly180,
		ClassTopDown,
		ClassTopDownBottomUp,
		ClassDuoliteLift,
		ClassDuoliteLiftTilt90,
		ClassDuoliteTilt180,
		ClassFull,
	}
}

// Axes describes which position axes a capability class supports.
type Axes struct {
	Primary   bool
	Secondary bool
	Tilt      bool
}

// Axes returns the position axes meaningful for this class.
// Unrecognised classes report all three so nothing gets dropped.
func (c CapabilityClass) Axes() Axes {
	switch c {
	case ClassBottomUp, ClassVertical:
		return Axes{Primary: true}
	case ClassBottomUpTilt90, ClassBottomUpTilt180, ClassVerticalTilt180:
		return Axes{Primary: true, Tilt: true}
	case ClassTiltOnly180:
		return Axes{Tilt: true}
	case ClassTopDown:
		return Axes{Secondary: true}
	case ClassTopDownBottomUp, ClassDuoliteLift:
		return Axes{Primary: true, Secondary: true}
	default:
		return Axes{Primary: true, Secondary: true, Tilt: true}
	}
}

// Duolite reports whether this class runs two fabrics on one tube.
// Duolite shades add an exclusivity rule to scene matching: the idle
// fabric must be fully out of the way before the other counts as
// positioned.
func (c CapabilityClass) Duolite() bool {
	return c == ClassDuoliteLift || c == ClassDuoliteLiftTilt90 || c == ClassDuoliteTilt180
}

// String returns a human-readable class name for logs.
func (c CapabilityClass) String() string {
	switch c {
	case ClassBottomUp:
		return "bottom-up"
	case ClassBottomUpTilt90:
		return "bottom-up-tilt-90"
	case ClassBottomUpTilt180:
		return "bottom-up-tilt-180"
	case ClassVertical:
		return "vertical"
	case ClassVerticalTilt180:
		return "vertical-tilt-180"
	case ClassTiltOnly180:
		return "tilt-only-180"
	case ClassTopDown:
		return "top-down"
	case ClassTopDownBottomUp:
		return "top-down-bottom-up"
	case ClassDuoliteLift:
		return "duolite-lift"
	case ClassDuoliteLiftTilt90:
		return "duolite-lift-tilt-90"
	case ClassDuoliteTilt180:
		return "duolite-lift-tilt-180"
	case ClassFull:
		return "full"
	default:
		return "unknown"
	}
}

// Positions holds the last-known position of each axis as a percentage
// in [0, 100]. A nil field means the gateway has never reported that
// axis, which is distinct from a reported zero.
type Positions struct {
	Primary   *int
	Secondary *int
	Tilt      *int
}

// DeepCopy returns a copy sharing no pointers with the original.
func (p Positions) DeepCopy() Positions {
	return Positions{
		Primary:   copyIntPtr(p.Primary),
		Secondary: copyIntPtr(p.Secondary),
		Tilt:      copyIntPtr(p.Tilt),
	}
}

// Shade is the last-known canonical record for one motorized shade.
//
// Records are owned by the Registry; all mutation happens under the
// registry lock and everything handed out is a deep copy.
type Shade struct {
	// DeviceURL is the gateway-assigned identifier, stable across
	// sessions (e.g. "io://1234-5678-9012/12345678").
	DeviceURL string

	// Address is the deterministic local identifier derived from the
	// DeviceURL suffix ("sh" + suffix, max 14 chars, lowercased).
	Address string

	// Label is the display name as reported by the gateway.
	Label string

	// ControllableName is the gateway's device type string, kept for
	// re-deriving the capability class and for diagnostics.
	ControllableName string

	// RoomID groups shades by physical location. Empty when the
	// gateway reports no placement.
	RoomID string

	Capability CapabilityClass
	Positions  Positions

	// Battery is the last-reported level in [0, 100]; nil for mains
	// powered shades or when never reported.
	Battery *int

	// RSSI is the last-reported radio signal strength in dBm.
	RSSI *int

	// Moving is true between a motion-started and a motion-stopped
	// event. Not persisted.
	Moving bool

	Online    bool
	UpdatedAt time.Time
}

// DeepCopy returns a copy of the shade sharing no pointers with the
// original.
func (s *Shade) DeepCopy() *Shade {
	if s == nil {
		return nil
	}
	out := *s
	out.Positions = s.Positions.DeepCopy()
	out.Battery = copyIntPtr(s.Battery)
	out.RSSI = copyIntPtr(s.RSSI)
	return &out
}

// SceneMember is one (device, axis, target) entry in a scene's
// membership list. StateName is the abstract axis name the gateway
// uses ("pos1", "pos2", "tilt"); how it maps onto a physical axis
// depends on the member device's capability class.
type SceneMember struct {
	DeviceURL string
	StateName string
	Target    int
}

// Scene is the last-known canonical record for one gateway scenario.
type Scene struct {
	// OID is the gateway-assigned scenario identifier.
	OID string

	// Address is the deterministic local identifier
	// ("scene" + OID, max 14 chars, lowercased).
	Address string

	Label string

	// Members lists the devices this scene positions, in gateway order.
	Members []SceneMember

	// Active is the locally calculated activity state.
	Active bool

	UpdatedAt time.Time
}

// DeepCopy returns a copy of the scene with its own membership slice.
func (s *Scene) DeepCopy() *Scene {
	if s == nil {
		return nil
	}
	out := *s
	if s.Members != nil {
		out.Members = make([]SceneMember, len(s.Members))
		copy(out.Members, s.Members)
	}
	return &out
}

// HasMember reports whether the scene's membership includes the device.
func (s *Scene) HasMember(deviceURL string) bool {
	for _, m := range s.Members {
		if m.DeviceURL == deviceURL {
			return true
		}
	}
	return false
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
