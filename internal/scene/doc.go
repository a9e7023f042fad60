// Package scene decides whether a scene is currently "active": whether
// every shade it positions is sitting where the scene would put it.
//
// The calculation is pure. It reads member targets from the scene
// record and current positions from a lookup, compares them axis by
// axis with a small tolerance, and returns a verdict. No gateway
// traffic, no side effects.
//
// Axis mapping is capability-aware. A scene target names abstract axes
// ("pos1", "pos2", "tilt"); which physical rail those mean depends on
// the shade. Top-down/bottom-up shades (class 7) swap pos1 and pos2
// relative to every other class. Duolite shades add an exclusivity
// rule: a fabric only counts as positioned when the other fabric is
// fully out of the way.
//
// Anything that cannot be evaluated fails closed: an empty membership,
// a member with no registry record, or a missing axis reading all mean
// "not active".
package scene
