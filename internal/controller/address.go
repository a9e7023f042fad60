package controller

import (
	"strings"

	"github.com/sejgit/shadesync/internal/device"
)

// maxAddressLen is the host framework's limit on entity addresses.
const maxAddressLen = 14

// ShadeAddress derives the deterministic local address for a device:
// "sh" plus the identifier suffix after the last slash, lowercased and
// truncated. The suffix is stable across sessions, so the address is
// too.
func ShadeAddress(deviceURL string) string {
	suffix := deviceURL
	if i := strings.LastIndex(deviceURL, "/"); i >= 0 {
		suffix = deviceURL[i+1:]
	}
	return truncate("sh" + strings.ToLower(suffix))
}

// SceneAddress derives the deterministic local address for a
// scenario: "scene" plus the OID, lowercased and truncated.
func SceneAddress(oid string) string {
	return truncate("scene" + strings.ToLower(oid))
}

func truncate(addr string) string {
	if len(addr) > maxAddressLen {
		return addr[:maxAddressLen]
	}
	return addr
}

// capabilityTable maps gateway controllable-name substrings onto
// capability classes. First match wins, so more specific names come
// first (DualRollerShutter before RollerShutter, ExteriorScreen
// before Screen).
var capabilityTable = []struct {
	substr string
	class  device.CapabilityClass
}{
	{"VenetianBlind", device.ClassFull},
	{"DualRollerShutter", device.ClassTopDownBottomUp},
	{"ExteriorScreen", device.ClassBottomUp},
	{"Screen", device.ClassBottomUp},
	{"RollerShutter", device.ClassBottomUp},
	{"Awning", device.ClassBottomUp},
	{"Curtain", device.ClassBottomUp},
}

// Classify maps a gateway controllable name onto a capability class.
// Unrecognised names get ClassUnknown, which reports every axis; the
// caller logs those so new device types surface in operation.
func Classify(controllableName string) device.CapabilityClass {
	for _, entry := range capabilityTable {
		if strings.Contains(controllableName, entry.substr) {
			return entry.class
		}
	}
	return device.ClassUnknown
}

// coveringDevice reports whether a gateway device is a window covering
// we should represent. Gateway plumbing (the pod itself, protocol
// bridges) lives outside the io: namespace.
func coveringDevice(controllableName string) bool {
	return strings.HasPrefix(controllableName, "io:") ||
		strings.HasPrefix(controllableName, "rts:")
}
