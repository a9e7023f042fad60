package events

import (
	"slices"
	"sync"
	"time"
)

// Kind identifies the canonical event type carried by a Record.
type Kind string

// Canonical event kinds. These are the gateway's event vocabulary reduced
// to what the sync core acts on, plus the synthesized scene-recompute kind.
const (
	// KindHomeSnapshot is the full-state broadcast published after a
	// reconcile pass. Every entity refreshes itself from the registry.
	KindHomeSnapshot Kind = "home-snapshot"

	// KindDeviceStateChanged carries one or more changed state values for
	// a single shade.
	KindDeviceStateChanged Kind = "device-state-changed"

	// KindMotionStarted and KindMotionStopped bracket a shade movement.
	KindMotionStarted Kind = "motion-started"
	KindMotionStopped Kind = "motion-stopped"

	// KindDeviceOnline and KindDeviceOffline track reachability.
	KindDeviceOnline  Kind = "device-online"
	KindDeviceOffline Kind = "device-offline"

	// KindBatteryAlert signals a low battery report from the gateway.
	KindBatteryAlert Kind = "battery-alert"

	// KindSceneActivated and KindSceneDeactivated are gateway-reported
	// scene state transitions.
	KindSceneActivated   Kind = "scene-activated"
	KindSceneDeactivated Kind = "scene-deactivated"

	// KindSceneAdded, KindDeviceAdded and KindDeviceRemoved indicate the
	// remote inventory changed and a reconcile is due.
	KindSceneAdded    Kind = "scene-added"
	KindDeviceAdded   Kind = "device-added"
	KindDeviceRemoved Kind = "device-removed"

	// KindSceneRecompute is synthesized locally after motion stops. Scene
	// consumers whose membership includes the moved shade re-derive their
	// activity state.
	KindSceneRecompute Kind = "scene-recompute"
)

// Record is a single canonical event on the queue.
//
// Records are shared by pointer between all consumers. The scalar fields
// are set once at construction and never mutated afterwards; only the
// membership lists change, through the locked methods below.
type Record struct {
	// Kind discriminates the event.
	Kind Kind

	// Timestamp orders entity-addressed events. Zero for home snapshots,
	// which are not ordered against other records.
	Timestamp time.Time

	// DeviceURL addresses the shade this record concerns, if any.
	DeviceURL string

	// SceneOID addresses the scene this record concerns, if any.
	SceneOID string

	// States carries changed state values for device-state-changed
	// records, keyed by the gateway state name.
	States map[string]int

	// ExecID is the gateway execution identifier for execution events.
	ExecID string

	mu     sync.Mutex
	shades []string
	scenes []string
}

// NewHomeSnapshot builds a broadcast record addressed to every entity in
// the given lists. Shades are identified by local address, scenes by
// OID. The slices are copied.
func NewHomeSnapshot(shadeAddrs, sceneOIDs []string) *Record {
	return &Record{
		Kind:   KindHomeSnapshot,
		shades: slices.Clone(shadeAddrs),
		scenes: slices.Clone(sceneOIDs),
	}
}

// NewSceneRecompute builds a recompute record for the scenes whose
// membership includes the shade that just stopped moving.
func NewSceneRecompute(deviceURL string, sceneOIDs []string, ts time.Time) *Record {
	return &Record{
		Kind:      KindSceneRecompute,
		Timestamp: ts,
		DeviceURL: deviceURL,
		scenes:    slices.Clone(sceneOIDs),
	}
}

// Shades returns a copy of the pending shade membership list.
func (r *Record) Shades() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.shades)
}

// Scenes returns a copy of the pending scene membership list.
func (r *Record) Scenes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.scenes)
}

// HasShade reports whether the shade is still pending on this record.
func (r *Record) HasShade(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.shades, addr)
}

// HasScene reports whether the scene is still pending on this record.
func (r *Record) HasScene(oid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.scenes, oid)
}

// RemoveShade takes the shade off the pending list. Removing an absent
// shade is a no-op. Returns true when both membership lists are empty
// afterwards, meaning the record is fully consumed.
func (r *Record) RemoveShade(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.shades, addr); i >= 0 {
		r.shades = slices.Delete(r.shades, i, i+1)
	}
	return len(r.shades) == 0 && len(r.scenes) == 0
}

// RemoveScene takes the scene off the pending list. Removing an absent
// scene is a no-op. Returns true when both membership lists are empty
// afterwards.
func (r *Record) RemoveScene(oid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.scenes, oid); i >= 0 {
		r.scenes = slices.Delete(r.scenes, i, i+1)
	}
	return len(r.shades) == 0 && len(r.scenes) == 0
}

// Broadcast reports whether the record is consumed via membership lists
// rather than addressed to a single entity.
func (r *Record) Broadcast() bool {
	return r.Kind == KindHomeSnapshot || r.Kind == KindSceneRecompute
}
