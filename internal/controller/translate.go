package controller

import (
	"strconv"
	"strings"
	"time"

	"github.com/sejgit/shadesync/internal/events"
	"github.com/sejgit/shadesync/internal/overkiz"
)

// Gateway state names the translator understands. Everything else in a
// device's state list passes through untouched.
const (
	stateClosure     = "core:ClosureState"
	stateDeployment  = "core:DeploymentState"
	stateOrientation = "core:SlateOrientationState"
	stateBatteryPct  = "core:BatteryLevelState"
	stateBattery     = "core:BatteryState"
	stateRSSI        = "core:RSSILevelState"
	stateStatus      = "core:StatusState"
	stateMoving      = "core:MovingState"
)

// Canonical state keys used in Record.States.
const (
	keyPrimary   = "primary"
	keySecondary = "secondary"
	keyTilt      = "tilt"
	keyBattery   = "battery"
	keyRSSI      = "rssi"
)

// translation is what one batch of raw gateway events reduces to.
type translation struct {
	// records go onto the event queue in arrival order.
	records []*events.Record

	// reconcile is set when the remote inventory changed (device or
	// scenario added/removed) and a discovery pass is due.
	reconcile bool

	// alive is set when the batch contained a gateway heartbeat.
	alive bool
}

// translate maps raw gateway events onto canonical queue records.
// Events the sync core does not act on are dropped here.
func translate(evts []overkiz.Event) translation {
	var tr translation
	for i := range evts {
		e := &evts[i]
		switch e.Name {
		case "DeviceStateChangedEvent":
			tr.records = append(tr.records, translateStateChange(e)...)

		case "ExecutionRegisteredEvent":
			if e.ActionOID != "" {
				tr.records = append(tr.records, &events.Record{
					Kind:      events.KindSceneActivated,
					Timestamp: eventTime(e),
					SceneOID:  e.ActionOID,
					ExecID:    e.ExecID,
				})
			}

		case "GatewayAliveEvent", "RefreshAllDevicesStatesCompletedEvent":
			tr.alive = true

		case "DeviceCreatedEvent", "DeviceRemovedEvent", "DeviceUpdatedEvent",
			"ActionGroupCreatedEvent", "ActionGroupRemovedEvent", "ActionGroupUpdatedEvent":
			tr.reconcile = true
		}
	}
	return tr
}

// translateStateChange splits one raw state-change event into canonical
// records: position/battery/signal deltas, motion edges, reachability
// edges and battery alerts.
func translateStateChange(e *overkiz.Event) []*events.Record {
	ts := eventTime(e)
	states := make(map[string]int)
	var recs []*events.Record

	for _, s := range e.DeviceStates {
		switch s.Name {
		case stateClosure:
			if v, ok := asInt(s.Value); ok {
				states[keyPrimary] = v
			}
		case stateDeployment:
			if v, ok := asInt(s.Value); ok {
				states[keySecondary] = v
			}
		case stateOrientation:
			if v, ok := asInt(s.Value); ok {
				states[keyTilt] = v
			}
		case stateBatteryPct:
			if v, ok := asInt(s.Value); ok {
				states[keyBattery] = v
			}
		case stateRSSI:
			if v, ok := asInt(s.Value); ok {
				states[keyRSSI] = v
			}
		case stateBattery:
			if level, ok := s.Value.(string); ok && isLowBattery(level) {
				recs = append(recs, &events.Record{
					Kind:      events.KindBatteryAlert,
					Timestamp: ts,
					DeviceURL: e.DeviceURL,
				})
			}
		case stateStatus:
			if status, ok := s.Value.(string); ok {
				kind := events.KindDeviceOffline
				if status == "available" {
					kind = events.KindDeviceOnline
				}
				recs = append(recs, &events.Record{
					Kind:      kind,
					Timestamp: ts,
					DeviceURL: e.DeviceURL,
				})
			}
		case stateMoving:
			if moving, ok := asBool(s.Value); ok {
				kind := events.KindMotionStopped
				if moving {
					kind = events.KindMotionStarted
				}
				recs = append(recs, &events.Record{
					Kind:      kind,
					Timestamp: ts,
					DeviceURL: e.DeviceURL,
				})
			}
		}
	}

	if len(states) > 0 {
		// Position deltas lead so a motion-stopped edge in the same
		// batch sees the final position already applied.
		recs = append([]*events.Record{{
			Kind:      events.KindDeviceStateChanged,
			Timestamp: ts,
			DeviceURL: e.DeviceURL,
			States:    states,
		}}, recs...)
	}
	return recs
}

// eventTime converts the gateway's millisecond timestamp, falling back
// to the local clock for events that carry none.
func eventTime(e *overkiz.Event) time.Time {
	if e.Timestamp > 0 {
		return time.UnixMilli(e.Timestamp).UTC()
	}
	return time.Now().UTC()
}

// asInt coerces the JSON value shapes the gateway uses for numeric
// states.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		// A few firmware versions quote numbers.
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// asBool coerces the gateway's boolean encodings.
func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return strings.EqualFold(b, "true"), true
	default:
		return false, false
	}
}

// isLowBattery matches the gateway's discrete battery levels that
// warrant an alert.
func isLowBattery(level string) bool {
	switch strings.ToLower(level) {
	case "low", "verylow", "critical":
		return true
	}
	return false
}
