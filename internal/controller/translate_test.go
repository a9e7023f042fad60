package controller

import (
	"testing"
	"time"

	"github.com/sejgit/shadesync/internal/events"
	"github.com/sejgit/shadesync/internal/overkiz"
)

const testDeviceURL = "io://1234-5678-9012/11111111"

func TestTranslate_StateChange(t *testing.T) {
	tr := translate([]overkiz.Event{{
		Name:      "DeviceStateChangedEvent",
		Timestamp: 1700000000000,
		DeviceURL: testDeviceURL,
		DeviceStates: []overkiz.DeviceState{
			{Name: stateClosure, Value: float64(42)},
			{Name: stateOrientation, Value: "17"},
			{Name: stateBatteryPct, Value: float64(88)},
			{Name: stateRSSI, Value: float64(-60)},
			{Name: "core:NameState", Value: "ignored"},
		},
	}})

	if len(tr.records) != 1 {
		t.Fatalf("records = %d, want 1", len(tr.records))
	}
	rec := tr.records[0]
	if rec.Kind != events.KindDeviceStateChanged {
		t.Errorf("Kind = %q, want %q", rec.Kind, events.KindDeviceStateChanged)
	}
	if rec.DeviceURL != testDeviceURL {
		t.Errorf("DeviceURL = %q, want %q", rec.DeviceURL, testDeviceURL)
	}
	want := map[string]int{keyPrimary: 42, keyTilt: 17, keyBattery: 88, keyRSSI: -60}
	for k, v := range want {
		if rec.States[k] != v {
			t.Errorf("States[%q] = %d, want %d", k, rec.States[k], v)
		}
	}
	if len(rec.States) != len(want) {
		t.Errorf("States has %d keys, want %d", len(rec.States), len(want))
	}
	if got := rec.Timestamp; !got.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Errorf("Timestamp = %v, want gateway millis", got)
	}
}

func TestTranslate_MotionAndReachability(t *testing.T) {
	tr := translate([]overkiz.Event{{
		Name:      "DeviceStateChangedEvent",
		DeviceURL: testDeviceURL,
		DeviceStates: []overkiz.DeviceState{
			{Name: stateMoving, Value: true},
			{Name: stateStatus, Value: "unavailable"},
		},
	}})

	kinds := recordKinds(tr.records)
	wantKinds := []events.Kind{events.KindMotionStarted, events.KindDeviceOffline}
	if len(kinds) != len(wantKinds) {
		t.Fatalf("kinds = %v, want %v", kinds, wantKinds)
	}
	for _, want := range wantKinds {
		if !containsKind(kinds, want) {
			t.Errorf("kinds = %v, missing %q", kinds, want)
		}
	}
}

func TestTranslate_PositionLeadsMotionStop(t *testing.T) {
	tr := translate([]overkiz.Event{{
		Name:      "DeviceStateChangedEvent",
		DeviceURL: testDeviceURL,
		DeviceStates: []overkiz.DeviceState{
			{Name: stateMoving, Value: false},
			{Name: stateClosure, Value: float64(100)},
		},
	}})

	if len(tr.records) != 2 {
		t.Fatalf("records = %d, want 2", len(tr.records))
	}
	if tr.records[0].Kind != events.KindDeviceStateChanged {
		t.Errorf("first record = %q, want state change before motion stop", tr.records[0].Kind)
	}
	if tr.records[1].Kind != events.KindMotionStopped {
		t.Errorf("second record = %q, want %q", tr.records[1].Kind, events.KindMotionStopped)
	}
}

func TestTranslate_BatteryAlert(t *testing.T) {
	for _, level := range []string{"low", "verylow", "critical", "Low"} {
		tr := translate([]overkiz.Event{{
			Name:         "DeviceStateChangedEvent",
			DeviceURL:    testDeviceURL,
			DeviceStates: []overkiz.DeviceState{{Name: stateBattery, Value: level}},
		}})
		if len(tr.records) != 1 || tr.records[0].Kind != events.KindBatteryAlert {
			t.Errorf("level %q: records = %v, want one battery alert", level, recordKinds(tr.records))
		}
	}

	tr := translate([]overkiz.Event{{
		Name:         "DeviceStateChangedEvent",
		DeviceURL:    testDeviceURL,
		DeviceStates: []overkiz.DeviceState{{Name: stateBattery, Value: "normal"}},
	}})
	if len(tr.records) != 0 {
		t.Errorf("normal battery produced %v, want nothing", recordKinds(tr.records))
	}
}

func TestTranslate_SceneExecution(t *testing.T) {
	tr := translate([]overkiz.Event{{
		Name:      "ExecutionRegisteredEvent",
		Timestamp: 1700000001000,
		ExecID:    "exec-1",
		ActionOID: "scene-oid-1",
	}})

	if len(tr.records) != 1 {
		t.Fatalf("records = %d, want 1", len(tr.records))
	}
	rec := tr.records[0]
	if rec.Kind != events.KindSceneActivated {
		t.Errorf("Kind = %q, want %q", rec.Kind, events.KindSceneActivated)
	}
	if rec.SceneOID != "scene-oid-1" || rec.ExecID != "exec-1" {
		t.Errorf("SceneOID/ExecID = %q/%q", rec.SceneOID, rec.ExecID)
	}
}

// A device command execution carries no action group OID and must not
// masquerade as a scene activation.
func TestTranslate_DeviceExecutionIgnored(t *testing.T) {
	tr := translate([]overkiz.Event{{
		Name:   "ExecutionRegisteredEvent",
		ExecID: "exec-2",
	}})
	if len(tr.records) != 0 {
		t.Errorf("records = %v, want none", recordKinds(tr.records))
	}
}

func TestTranslate_InventoryAndHeartbeat(t *testing.T) {
	tr := translate([]overkiz.Event{
		{Name: "DeviceCreatedEvent", DeviceURL: testDeviceURL},
		{Name: "ActionGroupRemovedEvent"},
		{Name: "GatewayAliveEvent"},
		{Name: "SomethingUnheardOfEvent"},
	})
	if !tr.reconcile {
		t.Error("reconcile = false, want true after inventory change")
	}
	if !tr.alive {
		t.Error("alive = false, want true after heartbeat")
	}
	if len(tr.records) != 0 {
		t.Errorf("records = %v, want none", recordKinds(tr.records))
	}
}

func TestTranslate_MissingTimestampUsesClock(t *testing.T) {
	before := time.Now().UTC()
	tr := translate([]overkiz.Event{{
		Name:         "DeviceStateChangedEvent",
		DeviceURL:    testDeviceURL,
		DeviceStates: []overkiz.DeviceState{{Name: stateClosure, Value: float64(1)}},
	}})
	if len(tr.records) != 1 {
		t.Fatalf("records = %d, want 1", len(tr.records))
	}
	ts := tr.records[0].Timestamp
	if ts.Before(before) || ts.After(time.Now().UTC()) {
		t.Errorf("Timestamp = %v, want local clock fallback", ts)
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		in     any
		want   int
		wantOK bool
	}{
		{float64(42), 42, true},
		{7, 7, true},
		{"13", 13, true},
		{"-60", -60, true},
		{"closed", 0, false},
		{"", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := asInt(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("asInt(%v) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		in     any
		want   bool
		wantOK bool
	}{
		{true, true, true},
		{false, false, true},
		{"true", true, true},
		{"True", true, true},
		{"false", false, true},
		{float64(1), false, false},
	}
	for _, tt := range tests {
		got, ok := asBool(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("asBool(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func recordKinds(recs []*events.Record) []events.Kind {
	kinds := make([]events.Kind, 0, len(recs))
	for _, r := range recs {
		kinds = append(kinds, r.Kind)
	}
	return kinds
}

func containsKind(kinds []events.Kind, want events.Kind) bool {
	for _, k := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
