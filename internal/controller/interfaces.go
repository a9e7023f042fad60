package controller

import (
	"context"

	"github.com/sejgit/shadesync/internal/overkiz"
)

// Gateway is the verb surface the controller needs from the gateway
// client. *overkiz.Client satisfies it; tests use fakes.
type Gateway interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ListDevices(ctx context.Context) ([]overkiz.Device, error)
	ListScenarios(ctx context.Context) ([]overkiz.ActionGroup, error)
	ExecuteCommand(ctx context.Context, deviceURL string, cmd overkiz.Command) (string, error)
	ExecuteScenario(ctx context.Context, oid string) (string, error)
	RegisterListener(ctx context.Context) error
	FetchEvents(ctx context.Context) ([]overkiz.Event, error)
	UnregisterListener(ctx context.Context) error
}

// EntityManager is the host-framework surface for entity lifecycle.
// CreateEntity blocks until the host confirms the entity exists, or
// ctx expires; reconciliation bounds that wait.
type EntityManager interface {
	CreateEntity(ctx context.Context, kind, address, label string) error
	RetireEntity(ctx context.Context, address string) error
	Rename(ctx context.Context, address, label string) error
}

// Entity kinds passed to EntityManager.CreateEntity.
const (
	KindShade = "shade"
	KindScene = "scene"
)

// StatusSink receives field updates for externally visible entity
// state. The shipped implementation publishes to MQTT.
type StatusSink interface {
	SetStatus(address, field string, value any) error
}

// EventPublisher is optionally implemented by a StatusSink. When
// present, every canonical event that enters the queue is mirrored to
// it as well.
type EventPublisher interface {
	PublishEvent(kind string, payload []byte) error
}

// Recorder receives time-series samples. Optional; a nil Recorder
// drops them. *influxdb.Client satisfies it.
type Recorder interface {
	WritePosition(address, axis string, value float64)
	WriteBattery(address string, level float64)
	WriteSignal(address string, rssi float64)
	WriteSceneActivity(address string, active bool)
}

// Logger is the logging interface used throughout the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
