package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sejgit/shadesync/internal/controller"
	"github.com/sejgit/shadesync/internal/device"
	"github.com/sejgit/shadesync/internal/infrastructure/logging"
	"github.com/sejgit/shadesync/internal/infrastructure/mqtt"
)

// mqttBridge is the MQTT face of the sync core. It implements
// controller.EntityManager, controller.StatusSink and
// controller.EventPublisher over the shadesync topic scheme, and
// dispatches inbound command topics to the controller.
type mqttBridge struct {
	client *mqtt.Client
	topics mqtt.Topics
	log    *logging.Logger
	qos    byte

	cmdTimeout time.Duration

	mu       sync.Mutex
	entities map[string]entityNotice
}

// entityNotice is the retained lifecycle payload on
// shadesync/entity/{address}. An empty retained message on the same
// topic marks the entity retired.
type entityNotice struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Label   string `json:"label"`
}

func newMQTTBridge(client *mqtt.Client, qos byte, cmdTimeout time.Duration, log *logging.Logger) *mqttBridge {
	return &mqttBridge{
		client:     client,
		log:        log,
		qos:        qos,
		cmdTimeout: cmdTimeout,
		entities:   make(map[string]entityNotice),
	}
}

// CreateEntity publishes the retained lifecycle notice. The broker
// acknowledging the publish is the host confirmation the controller
// waits for.
func (b *mqttBridge) CreateEntity(ctx context.Context, kind, address, label string) error {
	notice := entityNotice{Kind: kind, Address: address, Label: label}
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encoding entity notice: %w", err)
	}
	if err := b.client.PublishRetained(b.topics.Entity(address), payload); err != nil {
		return fmt.Errorf("publishing entity notice: %w", err)
	}
	b.mu.Lock()
	b.entities[address] = notice
	b.mu.Unlock()
	return nil
}

// RetireEntity clears the retained notice so late subscribers no
// longer see the entity.
func (b *mqttBridge) RetireEntity(ctx context.Context, address string) error {
	if err := b.client.PublishRetained(b.topics.Entity(address), nil); err != nil {
		return fmt.Errorf("clearing entity notice: %w", err)
	}
	b.mu.Lock()
	delete(b.entities, address)
	b.mu.Unlock()
	return nil
}

// Rename republishes the lifecycle notice with the new label.
func (b *mqttBridge) Rename(ctx context.Context, address, label string) error {
	b.mu.Lock()
	notice, ok := b.entities[address]
	b.mu.Unlock()
	if !ok {
		notice = entityNotice{Kind: controller.KindShade, Address: address}
	}
	notice.Label = label
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encoding entity notice: %w", err)
	}
	if err := b.client.PublishRetained(b.topics.Entity(address), payload); err != nil {
		return fmt.Errorf("publishing entity notice: %w", err)
	}
	b.mu.Lock()
	b.entities[address] = notice
	b.mu.Unlock()
	return nil
}

// SetStatus publishes one status field, retained, so subscribers
// joining later see current state without waiting for a change.
func (b *mqttBridge) SetStatus(address, field string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding status value: %w", err)
	}
	return b.client.PublishRetained(b.topics.Status(address, field), payload)
}

// PublishEvent mirrors a canonical event, not retained; the mirror is
// a stream, not state.
func (b *mqttBridge) PublishEvent(kind string, payload []byte) error {
	return b.client.Publish(b.topics.Event(kind), payload, b.qos, false)
}

// positionPayload is the JSON body of a position command.
type positionPayload struct {
	Primary   *int `json:"primary,omitempty"`
	Secondary *int `json:"secondary,omitempty"`
	Tilt      *int `json:"tilt,omitempty"`
}

// SubscribeCommands wires shadesync/command/{address}/{verb} to the
// controller's command surface.
func (b *mqttBridge) SubscribeCommands(ctrl *controller.Controller) error {
	return b.client.Subscribe(b.topics.AllCommands(), b.qos, func(topic string, payload []byte) error {
		address, verb, ok := parseCommandTopic(topic)
		if !ok {
			b.log.Warn("malformed command topic", "topic", topic)
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), b.cmdTimeout)
		defer cancel()

		var err error
		switch verb {
		case "open":
			err = ctrl.OpenShade(ctx, address)
		case "close":
			err = ctrl.CloseShade(ctx, address)
		case "stop":
			err = ctrl.StopShade(ctx, address)
		case "my":
			err = ctrl.MyPosition(ctx, address)
		case "tilt_open":
			err = ctrl.TiltOpen(ctx, address)
		case "tilt_close":
			err = ctrl.TiltClose(ctx, address)
		case "position":
			var p positionPayload
			if err = json.Unmarshal(payload, &p); err != nil {
				b.log.Warn("malformed position command",
					"address", address, "error", err)
				return nil
			}
			err = ctrl.SetPositions(ctx, address, device.Positions{
				Primary:   p.Primary,
				Secondary: p.Secondary,
				Tilt:      p.Tilt,
			})
		case "activate":
			err = ctrl.ActivateScene(ctx, address)
		case "refresh":
			err = ctrl.RefreshEntity(ctx, address)
		default:
			b.log.Warn("unknown command verb", "address", address, "verb", verb)
			return nil
		}

		if err != nil {
			b.log.Error("command failed",
				"address", address, "verb", verb, "error", err)
		}
		return nil
	})
}

// parseCommandTopic splits shadesync/command/{address}/{verb}.
func parseCommandTopic(topic string) (address, verb string, ok bool) {
	rest, found := strings.CutPrefix(topic, mqtt.TopicPrefixCommand+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
