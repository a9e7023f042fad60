package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outgoing messages at 1MB. Status values and
// entity notices are tiny; anything larger is a bug upstream, and
// most brokers would reject it anyway.
const maxPayloadSize = 1 << 20

// Publish sends a message to a topic. Retained messages are for
// state topics, where a late subscriber should immediately see the
// last value; command and event topics publish unretained.
//
//	topic := mqtt.Topics{}.Status("shce86a4fe", "primary")
//	err := client.Publish(topic, []byte("42"), 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the configured
// default QoS. The status fan-out and entity notices go through
// here.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
