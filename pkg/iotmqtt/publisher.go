package iotmqtt

import (
	"encoding/json"
	"fmt"
)

// IPublisher is the telemetry publishing contract services depend on.
type IPublisher interface {
	// PublishEvent sends one {"<key>": <value>} payload to the events
	// topic.
	PublishEvent(key string, value any) error
}

// Publisher sends telemetry events over a Conn.
type Publisher struct {
	conn  *Conn
	topic string
}

var _ IPublisher = (*Publisher)(nil)

func NewPublisher(conn *Conn) *Publisher {
	return &Publisher{conn: conn, topic: conn.cfg.EventsTopic()}
}

// PublishEvent serialises the key/value pair the way the cloud side expects
// and publishes it at QoS 1.
func (p *Publisher) PublishEvent(key string, value any) error {
	payload, err := json.Marshal(map[string]any{key: value})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", key, err)
	}
	return p.conn.Publish(p.topic, 1, payload)
}
