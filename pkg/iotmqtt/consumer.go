package iotmqtt

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IConsumer is the message consuming contract services depend on.
type IConsumer interface {
	Consume(ctx context.Context) error
	SetHandler(handler func(topic string, message mqtt.Message) error)
}

// Consumer subscribes to one topic and feeds messages to a handler until
// its context is cancelled.
type Consumer struct {
	conn    *Conn
	topic   string
	qos     byte
	handler func(topic string, message mqtt.Message) error
}

var _ IConsumer = (*Consumer)(nil)

func NewConsumer(conn *Conn, topic string, qos byte, handler func(string, mqtt.Message) error) *Consumer {
	return &Consumer{conn: conn, topic: topic, qos: qos, handler: handler}
}

func (c *Consumer) SetHandler(handler func(string, mqtt.Message) error) {
	c.handler = handler
}

// Consume subscribes and blocks until ctx is done, then unsubscribes.
func (c *Consumer) Consume(ctx context.Context) error {
	err := c.conn.Subscribe(c.topic, c.qos, func(_ mqtt.Client, message mqtt.Message) {
		if c.handler == nil {
			c.conn.log.Warnw("no handler for message", "topic", c.topic)
			return
		}
		if err := c.handler(message.Topic(), message); err != nil {
			c.conn.log.Errorw("message handler failed", "topic", message.Topic(), "err", err)
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	c.conn.Unsubscribe(c.topic)
	return ctx.Err()
}
