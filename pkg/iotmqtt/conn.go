package iotmqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"autoplant/internal/logger"
)

// maxBackoff caps the reconnect delay before giving up on the initial
// connect.
const maxBackoff = 128 * time.Second

// Conn wraps the paho client with bridge authentication and re-subscription
// across reconnects.
type Conn struct {
	client mqtt.Client
	cfg    Config
	log    *logger.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	qos     byte
	handler mqtt.MessageHandler
}

// Dial connects to the bridge, retrying with exponential backoff. The
// connection closes when ctx is cancelled.
func Dial(ctx context.Context, cfg Config, log *logger.Logger) (*Conn, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("iotmqtt config: %w", err)
	}
	tlsCfg, err := tlsConfig(cfg.CACertsFile)
	if err != nil {
		return nil, err
	}

	c := &Conn{cfg: cfg, log: log, subs: make(map[string]subscription)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.brokerURL())
	opts.SetClientID(cfg.ClientID())
	opts.SetTLSConfig(tlsCfg)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxBackoff)
	// The bridge ignores the username; the password carries a JWT minted
	// fresh for every (re)connect so an expired token never sticks.
	opts.SetCredentialsProvider(func() (string, string) {
		token, err := mintToken(cfg, time.Now())
		if err != nil {
			log.Errorw("mint JWT failed", "err", err)
			return "unused", ""
		}
		return "unused", token
	})
	opts.SetOnConnectHandler(c.resubscribe)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("bridge connection lost", "err", err)
	})

	c.client = mqtt.NewClient(opts)

	err = backoff.Retry(func() error {
		if token := c.client.Connect(); token.Wait() && token.Error() != nil {
			log.Warnw("bridge connect failed, backing off", "err", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(connectBackOff(), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to bridge %s: %w", cfg.brokerURL(), err)
	}
	log.Infow("connected to bridge", "broker", cfg.brokerURL(), "client_id", cfg.ClientID())

	go func() {
		<-ctx.Done()
		c.client.Disconnect(250)
		log.Infow("bridge connection closed")
	}()
	return c, nil
}

// Subscribe registers a handler and subscribes now and after every
// reconnect.
func (c *Conn) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, handler)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	c.log.Infow("subscribed", "topic", topic, "qos", qos)
	return nil
}

// Unsubscribe drops a registered subscription.
func (c *Conn) Unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
	c.client.Unsubscribe(topic).Wait()
}

// Publish sends a payload on a topic.
func (c *Conn) Publish(topic string, qos byte, payload []byte) error {
	token := c.client.Publish(topic, qos, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// Connected reports whether the bridge link is up.
func (c *Conn) Connected() bool {
	return c.client.IsConnectionOpen()
}

// Client exposes the underlying paho client for health checks.
func (c *Conn) Client() mqtt.Client {
	return c.client
}

// resubscribe restores the clean-session subscriptions after a reconnect.
func (c *Conn) resubscribe(client mqtt.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for t, s := range c.subs {
		subs[t] = s
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		if token := client.Subscribe(topic, sub.qos, sub.handler); token.Wait() && token.Error() != nil {
			c.log.Errorw("resubscribe failed", "topic", topic, "err", token.Error())
		}
	}
}

// connectBackOff doubles the delay from one second up to maxBackoff and
// gives up once a doubled delay would pass the cap.
func connectBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.MaxInterval = maxBackoff
	bo.MaxElapsedTime = 0

	var retries uint64
	for d := bo.InitialInterval; d <= maxBackoff; d *= 2 {
		retries++
	}
	return backoff.WithMaxRetries(bo, retries)
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA roots: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}
