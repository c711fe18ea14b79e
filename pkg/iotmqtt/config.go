// Package iotmqtt connects the controller to a cloud IoT MQTT bridge. The
// bridge authenticates devices with a signed JWT in the password field and
// routes traffic over per-device topics.
package iotmqtt

import (
	"fmt"
	"time"
)

// Config identifies the device against the bridge.
type Config struct {
	ProjectID   string
	CloudRegion string
	RegistryID  string
	DeviceID    string

	// Algorithm selects the JWT signature: "RS256" or "ES256".
	Algorithm      string
	PrivateKeyFile string
	CACertsFile    string

	BridgeHost string
	BridgePort int

	// TokenLifetime bounds the JWT validity; the bridge drops the
	// connection when it expires and a fresh token is minted on reconnect.
	TokenLifetime time.Duration
}

// DefaultTokenLifetime matches the bridge-side session limit.
const DefaultTokenLifetime = 60 * time.Minute

// ClientID returns the full device path the bridge expects as MQTT client
// id.
func (c Config) ClientID() string {
	return fmt.Sprintf("projects/%s/locations/%s/registries/%s/devices/%s",
		c.ProjectID, c.CloudRegion, c.RegistryID, c.DeviceID)
}

// EventsTopic is where the device publishes telemetry.
func (c Config) EventsTopic() string {
	return fmt.Sprintf("/devices/%s/events", c.DeviceID)
}

// ConfigTopic carries device configuration pushed from the cloud.
func (c Config) ConfigTopic() string {
	return fmt.Sprintf("/devices/%s/config", c.DeviceID)
}

// CommandsTopic carries remote commands; the wildcard matches subfolders.
func (c Config) CommandsTopic() string {
	return fmt.Sprintf("/devices/%s/commands/#", c.DeviceID)
}

func (c Config) brokerURL() string {
	return fmt.Sprintf("ssl://%s:%d", c.BridgeHost, c.BridgePort)
}

func (c Config) validate() error {
	switch {
	case c.ProjectID == "":
		return fmt.Errorf("project id is required")
	case c.RegistryID == "":
		return fmt.Errorf("registry id is required")
	case c.DeviceID == "":
		return fmt.Errorf("device id is required")
	case c.PrivateKeyFile == "":
		return fmt.Errorf("private key file is required")
	case c.Algorithm != "RS256" && c.Algorithm != "ES256":
		return fmt.Errorf("unsupported JWT algorithm %q", c.Algorithm)
	}
	return nil
}
