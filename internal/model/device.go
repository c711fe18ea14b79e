package model

import "fmt"

// Device identifies one of the relay-driven outputs.
type Device string

const (
	DevicePump Device = "pump"
	DeviceLamp Device = "lamp"
)

// Devices lists every device the controller knows about, in a stable order.
var Devices = []Device{DevicePump, DeviceLamp}

// ParseDevice validates a device name from a schedule line or a remote
// command.
func ParseDevice(s string) (Device, error) {
	for _, d := range Devices {
		if s == string(d) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown device %q", s)
}

func (d Device) String() string { return string(d) }
