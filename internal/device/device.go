// Package device drives the garden hardware: the pump and lamp relays, the
// tank float switch and the climate sensor. Interfaces keep the hardware
// swappable; the gobot implementations back them on a Raspberry Pi and the
// fakes back them in tests and offline mode.
package device

import "errors"

var (
	// ErrTankEmpty aborts a pump pulse when the float switch reports an
	// empty tank. Running the pump dry damages it.
	ErrTankEmpty = errors.New("tank empty")

	// ErrBusy is returned when a device is already in an activation window.
	ErrBusy = errors.New("device busy")

	// ErrUnknownDevice is returned for names outside the configured set.
	ErrUnknownDevice = errors.New("unknown device")
)

// Relay switches one output on or off.
type Relay interface {
	On() error
	Off() error
}

// LevelSensor reads the water tank float switch.
type LevelSensor interface {
	// Empty reports whether the tank is below the pump intake.
	Empty() (bool, error)
}

// ClimateSensor reads ambient temperature and relative humidity.
type ClimateSensor interface {
	Read() (temperature, humidity float64, err error)
}
