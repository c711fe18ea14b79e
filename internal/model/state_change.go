package model

import "time"

// DeviceState is the relay state carried in a StateChangeEvent.
type DeviceState string

const (
	StateOn  DeviceState = "on"
	StateOff DeviceState = "off"
)

// ActivationSource records what triggered an activation.
type ActivationSource string

const (
	SourceSchedule ActivationSource = "schedule"
	SourceCommand  ActivationSource = "command"
)

// StateChangeEvent is emitted whenever a relay changes state.
type StateChangeEvent struct {
	Device    Device           `json:"device"`
	NewState  DeviceState      `json:"new_state"`
	Duration  time.Duration    `json:"duration"`
	Source    ActivationSource `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
}
