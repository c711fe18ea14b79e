package model

import "time"

// SensorReading is one averaged measurement cycle.
type SensorReading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	TankEmpty   bool      `json:"tank_empty"`
	Timestamp   time.Time `json:"timestamp"`
}

// LevelString renders the tank state the way the cloud side expects it.
func (r SensorReading) LevelString() string {
	if r.TankEmpty {
		return "empty"
	}
	return "full"
}
