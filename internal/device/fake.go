package device

import (
	"sync"

	"autoplant/internal/model"
)

// FakeRelay records switch transitions. It stands in for a relay in tests
// and in offline mode.
type FakeRelay struct {
	mu          sync.Mutex
	on          bool
	transitions []bool
}

func (f *FakeRelay) On() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = true
	f.transitions = append(f.transitions, true)
	return nil
}

func (f *FakeRelay) Off() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = false
	f.transitions = append(f.transitions, false)
	return nil
}

// IsOn reports the current state.
func (f *FakeRelay) IsOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// Transitions returns the recorded on/off history.
func (f *FakeRelay) Transitions() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.transitions))
	copy(out, f.transitions)
	return out
}

// FakeLevel is a settable float switch.
type FakeLevel struct {
	mu    sync.Mutex
	empty bool
	err   error
}

func (f *FakeLevel) SetEmpty(empty bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.empty = empty
}

func (f *FakeLevel) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeLevel) Empty() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.empty, f.err
}

// FakeClimate returns fixed readings, or a scripted sequence when Samples is
// set.
type FakeClimate struct {
	mu          sync.Mutex
	Temperature float64
	Humidity    float64
	Err         error
	Samples     [][2]float64
	next        int
}

func (f *FakeClimate) Read() (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, 0, f.Err
	}
	if len(f.Samples) > 0 {
		s := f.Samples[f.next%len(f.Samples)]
		f.next++
		return s[0], s[1], nil
	}
	return f.Temperature, f.Humidity, nil
}

// FakeHardware bundles fakes for the full board, used by offline mode.
type FakeHardware struct {
	Pump    *FakeRelay
	Lamp    *FakeRelay
	Tank    *FakeLevel
	Weather *FakeClimate
}

func NewFakeHardware() *FakeHardware {
	return &FakeHardware{
		Pump:    &FakeRelay{},
		Lamp:    &FakeRelay{},
		Tank:    &FakeLevel{},
		Weather: &FakeClimate{Temperature: 21.5, Humidity: 48},
	}
}

func (f *FakeHardware) Relays() map[model.Device]Relay {
	return map[model.Device]Relay{
		model.DevicePump: f.Pump,
		model.DeviceLamp: f.Lamp,
	}
}

func (f *FakeHardware) Level() LevelSensor     { return f.Tank }
func (f *FakeHardware) Climate() ClimateSensor { return f.Weather }
