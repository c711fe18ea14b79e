package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autoplant/internal/logger"
	"autoplant/internal/model"
)

// DefaultGuardTick is how often a running pump re-checks the float switch.
const DefaultGuardTick = time.Second

// Actuator turns activation requests into timed relay pulses. The relay is
// switched off on every exit path; the pump additionally re-checks the tank
// level while running and aborts when it empties.
type Actuator struct {
	log    *logger.Logger
	relays map[model.Device]Relay
	level  LevelSensor

	// GuardTick sets the level re-check interval; tests shorten it.
	GuardTick time.Duration

	// OnStateChange, when set, receives an event for every relay
	// transition.
	OnStateChange func(model.StateChangeEvent)

	mu          sync.Mutex
	activeUntil map[model.Device]time.Time
}

func NewActuator(log *logger.Logger, relays map[model.Device]Relay, level LevelSensor) *Actuator {
	return &Actuator{
		log:         log,
		relays:      relays,
		level:       level,
		GuardTick:   DefaultGuardTick,
		activeUntil: make(map[model.Device]time.Time),
	}
}

// ActiveWindows returns, for each currently active device, the time its
// pulse is due to end.
func (a *Actuator) ActiveWindows() map[model.Device]time.Time {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[model.Device]time.Time)
	for d, until := range a.activeUntil {
		if until.After(now) {
			out[d] = until
		}
	}
	return out
}

// Activate pulses a device for the given duration. It blocks until the pulse
// ends and guarantees the relay is released before returning. Overlapping
// activations of the same device are refused with ErrBusy; a pump pulse is
// refused or cut short with ErrTankEmpty when the tank runs dry.
func (a *Actuator) Activate(ctx context.Context, d model.Device, duration time.Duration, source model.ActivationSource) error {
	relay, ok := a.relays[d]
	if !ok {
		activationFailures.WithLabelValues(string(d), "unknown_device").Inc()
		return fmt.Errorf("%w: %s", ErrUnknownDevice, d)
	}
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", duration)
	}

	if !a.reserve(d, duration) {
		activationFailures.WithLabelValues(string(d), "busy").Inc()
		a.log.Infow("activation skipped, device busy", "device", d)
		return ErrBusy
	}
	defer a.release(d)

	if d == model.DevicePump {
		if err := a.checkTank(d); err != nil {
			return err
		}
	}

	if err := relay.On(); err != nil {
		activationFailures.WithLabelValues(string(d), "relay").Inc()
		return fmt.Errorf("switch %s on: %w", d, err)
	}
	started := time.Now()
	activeState.WithLabelValues(string(d)).Set(1)
	a.emit(d, model.StateOn, duration, source)
	a.log.Infow("device on", "device", d, "duration", duration, "source", source)

	defer func() {
		if err := relay.Off(); err != nil {
			a.log.Errorw("switch off failed", "device", d, "err", err)
		}
		activeState.WithLabelValues(string(d)).Set(0)
		a.emit(d, model.StateOff, time.Since(started), source)
		a.log.Infow("device off", "device", d, "after", time.Since(started).Round(time.Millisecond))
	}()

	done := time.NewTimer(duration)
	defer done.Stop()
	guard := time.NewTicker(a.GuardTick)
	defer guard.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done.C:
			activations.WithLabelValues(string(d), string(source)).Inc()
			return nil
		case <-guard.C:
			if d != model.DevicePump {
				continue
			}
			if err := a.checkTank(d); err != nil {
				return err
			}
		}
	}
}

// checkTank returns ErrTankEmpty when the float switch reports empty. A read
// failure also stops the pump: without a trustworthy level there is no dry-run
// protection.
func (a *Actuator) checkTank(d model.Device) error {
	if a.level == nil {
		return nil
	}
	empty, err := a.level.Empty()
	if err != nil {
		activationFailures.WithLabelValues(string(d), "sensor_error").Inc()
		return fmt.Errorf("tank level: %w", err)
	}
	if empty {
		activationFailures.WithLabelValues(string(d), "tank_empty").Inc()
		a.log.Warnw("tank empty, pump blocked", "device", d)
		return ErrTankEmpty
	}
	return nil
}

func (a *Actuator) reserve(d model.Device, duration time.Duration) bool {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	if until, ok := a.activeUntil[d]; ok && now.Before(until) {
		return false
	}
	a.activeUntil[d] = now.Add(duration)
	return true
}

func (a *Actuator) release(d model.Device) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.activeUntil, d)
}

func (a *Actuator) emit(d model.Device, state model.DeviceState, duration time.Duration, source model.ActivationSource) {
	if a.OnStateChange == nil {
		return
	}
	a.OnStateChange(model.StateChangeEvent{
		Device:    d,
		NewState:  state,
		Duration:  duration,
		Source:    source,
		Timestamp: time.Now(),
	})
}
