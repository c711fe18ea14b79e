package device

import (
	"fmt"

	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"autoplant/internal/model"
)

// PinConfig holds the wiring of the board. Relay pins use the adaptor's
// physical pin numbering; the relay board is NO with active-low inputs, so
// the drivers run inverted (matching the original wiring where the idle GPIO
// state is high).
type PinConfig struct {
	PumpPin  string
	LampPin  string
	LevelPin string
	I2CBus   int
}

// DefaultPins matches the wiring described in the build notes: pump relay on
// GPIO23 (pin 16), lamp relay on GPIO24 (pin 18), float switch on GPIO4
// (pin 7).
var DefaultPins = PinConfig{
	PumpPin:  "16",
	LampPin:  "18",
	LevelPin: "7",
	I2CBus:   1,
}

// Hardware is the gobot-backed implementation of the device interfaces.
type Hardware struct {
	adaptor *raspi.Adaptor
	relays  map[model.Device]*gpio.RelayDriver
	cfg     PinConfig
	climate *i2c.SHT2xDriver
}

// Open connects the raspi adaptor and initialises every driver. Relays come
// up released (outputs high).
func Open(cfg PinConfig) (*Hardware, error) {
	a := raspi.NewAdaptor()
	if err := a.Connect(); err != nil {
		return nil, fmt.Errorf("connect raspi adaptor: %w", err)
	}

	h := &Hardware{
		adaptor: a,
		relays:  make(map[model.Device]*gpio.RelayDriver),
		cfg:     cfg,
	}
	for device, pin := range map[model.Device]string{
		model.DevicePump: cfg.PumpPin,
		model.DeviceLamp: cfg.LampPin,
	} {
		relay := gpio.NewRelayDriver(a, pin)
		relay.Inverted = true
		if err := relay.Start(); err != nil {
			return nil, fmt.Errorf("start %s relay on pin %s: %w", device, pin, err)
		}
		if err := relay.Off(); err != nil {
			return nil, fmt.Errorf("release %s relay: %w", device, err)
		}
		h.relays[device] = relay
	}

	h.climate = i2c.NewSHT2xDriver(a, i2c.WithBus(cfg.I2CBus))
	if err := h.climate.Start(); err != nil {
		return nil, fmt.Errorf("start climate sensor: %w", err)
	}
	return h, nil
}

// Relay returns the relay for a device.
func (h *Hardware) Relay(d model.Device) (Relay, bool) {
	r, ok := h.relays[d]
	return r, ok
}

// Relays returns all relays keyed by device.
func (h *Hardware) Relays() map[model.Device]Relay {
	out := make(map[model.Device]Relay, len(h.relays))
	for d, r := range h.relays {
		out[d] = r
	}
	return out
}

// Level returns the tank float switch.
func (h *Hardware) Level() LevelSensor {
	return &levelPin{adaptor: h.adaptor, pin: h.cfg.LevelPin}
}

// Climate returns the temperature/humidity sensor.
func (h *Hardware) Climate() ClimateSensor {
	return &sht2x{driver: h.climate}
}

// LCDConnection opens the I2C connection for the character display.
func (h *Hardware) LCDConnection(address int) (i2c.Connection, error) {
	return h.adaptor.GetI2cConnection(address, h.cfg.I2CBus)
}

// Close releases every relay and finalises the adaptor.
func (h *Hardware) Close() error {
	for _, relay := range h.relays {
		_ = relay.Off()
	}
	return h.adaptor.Finalize()
}

// levelPin reads the float switch. The switch opens when the water drops
// below the intake, pulling the pin high: raw 1 means empty.
type levelPin struct {
	adaptor *raspi.Adaptor
	pin     string
}

func (l *levelPin) Empty() (bool, error) {
	v, err := l.adaptor.DigitalRead(l.pin)
	if err != nil {
		return false, fmt.Errorf("read level pin %s: %w", l.pin, err)
	}
	return v == 1, nil
}

type sht2x struct {
	driver *i2c.SHT2xDriver
}

func (s *sht2x) Read() (float64, float64, error) {
	temp, err := s.driver.Temperature()
	if err != nil {
		return 0, 0, fmt.Errorf("read temperature: %w", err)
	}
	humid, err := s.driver.Humidity()
	if err != nil {
		return 0, 0, fmt.Errorf("read humidity: %w", err)
	}
	return float64(temp), float64(humid), nil
}
