// Package telemetry samples the garden sensors, keeps the display current
// and fans readings out to the cloud topic and InfluxDB.
//
// A single raw sensor read is noisy, so each cycle takes several samples a
// second apart, throws away the extremes and averages the rest; the float
// switch is majority-voted the same way.
package telemetry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"autoplant/internal/device"
	"autoplant/internal/logger"
	"autoplant/internal/model"
	"autoplant/pkg/iotmqtt"
)

const (
	DefaultInterval  = time.Minute
	DefaultSampleGap = time.Second
	DefaultSamples   = 5
)

// Display is the subset of the LCD the service needs; nil disables it.
type Display interface {
	Clear() error
	Message(text string) error
}

type Service struct {
	log     *logger.Logger
	climate device.ClimateSensor
	level   device.LevelSensor

	display   Display            // optional
	publisher iotmqtt.IPublisher // optional
	writer    *Writer            // optional

	// Interval is the cycle period, SampleGap the spacing between raw
	// samples, Samples the number taken per cycle. Tests shorten them.
	Interval  time.Duration
	SampleGap time.Duration
	Samples   int

	mu   sync.RWMutex
	last *model.SensorReading
}

func New(log *logger.Logger, climate device.ClimateSensor, level device.LevelSensor) *Service {
	return &Service{
		log:       log,
		climate:   climate,
		level:     level,
		Interval:  DefaultInterval,
		SampleGap: DefaultSampleGap,
		Samples:   DefaultSamples,
	}
}

// WithDisplay attaches the LCD.
func (s *Service) WithDisplay(d Display) *Service {
	s.display = d
	return s
}

// WithPublisher attaches the cloud event publisher.
func (s *Service) WithPublisher(p iotmqtt.IPublisher) *Service {
	s.publisher = p
	return s
}

// WithWriter attaches the InfluxDB writer.
func (s *Service) WithWriter(w *Writer) *Service {
	s.writer = w
	return s
}

// Run measures immediately and then once per interval until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			if s.writer != nil {
				s.writer.Flush()
			}
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// LastReading returns the most recent measurement, if any.
func (s *Service) LastReading() (model.SensorReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.SensorReading{}, false
	}
	return *s.last, true
}

func (s *Service) cycle(ctx context.Context) {
	reading, err := s.measure(ctx)
	if err != nil {
		s.log.Errorw("measurement cycle failed", "err", err)
		return
	}

	s.mu.Lock()
	s.last = &reading
	s.mu.Unlock()

	s.log.Infow("reading",
		"temp", fmt.Sprintf("%.1f", reading.Temperature),
		"humid", fmt.Sprintf("%.1f", reading.Humidity),
		"level", reading.LevelString())

	s.show(reading)
	s.publish(reading)
	if s.writer != nil {
		s.writer.WriteReading(reading)
	}
}

// measure runs one sampling cycle.
func (s *Service) measure(ctx context.Context) (model.SensorReading, error) {
	var (
		temps, humids []float64
		emptyVotes    int
		levelReads    int
	)
	for i := 0; i < s.Samples; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return model.SensorReading{}, ctx.Err()
			case <-time.After(s.SampleGap):
			}
		}
		t, h, err := s.climate.Read()
		if err != nil {
			// single flaky sample is fine, the average absorbs it
			s.log.Debugw("climate sample failed", "err", err)
		} else {
			temps = append(temps, t)
			humids = append(humids, h)
		}
		if s.level != nil {
			empty, err := s.level.Empty()
			if err != nil {
				s.log.Debugw("level sample failed", "err", err)
			} else {
				levelReads++
				if empty {
					emptyVotes++
				}
			}
		}
	}

	if len(temps) < 3 {
		return model.SensorReading{}, fmt.Errorf("only %d of %d climate samples succeeded", len(temps), s.Samples)
	}
	return model.SensorReading{
		Temperature: trimmedMean(temps),
		Humidity:    trimmedMean(humids),
		TankEmpty:   levelReads > 0 && emptyVotes*2 > levelReads,
		Timestamp:   time.Now().UTC(),
	}, nil
}

func (s *Service) show(r model.SensorReading) {
	if s.display == nil {
		return
	}
	if err := s.display.Clear(); err != nil {
		s.log.Warnw("display clear failed", "err", err)
		return
	}
	text := fmt.Sprintf("Temp: %.1f C\nHumidity: %.1f %%", r.Temperature, r.Humidity)
	if r.TankEmpty {
		text = "tank empty"
	}
	if err := s.display.Message(text); err != nil {
		s.log.Warnw("display write failed", "err", err)
	}
}

func (s *Service) publish(r model.SensorReading) {
	if s.publisher == nil {
		return
	}
	events := []struct {
		key   string
		value any
	}{
		{"temp", r.Temperature},
		{"humid", r.Humidity},
		{"level", r.LevelString()},
	}
	for _, e := range events {
		if err := s.publisher.PublishEvent(e.key, e.value); err != nil {
			s.log.Warnw("publish failed", "key", e.key, "err", err)
		}
	}
}

// trimmedMean drops one minimum and one maximum and averages the rest;
// with fewer than three values it averages everything.
func trimmedMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) >= 3 {
		sorted = sorted[1 : len(sorted)-1]
	}
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}
