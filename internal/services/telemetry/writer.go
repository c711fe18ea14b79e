package telemetry

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"autoplant/internal/logger"
	"autoplant/internal/model"
)

// Measurement is the InfluxDB measurement readings land in.
const Measurement = "garden"

// Writer buffers readings into InfluxDB and tracks the asynchronous write
// errors the non-blocking API reports, so the health endpoint can tell
// whether the datastore is keeping up.
type Writer struct {
	api api.WriteAPI
	log *logger.Logger

	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

func NewWriter(writeAPI api.WriteAPI, log *logger.Logger) *Writer {
	w := &Writer{
		api: writeAPI,
		log: log,
		// start "clean": no recent error
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range writeAPI.Errors() {
			if err == nil {
				continue
			}
			w.mu.Lock()
			w.lastErr = time.Now()
			w.mu.Unlock()
			log.Errorw("influx write failed", "err", err)
		}
	}()
	return w
}

// WriteReading queues one reading; delivery is asynchronous.
func (w *Writer) WriteReading(r model.SensorReading) {
	p := influxdb2.NewPoint(Measurement,
		nil,
		map[string]any{
			"temperature": r.Temperature,
			"humidity":    r.Humidity,
			"tank_empty":  r.TankEmpty,
		},
		r.Timestamp)
	w.api.WritePoint(p)

	w.mu.Lock()
	w.written++
	w.mu.Unlock()
}

// LastErrorAge returns how long ago the last write error happened.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 24 * time.Hour
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return time.Since(w.lastErr)
}

// Written returns the number of queued readings.
func (w *Writer) Written() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.written
}

// Flush forces the buffered points out, used on shutdown.
func (w *Writer) Flush() {
	w.api.Flush()
}
