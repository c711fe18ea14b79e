// Package status exposes the daemon's HTTP surface: health probes, the
// current device/reading snapshot, recent readings out of InfluxDB and the
// Prometheus scrape endpoint.
package status

import (
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autoplant/internal/logger"
	"autoplant/internal/model"
	"autoplant/internal/services/telemetry"
)

// ReadingSource is the live measurement snapshot, satisfied by the
// telemetry service.
type ReadingSource interface {
	LastReading() (model.SensorReading, bool)
}

// WindowSource reports which devices are currently on, satisfied by the
// actuator.
type WindowSource interface {
	ActiveWindows() map[model.Device]time.Time
}

// Deps are the wired-up dependencies; MQTT, Influx and Writer are nil when
// the matching feature is switched off.
type Deps struct {
	MQTT     mqtt.Client
	Influx   influxdb2.Client
	Writer   *telemetry.Writer
	Readings ReadingSource
	Windows  WindowSource

	InfluxOrg    string
	InfluxBucket string
}

type Service struct {
	log  *logger.Logger
	deps Deps

	readings *readingStore
}

func New(log *logger.Logger, deps Deps) *Service {
	s := &Service{log: log, deps: deps}
	if deps.Influx != nil {
		s.readings = newReadingStore(log, deps.Influx.QueryAPI(deps.InfluxOrg), deps.InfluxBucket)
	}
	return s
}

// Mux builds the HTTP mux for the daemon's management port.
func (s *Service) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/readings/latest", s.handleReadings)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type healthStatus struct {
	Status          string  `json:"status"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	InfluxOK        bool    `json:"influx_ok"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec"`
}

// health scores only the dependencies that are actually configured, so an
// offline box without cloud or database still reports ok.
func (s *Service) health() healthStatus {
	st := healthStatus{
		MQTTConnected:   s.deps.MQTT != nil && s.deps.MQTT.IsConnectionOpen(),
		InfluxOK:        s.deps.Influx != nil,
		LastWriteErrorS: s.deps.Writer.LastErrorAge().Seconds(),
	}

	configured, healthy := 0, 0
	if s.deps.MQTT != nil {
		configured++
		if st.MQTTConnected {
			healthy++
		}
	}
	if s.deps.Influx != nil {
		configured++
		if s.deps.Writer.LastErrorAge() > 30*time.Second {
			healthy++
		}
	}

	switch {
	case healthy == configured:
		st.Status = "ok"
	case healthy > 0:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.health())
}

func (s *Service) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	ready := s.health().Status == "ok"
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}

// GET /status: which relays are on, until when, and the latest reading.
func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type deviceStatus struct {
		Active bool   `json:"active"`
		Until  string `json:"until,omitempty"`
	}
	out := struct {
		Devices     map[string]deviceStatus `json:"devices"`
		LastReading *model.SensorReading    `json:"last_reading,omitempty"`
	}{Devices: map[string]deviceStatus{}}

	var windows map[model.Device]time.Time
	if s.deps.Windows != nil {
		windows = s.deps.Windows.ActiveWindows()
	}
	for _, d := range model.Devices {
		ds := deviceStatus{}
		if until, ok := windows[d]; ok {
			ds.Active = true
			ds.Until = until.UTC().Format(time.RFC3339)
		}
		out.Devices[string(d)] = ds
	}

	if s.deps.Readings != nil {
		if r, ok := s.deps.Readings.LastReading(); ok {
			out.LastReading = &r
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
