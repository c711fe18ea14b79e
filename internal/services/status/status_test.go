package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoplant/internal/logger"
	"autoplant/internal/model"
)

// fakeMQTT only needs IsConnectionOpen; everything else is a stub.
type fakeMQTT struct {
	connected bool
}

func (f *fakeMQTT) IsConnected() bool                                  { return f.connected }
func (f *fakeMQTT) IsConnectionOpen() bool                             { return f.connected }
func (f *fakeMQTT) Connect() mqtt.Token                                { return nil }
func (f *fakeMQTT) Disconnect(uint)                                    {}
func (f *fakeMQTT) AddRoute(string, mqtt.MessageHandler)               {}
func (f *fakeMQTT) Publish(string, byte, bool, interface{}) mqtt.Token { return nil }
func (f *fakeMQTT) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return nil
}
func (f *fakeMQTT) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return nil
}
func (f *fakeMQTT) Unsubscribe(...string) mqtt.Token { return nil }
func (f *fakeMQTT) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

type fakeWindows struct {
	windows map[model.Device]time.Time
}

func (f *fakeWindows) ActiveWindows() map[model.Device]time.Time { return f.windows }

type fakeReadings struct {
	reading model.SensorReading
	ok      bool
}

func (f *fakeReadings) LastReading() (model.SensorReading, bool) { return f.reading, f.ok }

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthzOfflineIsOK(t *testing.T) {
	s := New(logger.Get("error"), Deps{})
	rec := get(t, s.Mux(), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var st healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "ok", st.Status)
	assert.False(t, st.MQTTConnected)
	assert.False(t, st.InfluxOK)
}

func TestHealthzDownWhenBridgeDrops(t *testing.T) {
	s := New(logger.Get("error"), Deps{MQTT: &fakeMQTT{connected: false}})
	rec := get(t, s.Mux(), "/healthz")

	var st healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "down", st.Status)
}

func TestHealthzOKWhenBridgeUp(t *testing.T) {
	s := New(logger.Get("error"), Deps{MQTT: &fakeMQTT{connected: true}})
	rec := get(t, s.Mux(), "/healthz")

	var st healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "ok", st.Status)
	assert.True(t, st.MQTTConnected)
}

func TestReadyz(t *testing.T) {
	up := New(logger.Get("error"), Deps{MQTT: &fakeMQTT{connected: true}})
	assert.Equal(t, http.StatusOK, get(t, up.Mux(), "/readyz").Code)

	down := New(logger.Get("error"), Deps{MQTT: &fakeMQTT{connected: false}})
	rec := get(t, down.Mux(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestStatusSnapshot(t *testing.T) {
	until := time.Date(2026, 7, 1, 6, 30, 45, 0, time.UTC)
	s := New(logger.Get("error"), Deps{
		Windows: &fakeWindows{windows: map[model.Device]time.Time{model.DevicePump: until}},
		Readings: &fakeReadings{
			reading: model.SensorReading{Temperature: 21.5, Humidity: 48, Timestamp: until},
			ok:      true,
		},
	})

	rec := get(t, s.Mux(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Devices map[string]struct {
			Active bool   `json:"active"`
			Until  string `json:"until"`
		} `json:"devices"`
		LastReading *model.SensorReading `json:"last_reading"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	assert.True(t, out.Devices["pump"].Active)
	assert.Equal(t, "2026-07-01T06:30:45Z", out.Devices["pump"].Until)
	assert.False(t, out.Devices["lamp"].Active)
	require.NotNil(t, out.LastReading)
	assert.Equal(t, 21.5, out.LastReading.Temperature)
}

func TestStatusWithoutReading(t *testing.T) {
	s := New(logger.Get("error"), Deps{Readings: &fakeReadings{ok: false}})
	rec := get(t, s.Mux(), "/status")

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	_, has := out["last_reading"]
	assert.False(t, has)
}

func TestReadingsWithoutInflux(t *testing.T) {
	s := New(logger.Get("error"), Deps{})
	rec := get(t, s.Mux(), "/readings/latest")

	assert.Equal(t, "none", rec.Header().Get("X-Data-Source"))
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestReadingsServedFromInflux(t *testing.T) {
	s := New(logger.Get("error"), Deps{})
	s.readings = newReadingStore(logger.Get("error"), nil, "garden")
	s.readings.query = func(_ context.Context, minutes, limit int) ([]Reading, error) {
		assert.Equal(t, 60, minutes)
		assert.Equal(t, 5, limit)
		return []Reading{{Temperature: 20, Humidity: 40, Time: "2026-07-01T06:00:00Z"}}, nil
	}

	rec := get(t, s.Mux(), "/readings/latest?limit=5&minutes=60")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "influx", rec.Header().Get("X-Data-Source"))

	var list []Reading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 20.0, list[0].Temperature)
}

func TestReadingsFallBackToCache(t *testing.T) {
	s := New(logger.Get("error"), Deps{})
	s.readings = newReadingStore(logger.Get("error"), nil, "garden")

	good := []Reading{{Temperature: 19, Time: "2026-07-01T05:00:00Z"}}
	s.readings.query = func(context.Context, int, int) ([]Reading, error) { return good, nil }
	get(t, s.Mux(), "/readings/latest")

	s.readings.query = func(context.Context, int, int) ([]Reading, error) {
		return nil, errors.New("connection refused")
	}
	rec := get(t, s.Mux(), "/readings/latest")

	assert.Equal(t, "cache", rec.Header().Get("X-Data-Source"))
	var list []Reading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 19.0, list[0].Temperature)
}

func TestReadingQueryClamping(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readings/latest?limit=9999&minutes=0", nil)
	p := parseReadingQuery(req)
	assert.Equal(t, 500, p.Limit)
	assert.Equal(t, 1, p.Minutes)

	req = httptest.NewRequest(http.MethodGet, "/readings/latest?limit=junk", nil)
	assert.Equal(t, 20, parseReadingQuery(req).Limit)
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(logger.Get("error"), Deps{})
	rec := get(t, s.Mux(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
