package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sony/gobreaker"

	"autoplant/internal/logger"
	"autoplant/internal/services/telemetry"
)

// Reading is one stored measurement as served to clients.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	TankEmpty   bool    `json:"tank_empty"`
	Time        string  `json:"time"` // RFC3339
}

type readingQuery struct {
	Minutes int
	Limit   int
}

func parseReadingQuery(r *http.Request) readingQuery {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return readingQuery{
		Minutes: get("minutes", 24*60, 1, 7*24*60),
		Limit:   get("limit", 20, 1, 500),
	}
}

func buildFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, telemetry.Measurement, limit)
}

// readingStore queries InfluxDB behind a circuit breaker and keeps the last
// successful result, so the endpoint degrades to stale data instead of
// hammering a database that is down.
type readingStore struct {
	log    *logger.Logger
	bucket string
	query  func(ctx context.Context, minutes, limit int) ([]Reading, error)
	cb     *gobreaker.CircuitBreaker

	mu       sync.Mutex
	lastGood []Reading
}

func newReadingStore(log *logger.Logger, queryAPI api.QueryAPI, bucket string) *readingStore {
	rs := &readingStore{log: log, bucket: bucket}
	rs.query = func(ctx context.Context, minutes, limit int) ([]Reading, error) {
		return queryInflux(ctx, queryAPI, bucket, minutes, limit)
	}
	rs.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "influx-query",
		Interval: time.Minute,
		Timeout:  10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	return rs
}

// latest returns recent readings and the source they came from, "influx" or
// "cache".
func (rs *readingStore) latest(ctx context.Context, p readingQuery) ([]Reading, string) {
	res, err := rs.cb.Execute(func() (any, error) {
		return rs.query(ctx, p.Minutes, p.Limit)
	})
	if err != nil {
		rs.log.Warnw("reading query failed, serving cache", "err", err)
		rs.mu.Lock()
		defer rs.mu.Unlock()
		return rs.lastGood, "cache"
	}

	list := res.([]Reading)
	rs.mu.Lock()
	rs.lastGood = list
	rs.mu.Unlock()
	return list, "influx"
}

func queryInflux(ctx context.Context, queryAPI api.QueryAPI, bucket string, minutes, limit int) ([]Reading, error) {
	res, err := queryAPI.Query(ctx, buildFlux(bucket, minutes, limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Close() }()

	out := make([]Reading, 0, limit)
	for res.Next() {
		rec := res.Record()
		r := Reading{Time: rec.Time().UTC().Format(time.RFC3339)}
		if v, ok := rec.ValueByKey("temperature").(float64); ok {
			r.Temperature = v
		}
		if v, ok := rec.ValueByKey("humidity").(float64); ok {
			r.Humidity = v
		}
		if v, ok := rec.ValueByKey("tank_empty").(bool); ok {
			r.TankEmpty = v
		}
		out = append(out, r)
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	return out, nil
}

// GET /readings/latest?limit=20[&minutes=1440]
func (s *Service) handleReadings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.readings == nil {
		w.Header().Set("X-Data-Source", "none")
		_, _ = w.Write([]byte("[]"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, used := s.readings.latest(ctx, parseReadingQuery(r))
	if list == nil {
		list = []Reading{}
	}
	w.Header().Set("X-Data-Source", used)
	_ = json.NewEncoder(w).Encode(list)
}
