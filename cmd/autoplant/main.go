// The autoplant daemon runs a small indoor garden: it waters and lights on
// a cron-like schedule, keeps an eye on the water tank, shows readings on an
// LCD and optionally bridges telemetry and remote commands over MQTT.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/spf13/viper"

	"autoplant/internal/device"
	"autoplant/internal/lcd"
	"autoplant/internal/logger"
	"autoplant/internal/model"
	"autoplant/internal/services/dispatcher"
	"autoplant/internal/services/status"
	"autoplant/internal/services/telemetry"
	"autoplant/pkg/iotmqtt"
)

func main() {
	opts := parseFlags()
	if err := loadConfig(opts.ConfigDir); err != nil {
		logger.Get("info").Fatalw("config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// board
	var (
		relays  map[model.Device]device.Relay
		level   device.LevelSensor
		climate device.ClimateSensor
		display telemetry.Display
	)
	if opts.Offline {
		log.Infow("running offline with fake hardware")
		fake := device.NewFakeHardware()
		relays, level, climate = fake.Relays(), fake.Level(), fake.Climate()
	} else {
		hw, err := device.Open(pinConfig())
		if err != nil {
			log.Fatalw("open hardware", "err", err)
		}
		defer func() {
			if cerr := hw.Close(); cerr != nil {
				log.Errorw("close hardware", "err", cerr)
			}
		}()
		relays, level, climate = hw.Relays(), hw.Level(), hw.Climate()

		if viper.GetBool("lcd.enabled") {
			conn, err := hw.LCDConnection(viper.GetInt("lcd.address"))
			if err != nil {
				log.Warnw("lcd unavailable", "err", err)
			} else if d, err := lcd.New(conn, 16, 2); err != nil {
				log.Warnw("lcd init failed", "err", err)
			} else {
				display = d
			}
		}
	}

	actuator := device.NewActuator(log, relays, level)

	// cloud bridge
	var (
		bridge     *iotmqtt.Conn
		mqttClient mqtt.Client
		publisher  *iotmqtt.Publisher
	)
	if opts.DoMQTT {
		conn, err := iotmqtt.Dial(ctx, opts.Bridge, log)
		if err != nil {
			log.Fatalw("bridge", "err", err)
		}
		bridge = conn
		mqttClient = conn.Client()
		publisher = iotmqtt.NewPublisher(conn)

		actuator.OnStateChange = func(ev model.StateChangeEvent) {
			if err := publisher.PublishEvent("state", ev); err != nil {
				log.Warnw("state publish failed", "err", err)
			}
		}
		if err := conn.Subscribe(opts.Bridge.ConfigTopic(), 1, func(_ mqtt.Client, m mqtt.Message) {
			log.Infow("config message", "payload", string(m.Payload()))
		}); err != nil {
			log.Warnw("config subscribe failed", "err", err)
		}
	}

	// datastore
	var (
		influx influxdb2.Client
		writer *telemetry.Writer
	)
	if url := viper.GetString("influx.url"); url != "" {
		influx = influxdb2.NewClient(url, viper.GetString("influx.token"))
		defer influx.Close()
		writeAPI := influx.WriteAPI(viper.GetString("influx.org"), viper.GetString("influx.bucket"))
		writer = telemetry.NewWriter(writeAPI, log)
	}

	// services
	disp := dispatcher.New(log, actuator, opts.ScheduleFile)
	telem := telemetry.New(log, climate, level)
	if display != nil {
		telem = telem.WithDisplay(display)
	}
	if publisher != nil {
		telem = telem.WithPublisher(publisher)
	}
	if writer != nil {
		telem = telem.WithWriter(writer)
	}

	st := status.New(log, status.Deps{
		MQTT:         mqttClient,
		Influx:       influx,
		Writer:       writer,
		Readings:     telem,
		Windows:      actuator,
		InfluxOrg:    viper.GetString("influx.org"),
		InfluxBucket: viper.GetString("influx.bucket"),
	})
	srv := &http.Server{Addr: ":" + viper.GetString("http.port"), Handler: st.Mux()}
	go func() {
		log.Infow("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("http server", "err", err)
		}
	}()

	var wg sync.WaitGroup
	fatal := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := disp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case fatal <- err:
			default:
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := telem.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("telemetry stopped", "err", err)
		}
	}()

	if bridge != nil {
		consumer := iotmqtt.NewConsumer(bridge, opts.Bridge.CommandsTopic(), 0, disp.HandleCommand)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("command consumer stopped", "err", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Infow("shutting down")
	case err := <-fatal:
		log.Errorw("dispatcher failed", "err", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http shutdown", "err", err)
	}
	wg.Wait()

	if writer != nil {
		writer.Flush()
	}
	if display != nil {
		if d, ok := display.(*lcd.Display); ok {
			_ = d.Clear()
			_ = d.SetBacklight(false)
		}
	}

	log.Infow("bye")
}
