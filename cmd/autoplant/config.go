package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/spf13/viper"

	"autoplant/internal/device"
	"autoplant/internal/lcd"
	"autoplant/pkg/iotmqtt"
)

// options holds the command line surface. Identity and key material come in
// as flags; board wiring and service endpoints live in configs/config.yml.
type options struct {
	ScheduleFile string
	DoMQTT       bool
	Offline      bool
	ConfigDir    string

	Bridge iotmqtt.Config
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.ScheduleFile, "schedule_file", "cron", "Cron like file containing the jobs.")
	flag.BoolVar(&o.DoMQTT, "do_mqtt", false, "Enable the MQTT connection to the cloud bridge.")
	flag.BoolVar(&o.Offline, "offline", false, "Run against fake hardware, for development off the board.")
	flag.StringVar(&o.ConfigDir, "config", "configs", "Directory holding config.yml.")

	flag.StringVar(&o.Bridge.Algorithm, "algorithm", "RS256", "Which signature algorithm to use for the JWT: RS256 or ES256.")
	flag.StringVar(&o.Bridge.CACertsFile, "ca_certs", "roots.pem", "CA roots file for the bridge TLS connection.")
	flag.StringVar(&o.Bridge.CloudRegion, "cloud_region", "us-central1", "Cloud region.")
	flag.StringVar(&o.Bridge.DeviceID, "device_id", "", "Cloud IoT device id.")
	flag.StringVar(&o.Bridge.BridgeHost, "mqtt_bridge_hostname", "mqtt.googleapis.com", "MQTT bridge hostname.")
	flag.IntVar(&o.Bridge.BridgePort, "mqtt_bridge_port", 8883, "MQTT bridge port, 8883 or 443.")
	flag.StringVar(&o.Bridge.PrivateKeyFile, "private_key_file", "", "Path to the device private key.")
	flag.StringVar(&o.Bridge.ProjectID, "project_id", "", "Cloud project name.")
	flag.StringVar(&o.Bridge.RegistryID, "registry_id", "", "Cloud IoT registry id.")
	flag.Parse()
	return o
}

// loadConfig reads configs/config.yml and environment overrides. A missing
// file is fine, every key has a workable default.
func loadConfig(dir string) error {
	viper.AddConfigPath(dir)
	viper.SetConfigName("config")
	viper.SetEnvPrefix("autoplant")
	viper.AutomaticEnv()

	pins := device.DefaultPins
	viper.SetDefault("log.level", "info")
	viper.SetDefault("pins.pump", pins.PumpPin)
	viper.SetDefault("pins.lamp", pins.LampPin)
	viper.SetDefault("pins.level", pins.LevelPin)
	viper.SetDefault("i2c.bus", pins.I2CBus)
	viper.SetDefault("lcd.enabled", true)
	viper.SetDefault("lcd.address", lcd.DefaultAddress)
	viper.SetDefault("http.port", "8090")
	viper.SetDefault("influx.url", "")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "garden")
	viper.SetDefault("influx.bucket", "autoplant")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func pinConfig() device.PinConfig {
	return device.PinConfig{
		PumpPin:  viper.GetString("pins.pump"),
		LampPin:  viper.GetString("pins.lamp"),
		LevelPin: viper.GetString("pins.level"),
		I2CBus:   viper.GetInt("i2c.bus"),
	}
}
