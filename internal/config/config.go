// Package config loads daemon configuration from an optional YAML file and
// SCALE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SCALE_MQTT_BROKER.
const EnvPrefix = "SCALE"

// Config is the complete daemon configuration.
type Config struct {
	Button      ButtonConfig      `mapstructure:"button"`
	Sensor      SensorConfig      `mapstructure:"sensor"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Loop        LoopConfig        `mapstructure:"loop"`
	Store       StoreConfig       `mapstructure:"store"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Log         LogConfig         `mapstructure:"log"`
}

// ButtonConfig describes the push button input.
type ButtonConfig struct {
	Chip      string        `mapstructure:"chip"`
	Pin       int           `mapstructure:"pin"`
	Inverted  bool          `mapstructure:"inverted"` // active-low, pulled up
	Poll      time.Duration `mapstructure:"poll"`
	LongPress time.Duration `mapstructure:"long_press"`
}

// SensorConfig describes the HX711 wiring.
type SensorConfig struct {
	Chip     string `mapstructure:"chip"`
	DataPin  int    `mapstructure:"data_pin"`
	ClockPin int    `mapstructure:"clock_pin"`
	Gain     int    `mapstructure:"gain"` // 128, 64 (channel A) or 32 (channel B)
}

// CalibrationConfig holds the tare and calibration protocol constants.
type CalibrationConfig struct {
	ReferenceGrams float32       `mapstructure:"reference_grams"`
	TareSamples    int           `mapstructure:"tare_samples"`
	Samples        int           `mapstructure:"samples"`
	SampleDelay    time.Duration `mapstructure:"sample_delay"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// LoopConfig controls the main control loop.
type LoopConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// StoreConfig locates the persistent key-value store.
type StoreConfig struct {
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// MQTTConfig configures telemetry publishing.
type MQTTConfig struct {
	Broker     string        `mapstructure:"broker"`
	ClientID   string        `mapstructure:"client_id"`
	Heartbeat  time.Duration `mapstructure:"heartbeat"` // 0 disables
	BufferSize int           `mapstructure:"buffer_size"`
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`      // empty disables
	WSBroker string `mapstructure:"ws_broker"` // "=broker", "off" or a URL
}

// LogConfig configures logging output.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // console or json
	File       string `mapstructure:"file"`   // empty disables file output
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration. An empty path searches for scale.yaml in
// /etc/load-scale and the working directory; a missing file is not an error
// in that case. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scale")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/load-scale")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("button.chip", "gpiochip0")
	v.SetDefault("button.pin", 17)
	v.SetDefault("button.inverted", true)
	v.SetDefault("button.poll", "10ms")
	v.SetDefault("button.long_press", "3s")

	v.SetDefault("sensor.chip", "gpiochip0")
	v.SetDefault("sensor.data_pin", 16)
	v.SetDefault("sensor.clock_pin", 4)
	v.SetDefault("sensor.gain", 128)

	v.SetDefault("calibration.reference_grams", 2000.0)
	v.SetDefault("calibration.tare_samples", 16)
	v.SetDefault("calibration.samples", 16)
	v.SetDefault("calibration.sample_delay", "5ms")
	v.SetDefault("calibration.retry_delay", "10ms")

	v.SetDefault("loop.interval", "500ms")

	v.SetDefault("store.path", "/var/lib/load-scale/scale.db")
	v.SetDefault("store.namespace", "scale_storage")

	v.SetDefault("mqtt.broker", "tcp://192.168.1.200:1883")
	v.SetDefault("mqtt.client_id", "load-scale")
	v.SetDefault("mqtt.heartbeat", "15m")
	v.SetDefault("mqtt.buffer_size", 100)

	v.SetDefault("http.addr", ":80")
	v.SetDefault("http.ws_broker", "=broker")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Validate rejects values the control loop cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Button.Poll <= 0:
		return fmt.Errorf("config: button.poll must be positive, got %v", c.Button.Poll)
	case c.Button.LongPress <= 0:
		return fmt.Errorf("config: button.long_press must be positive, got %v", c.Button.LongPress)
	case c.Calibration.ReferenceGrams <= 0:
		return fmt.Errorf("config: calibration.reference_grams must be positive, got %v", c.Calibration.ReferenceGrams)
	case c.Calibration.TareSamples <= 0:
		return fmt.Errorf("config: calibration.tare_samples must be positive, got %d", c.Calibration.TareSamples)
	case c.Calibration.Samples <= 0:
		return fmt.Errorf("config: calibration.samples must be positive, got %d", c.Calibration.Samples)
	case c.Loop.Interval <= 0:
		return fmt.Errorf("config: loop.interval must be positive, got %v", c.Loop.Interval)
	case c.MQTT.Heartbeat < 0:
		return fmt.Errorf("config: mqtt.heartbeat must not be negative, got %v", c.MQTT.Heartbeat)
	case c.MQTT.BufferSize <= 0:
		return fmt.Errorf("config: mqtt.buffer_size must be positive, got %d", c.MQTT.BufferSize)
	}
	switch c.Sensor.Gain {
	case 128, 64, 32:
	default:
		return fmt.Errorf("config: sensor.gain must be 128, 64 or 32, got %d", c.Sensor.Gain)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
