// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/motion"
)

// Sensor sources.
const (
	SensorMPU9250 = "mpu9250"
	SensorMock    = "mock"
	SensorSerial  = "serial"
	SensorMQTT    = "mqtt"
	SensorNone    = "none"
)

// Key sources.
const (
	KeyHook   = "hook"
	KeySerial = "serial"
	KeyNone   = "none"
)

const envPrefix = "MOTION"

// Config holds all application configuration values.
type Config struct {
	// Link
	Endpoint           string `mapstructure:"endpoint"`
	EndpointPath       string `mapstructure:"endpoint_path"`
	TickIntervalMs     int    `mapstructure:"tick_interval_ms"`
	HandshakeTimeoutMs int    `mapstructure:"handshake_timeout_ms"`
	WriteTimeoutMs     int    `mapstructure:"write_timeout_ms"`
	LatencyActions     string `mapstructure:"latency_actions"`

	// Sensors
	SensorSource           string `mapstructure:"sensor_source"`
	SensorSampleIntervalMs int    `mapstructure:"sensor_sample_interval_ms"`
	IMUSPIDevice           string `mapstructure:"imu_spi_device"`
	IMUCSPin               string `mapstructure:"imu_cs_pin"`
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange int `mapstructure:"imu_accel_range"`
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange   int    `mapstructure:"imu_gyro_range"`
	SerialPort     string `mapstructure:"serial_port"`
	SerialBaudRate int    `mapstructure:"serial_baud_rate"`

	// Hardware keys
	KeySource            string `mapstructure:"key_source"`
	KeyVolumeUpRawcode   int    `mapstructure:"key_volume_up_rawcode"`
	KeyVolumeDownRawcode int    `mapstructure:"key_volume_down_rawcode"`
	ConsoleTriggers      bool   `mapstructure:"console_triggers"`

	// MQTT
	MQTTBroker     string `mapstructure:"mqtt_broker"`
	MQTTClientID   string `mapstructure:"mqtt_client_id"`
	MQTTMirror     bool   `mapstructure:"mqtt_mirror"`
	TopicIMU       string `mapstructure:"topic_imu"`
	TopicEnvelope  string `mapstructure:"topic_envelope"`
	TopicLinkState string `mapstructure:"topic_link_state"`
	TopicActions   string `mapstructure:"topic_actions"`

	// Listener
	ListenAddr       string `mapstructure:"listen_addr"`
	ListenPath       string `mapstructure:"listen_path"`
	JournalPath      string `mapstructure:"journal_path"`
	JournalBatchSize int    `mapstructure:"journal_batch_size"`

	LogLevel string `mapstructure:"log_level"`

	// Parsed from LatencyActions during validation.
	LatencyTracked []motion.Action `mapstructure:"-"`
}

// defaults also acts as the set of known keys.
var defaults = map[string]any{
	"endpoint":             "localhost:6790",
	"endpoint_path":        "/",
	"tick_interval_ms":     16,
	"handshake_timeout_ms": 5000,
	"write_timeout_ms":     1000,
	"latency_actions":      string(motion.Deflect),

	"sensor_source":             SensorMock,
	"sensor_sample_interval_ms": 10,
	"imu_spi_device":            "/dev/spidev6.0",
	"imu_cs_pin":                "18",
	"imu_accel_range":           0,
	"imu_gyro_range":            0,
	"serial_port":               "/dev/ttyUSB0",
	"serial_baud_rate":          115200,

	"key_source":              KeyNone,
	"key_volume_up_rawcode":   115,
	"key_volume_down_rawcode": 114,
	"console_triggers":        true,

	"mqtt_broker":      "",
	"mqtt_client_id":   "motion-link",
	"mqtt_mirror":      false,
	"topic_imu":        "inertial/imu/left",
	"topic_envelope":   "motion/envelope",
	"topic_link_state": "motion/link/state",
	"topic_actions":    "motion/actions",

	"listen_addr":        ":6790",
	"listen_path":        "/",
	"journal_path":       "",
	"journal_batch_size": 50,

	"log_level": "info",
}

// Flags maps command-line flag names to config keys. Commands register
// whichever subset they need with RegisterFlags.
var Flags = map[string]string{
	"endpoint":      "endpoint",
	"tick":          "tick_interval_ms",
	"sensor-source": "sensor_source",
	"key-source":    "key_source",
	"broker":        "mqtt_broker",
	"mirror":        "mqtt_mirror",
	"listen":        "listen_addr",
	"journal":       "journal_path",
	"log-level":     "log_level",
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// RegisterFlags defines the override flags on fs. Values left unset on
// the command line do not override the file or environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("endpoint", "", "listener host:port")
	fs.Int("tick", 0, "transmit interval in milliseconds")
	fs.String("sensor-source", "", "sensor source: mpu9250, mock, serial, mqtt, none")
	fs.String("key-source", "", "hardware key source: hook, serial, none")
	fs.String("broker", "", "MQTT broker URL")
	fs.Bool("mirror", false, "mirror envelopes and link state to MQTT")
	fs.String("listen", "", "listener bind address")
	fs.String("journal", "", "SQLite journal path")
	fs.String("log-level", "", "log level: debug, info, warn, error")
}

// Load reads the KEY=VALUE file at configPath, applies MOTION_* environment
// overrides and any changed flags in fs, and validates the result. An
// empty configPath uses defaults only. fs may be nil.
func Load(configPath string, fs *pflag.FlagSet) (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("properties")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, fmt.Errorf("failed to read config file: %w", err))
		}
	}

	if err := checkKeys(v.AllKeys()); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if fs != nil {
		for name, key := range Flags {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errFactory.Wrap(errors.ErrInvalidConfig, fmt.Errorf("bind flag %s: %w", name, err))
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, fmt.Errorf("failed to unmarshal config: %w", err))
	}

	if err := cfg.validate(); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	return cfg, nil
}

func checkKeys(keys []string) error {
	var unknown []string
	for _, k := range keys {
		if _, ok := defaults[k]; !ok {
			unknown = append(unknown, strings.ToUpper(k))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown config key(s): %s", strings.Join(unknown, ", "))
	}
	return nil
}

// validate checks ranges and names, and parses LatencyActions.
func (c *Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("ENDPOINT is required")
	}
	if c.TickIntervalMs <= 0 {
		return fmt.Errorf("TICK_INTERVAL_MS must be positive, got %d", c.TickIntervalMs)
	}
	if c.SensorSampleIntervalMs <= 0 {
		return fmt.Errorf("SENSOR_SAMPLE_INTERVAL_MS must be positive, got %d", c.SensorSampleIntervalMs)
	}
	if c.IMUAccelRange < 0 || c.IMUAccelRange > 3 {
		return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", c.IMUAccelRange)
	}
	if c.IMUGyroRange < 0 || c.IMUGyroRange > 3 {
		return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", c.IMUGyroRange)
	}

	switch c.SensorSource {
	case SensorMPU9250, SensorMock, SensorSerial, SensorMQTT, SensorNone:
	default:
		return fmt.Errorf("unknown SENSOR_SOURCE %q", c.SensorSource)
	}
	switch c.KeySource {
	case KeyHook, KeySerial, KeyNone:
	default:
		return fmt.Errorf("unknown KEY_SOURCE %q", c.KeySource)
	}
	for name, code := range map[string]int{
		"KEY_VOLUME_UP_RAWCODE":   c.KeyVolumeUpRawcode,
		"KEY_VOLUME_DOWN_RAWCODE": c.KeyVolumeDownRawcode,
	} {
		if code < 0 || code > math.MaxUint16 {
			return fmt.Errorf("%s must be 0-%d, got %d", name, math.MaxUint16, code)
		}
	}
	if c.SensorSource == SensorMQTT && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required for SENSOR_SOURCE=mqtt")
	}
	if c.MQTTMirror && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required when MQTT_MIRROR is on")
	}
	if (c.SensorSource == SensorSerial || c.KeySource == KeySerial) && c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be positive, got %d", c.SerialBaudRate)
	}
	if c.JournalBatchSize <= 0 {
		return fmt.Errorf("JOURNAL_BATCH_SIZE must be positive, got %d", c.JournalBatchSize)
	}

	tracked, err := motion.ParseActions(c.LatencyActions)
	if err != nil {
		return fmt.Errorf("LATENCY_ACTIONS: %w", err)
	}
	c.LatencyTracked = tracked
	return nil
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c *Config) SensorSampleInterval() time.Duration {
	return time.Duration(c.SensorSampleIntervalMs) * time.Millisecond
}

func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMs) * time.Millisecond
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

// InitGlobal initializes the global configuration. Only the first call
// has any effect.
func InitGlobal(configPath string, fs *pflag.FlagSet) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath, fs)
	})
	return err
}

// Get returns the global configuration, nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
