package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_link/internal/config"
	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/motion"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6790", cfg.Endpoint)
	assert.Equal(t, 16*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, config.SensorMock, cfg.SensorSource)
	assert.Equal(t, config.KeyNone, cfg.KeySource)
	assert.Equal(t, []motion.Action{motion.Deflect}, cfg.LatencyTracked)
	assert.Equal(t, 5*time.Second, cfg.HandshakeTimeout())
	assert.Equal(t, time.Second, cfg.WriteTimeout())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
# link
ENDPOINT=192.168.1.20:6790
TICK_INTERVAL_MS=20
LATENCY_ACTIONS=Deflect, camera lock

SENSOR_SOURCE=serial
SERIAL_PORT=/dev/ttyACM0
IMU_ACCEL_RANGE=2
CONSOLE_TRIGGERS=false
`)
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.20:6790", cfg.Endpoint)
	assert.Equal(t, 20*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, config.SensorSerial, cfg.SensorSource)
	assert.Equal(t, "/dev/ttyACM0", cfg.SerialPort)
	assert.Equal(t, 2, cfg.IMUAccelRange)
	assert.False(t, cfg.ConsoleTriggers)
	assert.Equal(t, []motion.Action{motion.Deflect, motion.CameraLock}, cfg.LatencyTracked)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "ENDPOINT=host:1\nGPS_SERIAL_PORT=/dev/ttyS0\n")
	_, err := config.Load(path, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "GPS_SERIAL_PORT")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.txt"), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadValidation(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		want string
	}{
		{"empty endpoint", "ENDPOINT=\n", "ENDPOINT"},
		{"zero tick", "TICK_INTERVAL_MS=0\n", "TICK_INTERVAL_MS"},
		{"negative tick", "TICK_INTERVAL_MS=-5\n", "TICK_INTERVAL_MS"},
		{"accel range", "IMU_ACCEL_RANGE=4\n", "IMU_ACCEL_RANGE"},
		{"gyro range", "IMU_GYRO_RANGE=-1\n", "IMU_GYRO_RANGE"},
		{"sensor source", "SENSOR_SOURCE=lidar\n", "SENSOR_SOURCE"},
		{"key source", "KEY_SOURCE=midi\n", "KEY_SOURCE"},
		{"latency action", "LATENCY_ACTIONS=Deflect,Jump\n", "LATENCY_ACTIONS"},
		{"mirror without broker", "MQTT_MIRROR=true\n", "MQTT_BROKER"},
		{"mqtt source without broker", "SENSOR_SOURCE=mqtt\n", "MQTT_BROKER"},
		{"volume up rawcode too large", "KEY_VOLUME_UP_RAWCODE=65560\n", "KEY_VOLUME_UP_RAWCODE"},
		{"volume down rawcode negative", "KEY_VOLUME_DOWN_RAWCODE=-1\n", "KEY_VOLUME_DOWN_RAWCODE"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body), nil)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadAcceptsRawcodeBounds(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "KEY_VOLUME_UP_RAWCODE=65535\nKEY_VOLUME_DOWN_RAWCODE=0\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 65535, cfg.KeyVolumeUpRawcode)
	assert.Equal(t, 0, cfg.KeyVolumeDownRawcode)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "ENDPOINT=file-host:1\n")
	t.Setenv("MOTION_ENDPOINT", "env-host:2")

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "env-host:2", cfg.Endpoint)
}

func TestFlagsOverrideEverything(t *testing.T) {
	path := writeConfig(t, "ENDPOINT=file-host:1\nTICK_INTERVAL_MS=20\n")
	t.Setenv("MOTION_ENDPOINT", "env-host:2")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--endpoint", "flag-host:3"}))

	cfg, err := config.Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "flag-host:3", cfg.Endpoint)
	// unset flags leave the file value alone
	assert.Equal(t, 20, cfg.TickIntervalMs)
}
