package imu_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_link/internal/imu"
)

func TestAccelConversion(t *testing.T) {
	for _, tc := range []struct {
		rng    byte
		counts int16
	}{
		{0, 16384},
		{1, 8192},
		{2, 4096},
		{3, 2048},
	} {
		r := imu.IMURaw{Az: tc.counts, Ax: -tc.counts}
		s := r.Accel(tc.rng)
		assert.InDelta(t, imu.StandardGravity, s.Z, 1e-9, "range %d", tc.rng)
		assert.InDelta(t, -imu.StandardGravity, s.X, 1e-9, "range %d", tc.rng)
		assert.Zero(t, s.Y)
	}
}

func TestGyroConversion(t *testing.T) {
	// 180°/s at ±250°/s full scale
	r := imu.IMURaw{Gx: 131 * 180}
	s := r.Gyro(0)
	assert.InDelta(t, math.Pi, s.X, 1e-9)

	r = imu.IMURaw{Gy: 164}
	s = r.Gyro(3)
	assert.InDelta(t, 10*math.Pi/180, s.Y, 1e-9)
}

func TestOutOfRangeFallsBackToDefaultScale(t *testing.T) {
	r := imu.IMURaw{Az: 16384}
	assert.InDelta(t, imu.StandardGravity, r.Accel(9).Z, 1e-9)
}

func TestDecodeProducerPayload(t *testing.T) {
	payload := `{"source":"left","ax":0,"ay":0,"az":16384,"gx":131,"gy":0,"gz":0,"mx":12,"my":-4,"mz":300}`
	var r imu.IMURaw
	require.NoError(t, json.Unmarshal([]byte(payload), &r))

	reading := r.Reading(0, 0)
	assert.InDelta(t, imu.StandardGravity, reading.Accelerometer.Z, 1e-9)
	assert.InDelta(t, math.Pi/180, reading.Gyroscope.X, 1e-9)
	assert.Equal(t, "left", r.Source)
}
