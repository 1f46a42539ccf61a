package imu

import (
	"math"

	"github.com/relabs-tech/motion_link/internal/motion"
)

// StandardGravity in m/s².
const StandardGravity = 9.80665

// IMURaw represents a single raw accel+gyro sample in sensor counts, in
// the JSON shape inertial producers publish. Magnetometer fields in that
// payload are ignored.
type IMURaw struct {
	Source string `json:"source"`

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
var accelLSBPerG = [4]float64{16384, 8192, 4096, 2048}

// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
var gyroLSBPerDPS = [4]float64{131, 65.5, 32.8, 16.4}

// Accel converts the raw accelerometer counts to m/s² for the given full
// scale range. Out of range values are treated as range 0.
func (r IMURaw) Accel(rng byte) motion.Sample {
	scale := accelLSBPerG[clampRange(rng)]
	return motion.Sample{
		X: float64(r.Ax) / scale * StandardGravity,
		Y: float64(r.Ay) / scale * StandardGravity,
		Z: float64(r.Az) / scale * StandardGravity,
	}
}

// Gyro converts the raw gyroscope counts to rad/s for the given full
// scale range.
func (r IMURaw) Gyro(rng byte) motion.Sample {
	scale := gyroLSBPerDPS[clampRange(rng)]
	toRad := math.Pi / 180
	return motion.Sample{
		X: float64(r.Gx) / scale * toRad,
		Y: float64(r.Gy) / scale * toRad,
		Z: float64(r.Gz) / scale * toRad,
	}
}

// Reading converts both channels.
func (r IMURaw) Reading(accelRange, gyroRange byte) motion.Reading {
	return motion.Reading{
		Gyroscope:     r.Gyro(gyroRange),
		Accelerometer: r.Accel(accelRange),
	}
}

func clampRange(rng byte) byte {
	if rng > 3 {
		return 0
	}
	return rng
}

type IMURawSource interface {
	NextRaw() (IMURaw, error)
}
