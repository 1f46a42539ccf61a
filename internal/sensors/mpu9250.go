// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_link/internal/imu"
	"github.com/relabs-tech/motion_link/internal/logger"
)

var accelRangeG = []int{2, 4, 8, 16}
var gyroRangeDPS = []int{250, 500, 1000, 2000}

type mpuSource struct {
	imu *mpu9250.MPU9250
}

// NewMPU9250 initializes an MPU9250 over SPI with the given full scale
// ranges (0-3 each) and returns it as a raw count source.
func NewMPU9250(spiDev, csPin string, accelRange, gyroRange byte) (imu.IMURawSource, error) {
	log := logger.Component("sensors")

	if accelRange > 3 || gyroRange > 3 {
		return nil, fmt.Errorf("IMU: range out of bounds (accel %d, gyro %d)", accelRange, gyroRange)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := dev.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Info().Uint8("range", accelRange).Int("g", accelRangeG[accelRange]).Msg("accelerometer range set")

	if err := dev.SetGyroRange(gyroRange); err != nil {
		return nil, fmt.Errorf("IMU: set gyro range: %w", err)
	}
	log.Info().Uint8("range", gyroRange).Int("dps", gyroRangeDPS[gyroRange]).Msg("gyroscope range set")

	if err := dev.Calibrate(); err != nil {
		log.Warn().Err(err).Msg("IMU calibration failed, continuing uncalibrated")
	} else {
		log.Info().Str("device", spiDev).Msg("IMU calibration complete")
	}

	return &mpuSource{imu: dev}, nil
}

// NextRaw reads accelerometer and gyroscope counts.
func (s *mpuSource) NextRaw() (imu.IMURaw, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU gyro Z: %w", err)
	}

	return imu.IMURaw{
		Source: "mpu9250",
		Ax:     ax,
		Ay:     ay,
		Az:     az,
		Gx:     gx,
		Gy:     gy,
		Gz:     gz,
	}, nil
}
