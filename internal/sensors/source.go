// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors feeds gyroscope and accelerometer samples into the
// shared sensor cache.
package sensors

import (
	"context"
	"time"

	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/imu"
	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/motion"
	"github.com/relabs-tech/motion_link/internal/state"
)

// Source is anything that can be polled for a combined reading.
type Source interface {
	Next() (motion.Reading, error)
}

// rawSource converts counts from an imu.IMURawSource with fixed ranges.
type rawSource struct {
	raw        imu.IMURawSource
	accelRange byte
	gyroRange  byte
}

// FromRaw adapts a raw count source into a Source.
func FromRaw(raw imu.IMURawSource, accelRange, gyroRange byte) Source {
	return &rawSource{raw: raw, accelRange: accelRange, gyroRange: gyroRange}
}

func (s *rawSource) Next() (motion.Reading, error) {
	r, err := s.raw.NextRaw()
	if err != nil {
		return motion.Reading{}, err
	}
	return r.Reading(s.accelRange, s.gyroRange), nil
}

// Pump polls src every interval and writes each reading to cache until
// ctx is done. Read errors are logged and the sample is skipped.
func Pump(ctx context.Context, src Source, cache *state.SensorCache, interval time.Duration) error {
	log := logger.Component("sensors")
	log.Info().Dur("interval", interval).Msg("starting sensor pump")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var failures uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reading, err := src.Next()
			if err != nil {
				failures++
				// one in a hundred so a dead sensor does not flood the log
				if failures%100 == 1 {
					logger.ErrorWithCode(errors.New().Wrap(errors.ErrSensorRead, err)).
						Str("component", "sensors").
						Uint64("failures", failures).
						Msg("sensor read error")
				}
				continue
			}
			cache.WriteReading(reading)
		}
	}
}
