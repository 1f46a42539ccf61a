// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package state holds the latest-value cells shared between producers
// (sensor drivers, key bridge, console triggers) and the transmit loop.
package state

import (
	"sync"

	"github.com/relabs-tech/motion_link/internal/motion"
)

// SensorCache keeps the most recent sample for each channel.
// Writes overwrite; nothing is queued.
type SensorCache struct {
	mu            sync.RWMutex
	gyroscope     motion.Sample
	accelerometer motion.Sample
}

// Write replaces the stored sample for ch. Unknown channels are ignored.
func (c *SensorCache) Write(ch motion.Channel, s motion.Sample) {
	c.mu.Lock()
	switch ch {
	case motion.Gyroscope:
		c.gyroscope = s
	case motion.Accelerometer:
		c.accelerometer = s
	}
	c.mu.Unlock()
}

// WriteReading replaces both channels at once.
func (c *SensorCache) WriteReading(r motion.Reading) {
	c.mu.Lock()
	c.gyroscope = r.Gyroscope
	c.accelerometer = r.Accelerometer
	c.mu.Unlock()
}

// Snapshot returns a copy of both channels.
func (c *SensorCache) Snapshot() motion.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return motion.Reading{
		Gyroscope:     c.gyroscope,
		Accelerometer: c.accelerometer,
	}
}
