// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bridge turns hardware key presses and on-screen triggers into
// writes on the action slot and latency tracker.
package bridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/motion"
	"github.com/relabs-tech/motion_link/internal/state"
)

type Bridge struct {
	slot    *state.ActionSlot
	latency *state.LatencyTracker
	tracked map[motion.Action]bool
	now     func() time.Time
	log     zerolog.Logger
}

// New returns a bridge that marks a latency trigger for every action in
// tracked.
func New(slot *state.ActionSlot, latency *state.LatencyTracker, tracked []motion.Action) *Bridge {
	b := &Bridge{
		slot:    slot,
		latency: latency,
		tracked: make(map[motion.Action]bool, len(tracked)),
		now:     time.Now,
		log:     logger.Component("bridge"),
	}
	for _, a := range tracked {
		b.tracked[a] = true
	}
	return b
}

// Tracked reports whether a triggers a latency measurement.
func (b *Bridge) Tracked(a motion.Action) bool {
	return b.tracked[a]
}

// Trigger is the single entry point for actions, from keys or from the
// operator.
func (b *Bridge) Trigger(a motion.Action, now time.Time) {
	b.slot.Trigger(a)
	if b.tracked[a] {
		b.latency.MarkTriggered(now)
	}
	b.log.Debug().Str("action", string(a)).Bool("tracked", b.tracked[a]).Msg("action triggered")
}

// Press maps one hardware key to its action. Unknown keys are ignored.
func (b *Bridge) Press(k motion.Key, now time.Time) bool {
	a, ok := k.Action()
	if !ok {
		b.log.Warn().Str("key", string(k)).Msg("unknown hardware key ignored")
		return false
	}
	b.Trigger(a, now)
	return true
}

// Run drains keys until the channel closes or ctx ends. Every press is
// handled; there is no debouncing.
func (b *Bridge) Run(ctx context.Context, keys <-chan motion.Key) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case k, ok := <-keys:
			if !ok {
				return nil
			}
			b.Press(k, b.now())
		}
	}
}

// KeyForRawcode maps a host key rawcode to a hardware key using the
// configured codes.
func KeyForRawcode(raw, volumeUp, volumeDown uint16) (motion.Key, bool) {
	switch raw {
	case volumeUp:
		return motion.KeyVolumeUp, true
	case volumeDown:
		return motion.KeyVolumeDown, true
	default:
		return "", false
	}
}

// KeyForVolkey maps the Android key code carried by volkey lines
// (24 volume up, 25 volume down).
func KeyForVolkey(code int) (motion.Key, bool) {
	switch code {
	case 24:
		return motion.KeyVolumeUp, true
	case 25:
		return motion.KeyVolumeDown, true
	default:
		return "", false
	}
}
