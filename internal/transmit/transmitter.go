// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transmit runs the fixed-interval loop that snapshots the shared
// state into one envelope per tick and sends it over the link.
package transmit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/motion"
	"github.com/relabs-tech/motion_link/internal/state"
)

const DefaultInterval = 16 * time.Millisecond

// Sender is the outbound side of the link.
type Sender interface {
	IsOpen() bool
	Send(payload []byte) bool
}

// Mirror receives a copy of every envelope that was actually sent.
// It must not block.
type Mirror interface {
	MirrorEnvelope(payload []byte)
}

// Reason explains why a tick did not send.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNotOpen       Reason = "send_skipped"
	ReasonSendFailed    Reason = "send_failed"
	ReasonSerialization Reason = Reason(errors.ErrSerializationFailure)
)

// Report describes one tick.
type Report struct {
	At       time.Time
	Envelope motion.Envelope
	Sent     bool
	Reason   Reason
}

// Stats are cumulative tick counters.
type Stats struct {
	Ticks   uint64
	Sent    uint64
	Skipped uint64
	Failed  uint64
}

type Options struct {
	Interval time.Duration
	Mirror   Mirror
	Now      func() time.Time
}

type Transmitter struct {
	cache   *state.SensorCache
	slot    *state.ActionSlot
	latency *state.LatencyTracker
	sender  Sender
	opts    Options
	log     zerolog.Logger

	ticks   atomic.Uint64
	sent    atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

func New(cache *state.SensorCache, slot *state.ActionSlot, latency *state.LatencyTracker, sender Sender, opts Options) *Transmitter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Transmitter{
		cache:   cache,
		slot:    slot,
		latency: latency,
		sender:  sender,
		opts:    opts,
		log:     logger.Component("transmit"),
	}
}

// Tick runs one cycle. The pending action is consumed whether or not the
// envelope goes out; a skipped or failed send loses it.
func (t *Transmitter) Tick(now time.Time) Report {
	t.ticks.Add(1)

	// 1) sensors, 2) action, 3) delay
	reading := t.cache.Snapshot()
	action := t.slot.Take()
	delay := t.latency.LastDelay()

	// 4) envelope
	rep := Report{
		At: now,
		Envelope: motion.Envelope{
			Gyroscope:     reading.Gyroscope,
			Accelerometer: reading.Accelerometer,
			SpecialAction: string(action),
			Delay:         delay,
		},
	}

	// 5) send
	if !t.sender.IsOpen() {
		t.skipped.Add(1)
		rep.Reason = ReasonNotOpen
		if action != motion.NoAction {
			t.log.Debug().Str("action", string(action)).Msg("link not open, action dropped")
		}
		return rep
	}

	payload, err := json.Marshal(rep.Envelope)
	if err != nil {
		t.failed.Add(1)
		rep.Reason = ReasonSerialization
		logger.ErrorWithCode(errors.New().Wrap(errors.ErrSerializationFailure, err)).
			Str("component", "transmit").Msg("envelope marshal error")
		return rep
	}

	if !t.sender.Send(payload) {
		t.failed.Add(1)
		rep.Reason = ReasonSendFailed
		t.log.Warn().Str("action", string(action)).Msg("send failed")
		return rep
	}

	t.sent.Add(1)
	rep.Sent = true
	if action != motion.NoAction {
		t.log.Info().Str("action", string(action)).Int64("delay", delay).Msg("action sent")
	}
	if t.opts.Mirror != nil {
		t.opts.Mirror.MirrorEnvelope(payload)
	}
	return rep
}

// Run ticks at the configured interval until ctx is done.
func (t *Transmitter) Run(ctx context.Context) error {
	t.log.Info().Dur("interval", t.opts.Interval).Msg("starting transmit loop")

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			st := t.Stats()
			t.log.Info().
				Uint64("ticks", st.Ticks).
				Uint64("sent", st.Sent).
				Uint64("skipped", st.Skipped).
				Uint64("failed", st.Failed).
				Msg("transmit loop stopped")
			return ctx.Err()
		case <-ticker.C:
			t.Tick(t.opts.Now())
		}
	}
}

func (t *Transmitter) Stats() Stats {
	return Stats{
		Ticks:   t.ticks.Load(),
		Sent:    t.sent.Load(),
		Skipped: t.skipped.Load(),
		Failed:  t.failed.Load(),
	}
}
