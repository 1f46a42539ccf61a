// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/motion_link/internal/bridge"
	"github.com/relabs-tech/motion_link/internal/broker"
	"github.com/relabs-tech/motion_link/internal/config"
	"github.com/relabs-tech/motion_link/internal/keys"
	"github.com/relabs-tech/motion_link/internal/link"
	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/motion"
	"github.com/relabs-tech/motion_link/internal/sensors"
	"github.com/relabs-tech/motion_link/internal/state"
	"github.com/relabs-tech/motion_link/internal/transmit"
)

// RunTransmitter connects to the listener and streams envelopes until the
// link ends, the operator quits or the process is signalled. The socket
// is torn down on every exit path.
func RunTransmitter(ctx context.Context) error {
	cfg := config.Get()
	session := uuid.NewString()
	log := logger.Component("app").With().Str("session", session).Logger()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- shared state ---
	cache := &state.SensorCache{}
	slot := &state.ActionSlot{}
	latency := &state.LatencyTracker{}

	// --- link ---
	mgr := link.NewManager(link.Options{
		Path:             cfg.EndpointPath,
		HandshakeTimeout: cfg.HandshakeTimeout(),
		WriteTimeout:     cfg.WriteTimeout(),
	})
	defer mgr.Teardown()
	go func() {
		<-ctx.Done()
		mgr.Teardown()
	}()

	TrackAcknowledgments(mgr, latency, log)

	// --- MQTT (optional) ---
	var client mqtt.Client
	if cfg.MQTTMirror || cfg.SensorSource == config.SensorMQTT {
		c, err := broker.Connect(cfg.MQTTBroker, cfg.MQTTClientID+"-"+session[:8])
		if err != nil {
			return err
		}
		defer broker.Disconnect(c)
		client = c
	}

	txOpts := transmit.Options{Interval: cfg.TickInterval()}
	if cfg.MQTTMirror {
		mirror := broker.NewMirror(client, cfg.TopicEnvelope, cfg.TopicLinkState, session)
		mgr.OnStateChange(func(_, to link.State) {
			mirror.LinkState(to.String(), time.Now())
		})
		txOpts.Mirror = mirror
	}

	// --- producers ---
	b := bridge.New(slot, latency, cfg.LatencyTracked)
	keyCh := make(chan motion.Key, 16)

	var wg sync.WaitGroup
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && ctx.Err() == nil {
				logger.ErrorWithCode(err).Str("component", "app").Str("worker", name).Msg("worker stopped")
			}
		}()
	}

	spawn("bridge", func() error { return b.Run(ctx, keyCh) })

	if err := startSensors(ctx, cfg, cache, keyCh, client, spawn, log); err != nil {
		return err
	}
	if err := startKeys(ctx, cfg, cache, keyCh, spawn, log); err != nil {
		return err
	}
	if cfg.ConsoleTriggers {
		// stdin reads cannot be interrupted; this goroutine is left behind on exit
		go func() {
			if err := RunConsole(ctx, os.Stdin, b, cancel); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("console stopped")
			}
		}()
	}

	// --- connect once, no reconnection ---
	if err := mgr.Connect(ctx, cfg.Endpoint); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	tx := transmit.New(cache, slot, latency, mgr, txOpts)
	spawn("transmit", func() error { return tx.Run(ctx) })

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case <-mgr.Done():
		log.Warn().Str("state", mgr.State().String()).Msg("link ended")
		cancel()
	}

	wg.Wait()
	mgr.Teardown()
	return nil
}

// TrackAcknowledgments feeds every inbound frame on mgr to latency as an
// acknowledgment, timed at its arrival.
func TrackAcknowledgments(mgr *link.Manager, latency *state.LatencyTracker, log zerolog.Logger) {
	mgr.OnMessage(func(payload []byte, at time.Time) {
		log.Debug().Bytes("payload", payload).Msg("ack received")
		if d, ok := latency.OnAcknowledge(at); ok {
			log.Info().Int64("delay_ms", d).Msg("round trip measured")
		} else {
			log.Debug().Msg("ack without pending trigger")
		}
	})
}

func startSensors(ctx context.Context, cfg *config.Config, cache *state.SensorCache, keyCh chan<- motion.Key,
	client mqtt.Client, spawn func(string, func() error), log zerolog.Logger) error {
	interval := cfg.SensorSampleInterval()

	switch cfg.SensorSource {
	case config.SensorMock:
		spawn("sensors", func() error { return sensors.Pump(ctx, sensors.NewMockSource(), cache, interval) })

	case config.SensorMPU9250:
		raw, err := sensors.NewMPU9250(cfg.IMUSPIDevice, cfg.IMUCSPin, byte(cfg.IMUAccelRange), byte(cfg.IMUGyroRange))
		if err != nil {
			return err
		}
		src := sensors.FromRaw(raw, byte(cfg.IMUAccelRange), byte(cfg.IMUGyroRange))
		spawn("sensors", func() error { return sensors.Pump(ctx, src, cache, interval) })

	case config.SensorSerial:
		// volkey lines share the port when keys come from serial too
		var ch chan<- motion.Key
		if cfg.KeySource == config.KeySerial {
			ch = keyCh
		}
		return startLineFeed(ctx, cfg, cache, ch, spawn)

	case config.SensorMQTT:
		return broker.SubscribeIMU(client, cfg.TopicIMU, cache, byte(cfg.IMUAccelRange), byte(cfg.IMUGyroRange))

	case config.SensorNone:
		log.Warn().Msg("no sensor source, envelopes carry zero samples")
	}
	return nil
}

func startKeys(ctx context.Context, cfg *config.Config, cache *state.SensorCache, keyCh chan<- motion.Key,
	spawn func(string, func() error), log zerolog.Logger) error {
	switch cfg.KeySource {
	case config.KeyHook:
		h := keys.HookSource{
			VolumeUp:   uint16(cfg.KeyVolumeUpRawcode),
			VolumeDown: uint16(cfg.KeyVolumeDownRawcode),
		}
		spawn("keys", func() error { return h.Run(ctx, keyCh) })
	case config.KeySerial:
		if cfg.SensorSource != config.SensorSerial {
			return startLineFeed(ctx, cfg, cache, keyCh, spawn)
		}
	case config.KeyNone:
		log.Debug().Msg("no hardware key source")
	}
	return nil
}

func startLineFeed(ctx context.Context, cfg *config.Config, cache *state.SensorCache, keyCh chan<- motion.Key,
	spawn func(string, func() error)) error {
	port, err := sensors.OpenSerial(cfg.SerialPort, cfg.SerialBaudRate)
	if err != nil {
		return err
	}
	closeOnDone(ctx, port)
	feed := sensors.NewLineFeed(cache, keyCh)
	spawn("serial", func() error { return feed.Consume(ctx, port) })
	return nil
}

// closeOnDone closes c once ctx ends, unblocking pending reads.
func closeOnDone(ctx context.Context, c io.Closer) {
	go func() {
		<-ctx.Done()
		c.Close()
	}()
}
