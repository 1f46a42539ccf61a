// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/motion_link/internal/broker"
	"github.com/relabs-tech/motion_link/internal/config"
	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/motion"
)

// MirrorPrinter renders mirrored MQTT traffic as one line per message.
type MirrorPrinter struct {
	Out           io.Writer
	EnvelopeTopic string
	StateTopic    string
	ActionsTopic  string
}

// Print writes a line for payload received on topic. Undecodable payloads
// and unknown topics are reported as errors.
func (p *MirrorPrinter) Print(topic string, payload []byte) error {
	switch topic {
	case p.EnvelopeTopic:
		var env motion.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return errors.New().Wrap(errors.ErrSerializationFailure, err)
		}
		g, a := env.Gyroscope, env.Accelerometer
		line := fmt.Sprintf("[ENV ] gx=%7.3f gy=%7.3f gz=%7.3f  ax=%7.3f ay=%7.3f az=%7.3f  delay=%dms",
			g.X, g.Y, g.Z, a.X, a.Y, a.Z, env.Delay)
		if env.SpecialAction != "" {
			line += "  action=" + env.SpecialAction
		}
		_, err := fmt.Fprintln(p.Out, line)
		return err

	case p.StateTopic:
		var st broker.LinkStatus
		if err := json.Unmarshal(payload, &st); err != nil {
			return errors.New().Wrap(errors.ErrSerializationFailure, err)
		}
		_, err := fmt.Fprintf(p.Out, "[LINK] %s session=%s at=%s\n", st.State, st.Session, st.Time)
		return err

	case p.ActionsTopic:
		var ev broker.ActionEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return errors.New().Wrap(errors.ErrSerializationFailure, err)
		}
		_, err := fmt.Fprintf(p.Out, "[ACT ] %s (%s) at=%s\n", ev.Action, ev.Source, ev.Time)
		return err
	}
	return fmt.Errorf("unexpected topic %q", topic)
}

// RunConsoleMQTT subscribes to the mirror topics and prints every message
// until ctx is done or the process is signalled.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()
	log := logger.Component("console_mqtt")

	if cfg.MQTTBroker == "" {
		return errors.New().Wrap(errors.ErrInvalidConfig, fmt.Errorf("MQTT_BROKER is required"))
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := broker.Connect(cfg.MQTTBroker, cfg.MQTTClientID+"-console-"+uuid.NewString()[:8])
	if err != nil {
		return err
	}
	defer broker.Disconnect(client)

	printer := &MirrorPrinter{
		Out:           os.Stdout,
		EnvelopeTopic: cfg.TopicEnvelope,
		StateTopic:    cfg.TopicLinkState,
		ActionsTopic:  cfg.TopicActions,
	}

	for _, topic := range []string{cfg.TopicEnvelope, cfg.TopicLinkState, cfg.TopicActions} {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := printer.Print(msg.Topic(), msg.Payload()); err != nil {
				log.Debug().Err(err).Str("topic", msg.Topic()).Msg("print error")
			}
		})
		token.Wait()
		if token.Error() != nil {
			return errors.New().Wrap(errors.ErrConnectionFailure, fmt.Errorf("subscribe %s: %w", topic, token.Error()))
		}
		log.Info().Str("topic", topic).Msg("subscribed")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}
