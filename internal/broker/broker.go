// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package broker mirrors link traffic to MQTT and reads raw IMU samples
// published by inertial producers.
package broker

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/imu"
	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/state"
)

const (
	disconnectQuiesceMs  = 250
	actionPublishTimeout = 2 * time.Second
)

// Publisher is the part of mqtt.Client the mirror needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect dials the broker and waits for the connection.
func Connect(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.New().Wrap(errors.ErrConnectionFailure,
			fmt.Errorf("MQTT connect %s: %w", brokerURL, token.Error()))
	}
	log := logger.Component("broker")
	log.Info().Str("broker", brokerURL).Str("client_id", clientID).Msg("connected to MQTT")
	return client, nil
}

// Disconnect closes client, letting in-flight work finish briefly.
func Disconnect(client mqtt.Client) {
	client.Disconnect(disconnectQuiesceMs)
}

// LinkStatus is the retained link state payload.
type LinkStatus struct {
	State   string `json:"state"`
	Session string `json:"session"`
	Time    string `json:"time"`
}

// Mirror publishes sent envelopes and link state changes. None of its
// methods wait on the broker.
type Mirror struct {
	pub           Publisher
	envelopeTopic string
	stateTopic    string
	session       string
	log           zerolog.Logger
}

func NewMirror(pub Publisher, envelopeTopic, stateTopic, session string) *Mirror {
	return &Mirror{
		pub:           pub,
		envelopeTopic: envelopeTopic,
		stateTopic:    stateTopic,
		session:       session,
		log:           logger.Component("broker"),
	}
}

// MirrorEnvelope publishes payload at QoS 0, not retained.
func (m *Mirror) MirrorEnvelope(payload []byte) {
	m.pub.Publish(m.envelopeTopic, 0, false, payload)
}

// LinkState publishes the link state, retained so late subscribers see
// the latest value.
func (m *Mirror) LinkState(st string, at time.Time) {
	payload, err := json.Marshal(LinkStatus{
		State:   st,
		Session: m.session,
		Time:    at.Format(time.RFC3339),
	})
	if err != nil {
		m.log.Error().Err(err).Msg("link state marshal error")
		return
	}
	token := m.pub.Publish(m.stateTopic, 1, true, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			m.log.Warn().Err(token.Error()).Str("state", st).Msg("MQTT publish error (link state)")
		}
	}()
}

// ActionEvent is one recognised or received action.
type ActionEvent struct {
	Action string `json:"action"`
	Source string `json:"source"`
	Time   string `json:"time"`
}

// ActionPublisher posts listener actions to a topic.
type ActionPublisher struct {
	pub   Publisher
	topic string
}

func NewActionPublisher(pub Publisher, topic string) *ActionPublisher {
	return &ActionPublisher{pub: pub, topic: topic}
}

// PublishAction publishes at QoS 0 and waits for the client to accept the
// message.
func (p *ActionPublisher) PublishAction(action, source string, at time.Time) error {
	payload, err := json.Marshal(ActionEvent{Action: action, Source: source, Time: at.Format(time.RFC3339Nano)})
	if err != nil {
		return errors.New().Wrap(errors.ErrSerializationFailure, err)
	}
	token := p.pub.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(actionPublishTimeout) {
		return errors.New().Wrap(errors.ErrConnectionFailure, fmt.Errorf("publish %s: timed out", p.topic))
	}
	if err := token.Error(); err != nil {
		return errors.New().Wrap(errors.ErrConnectionFailure, fmt.Errorf("publish %s: %w", p.topic, err))
	}
	return nil
}

// IMUHandler decodes imu.IMURaw payloads and writes converted samples to
// cache.
func IMUHandler(cache *state.SensorCache, accelRange, gyroRange byte) func(payload []byte) error {
	return func(payload []byte) error {
		var raw imu.IMURaw
		if err := json.Unmarshal(payload, &raw); err != nil {
			return errors.New().Wrap(errors.ErrSensorRead, fmt.Errorf("imu payload: %w", err))
		}
		cache.WriteReading(raw.Reading(accelRange, gyroRange))
		return nil
	}
}

// SubscribeIMU subscribes to topic and feeds cache from it.
func SubscribeIMU(client mqtt.Client, topic string, cache *state.SensorCache, accelRange, gyroRange byte) error {
	log := logger.Component("broker")
	handle := IMUHandler(cache, accelRange, gyroRange)

	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handle(msg.Payload()); err != nil {
			log.Debug().Err(err).Str("topic", msg.Topic()).Msg("imu unmarshal error")
		}
	})
	token.Wait()
	if token.Error() != nil {
		return errors.New().Wrap(errors.ErrConnectionFailure, fmt.Errorf("subscribe %s: %w", topic, token.Error()))
	}
	log.Info().Str("topic", topic).Msg("subscribed to raw IMU")
	return nil
}
