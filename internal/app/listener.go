// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/motion_link/internal/broker"
	"github.com/relabs-tech/motion_link/internal/config"
	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/gesture"
	"github.com/relabs-tech/motion_link/internal/journal"
	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/motion"
)

const shutdownGrace = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // handheld clients connect from anywhere on the LAN
	},
}

// DeflectAck is the reply that closes a Deflect round trip.
type DeflectAck struct {
	Status string `json:"status"`
}

var deflectAck = DeflectAck{Status: "Deflect executed"}

// Recorder stores listener events.
type Recorder interface {
	Record(journal.Entry) error
}

// ActionSink receives recognised and received actions.
type ActionSink interface {
	PublishAction(action, source string, at time.Time) error
}

type ListenerOptions struct {
	Recorder   Recorder   // optional
	Actions    ActionSink // optional
	Thresholds gesture.Thresholds
	Now        func() time.Time
}

// Listener is the receiving end of the link: it acknowledges Deflect,
// tracks combination mode and recognises gestures per connection.
type Listener struct {
	opts ListenerOptions
	log  zerolog.Logger
}

func NewListener(opts ListenerOptions) *Listener {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Listener{opts: opts, log: logger.Component("listener")}
}

// listenerSession holds the state of one connected handheld.
type listenerSession struct {
	id         string
	conn       *websocket.Conn
	recognizer *gesture.Recognizer
	lastDelay  int64
	log        zerolog.Logger
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	defer conn.Close()

	s := &listenerSession{
		id:         uuid.NewString(),
		conn:       conn,
		recognizer: gesture.NewRecognizer(l.opts.Thresholds),
	}
	s.log = l.log.With().Str("session", s.id).Str("remote", r.RemoteAddr).Logger()
	s.log.Info().Msg("connection established")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn().Err(err).Msg("connection lost")
			} else {
				s.log.Info().Msg("connection closed")
			}
			return
		}

		var env motion.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Debug().Err(err).Msg("envelope unmarshal error")
			continue
		}
		if err := l.handle(s, env, l.opts.Now()); err != nil {
			s.log.Warn().Err(err).Msg("reply failed")
			return
		}
	}
}

// handle processes one envelope. Only a failed reply is returned.
func (l *Listener) handle(s *listenerSession, env motion.Envelope, now time.Time) error {
	if env.Delay != 0 && env.Delay != s.lastDelay {
		s.lastDelay = env.Delay
		s.log.Info().Int64("delay", env.Delay).Msg("round trip reported")
		l.record(journal.Entry{Time: now, Session: s.id, Kind: journal.KindDelay, DelayMs: env.Delay})
	}

	if env.SpecialAction != "" {
		if err := l.specialAction(s, motion.Action(env.SpecialAction), now); err != nil {
			return err
		}
	}

	if g := s.recognizer.Recognize(env, now); g != gesture.None {
		s.log.Info().Str("gesture", string(g)).Msg("gesture recognised")
		l.record(journal.Entry{Time: now, Session: s.id, Kind: journal.KindGesture, Action: string(g)})
		l.publish(string(g), "gesture", now)
	}
	return nil
}

func (l *Listener) specialAction(s *listenerSession, a motion.Action, now time.Time) error {
	switch a {
	case motion.Deflect:
		s.log.Info().Msg("deflect")
		payload, _ := json.Marshal(deflectAck)
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return errors.New().Wrap(errors.ErrConnectionFailure, err)
		}
	case motion.VolumeUp:
		on := s.recognizer.ToggleCombination()
		s.log.Info().Bool("combination", on).Msg("combination button toggled")
	case motion.CameraLock, motion.VolumeDown:
		s.log.Info().Str("action", string(a)).Msg("action received")
	default:
		s.log.Warn().Str("action", string(a)).Msg("unrecognized action")
		return nil
	}

	l.record(journal.Entry{Time: now, Session: s.id, Kind: journal.KindAction, Action: string(a)})
	l.publish(string(a), "handheld", now)
	return nil
}

func (l *Listener) record(e journal.Entry) {
	if l.opts.Recorder == nil {
		return
	}
	if err := l.opts.Recorder.Record(e); err != nil {
		logger.ErrorWithCode(err).Str("component", "listener").Msg("journal write failed")
	}
}

func (l *Listener) publish(action, source string, at time.Time) {
	if l.opts.Actions == nil {
		return
	}
	if err := l.opts.Actions.PublishAction(action, source, at); err != nil {
		l.log.Warn().Err(err).Msg("action publish failed")
	}
}

// RunListener serves the listener endpoint until ctx is done.
func RunListener(ctx context.Context) error {
	cfg := config.Get()
	log := logger.Component("listener")

	opts := ListenerOptions{Thresholds: gesture.DefaultThresholds()}
	mux := http.NewServeMux()

	if cfg.JournalPath != "" {
		j, err := journal.Open(journal.Config{Path: cfg.JournalPath, BatchSize: cfg.JournalBatchSize})
		if err != nil {
			return err
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.ErrorWithCode(err).Str("component", "listener").Msg("journal close failed")
			}
		}()
		opts.Recorder = j
		mux.Handle("/api/journal", JournalHandler(j))
	}

	if cfg.MQTTBroker != "" {
		client, err := broker.Connect(cfg.MQTTBroker, cfg.MQTTClientID+"-listener-"+uuid.NewString()[:8])
		if err != nil {
			return err
		}
		defer broker.Disconnect(client)
		opts.Actions = broker.NewActionPublisher(client, cfg.TopicActions)
	}

	mux.Handle(cfg.ListenPath, NewListener(opts))
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("path", cfg.ListenPath).Msg("listener started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.New().Wrap(errors.ErrInitFailed, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("listener shutdown")
	}
	log.Info().Msg("listener stopped")
	return nil
}
