// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/logger"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultWriteTimeout     = time.Second
)

// MessageHandler receives every inbound frame with its arrival time.
type MessageHandler func(payload []byte, at time.Time)

// StateHandler observes state transitions.
type StateHandler func(from, to State)

// Options tune a Manager. Zero values pick the defaults.
type Options struct {
	Path             string // request path, default "/"
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Now              func() time.Time
}

// Manager owns one outbound websocket and its lifecycle:
// Connecting -> Open -> Closed|Failed, or Connecting -> Failed|Closed.
// There is no way back to Connecting.
type Manager struct {
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex // guards state, conn and handlers
	state     State
	conn      *websocket.Conn
	onMessage MessageHandler
	observers []StateHandler

	writeMu  sync.Mutex // one writer at a time on conn
	terminal chan struct{}
	readDone chan struct{}
	teardown sync.Once
}

// NewManager returns a Manager in the Connecting state.
func NewManager(opts Options) *Manager {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		opts:     opts,
		log:      logger.Component("link"),
		state:    Connecting,
		terminal: make(chan struct{}),
	}
}

// URL builds the websocket URL for a host:port endpoint. Endpoints that
// already carry a ws:// or wss:// scheme are used as given.
func (m *Manager) URL(endpoint string) string {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return endpoint
	}
	path := m.opts.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "ws://" + endpoint + path
}

// Connect performs the handshake. It may only be called once, while the
// manager is Connecting. On failure the manager ends in Failed and the
// error carries errors.ErrConnectionFailure.
func (m *Manager) Connect(ctx context.Context, endpoint string) error {
	errFactory := errors.New()

	if st := m.State(); st != Connecting {
		return errFactory.WithMessage(errors.ErrInvalidState,
			fmt.Sprintf("connect called in state %s", st))
	}

	url := m.URL(endpoint)
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: m.opts.HandshakeTimeout,
	}

	m.log.Info().Str("url", url).Msg("connecting")
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		m.transition(Failed)
		return errFactory.Wrap(errors.ErrConnectionFailure, fmt.Errorf("dial %s: %w", url, err))
	}

	m.mu.Lock()
	if m.state != Connecting {
		// torn down while dialing
		m.mu.Unlock()
		conn.Close()
		return errFactory.WithMessage(errors.ErrInvalidState, "connection torn down during handshake")
	}
	m.conn = conn
	m.readDone = make(chan struct{})
	from := m.setStateLocked(Open)
	m.mu.Unlock()
	m.notify(from, Open)

	go m.readLoop(conn)
	return nil
}

// Send writes one text frame. It reports false, without error, whenever
// the connection is not Open. A write failure moves the manager to Failed.
func (m *Manager) Send(payload []byte) bool {
	m.mu.Lock()
	if m.state != Open {
		m.mu.Unlock()
		return false
	}
	conn := m.conn
	m.mu.Unlock()

	m.writeMu.Lock()
	_ = conn.SetWriteDeadline(m.opts.Now().Add(m.opts.WriteTimeout))
	err := conn.WriteMessage(websocket.TextMessage, payload)
	m.writeMu.Unlock()

	if err != nil {
		m.log.Warn().Err(err).Msg("write failed")
		m.transition(Failed)
		conn.Close()
		return false
	}
	return true
}

// IsOpen reports whether Send would currently attempt a write.
func (m *Manager) IsOpen() bool {
	return m.State() == Open
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnMessage registers the inbound frame callback, replacing any previous
// one. It runs on the read goroutine.
func (m *Manager) OnMessage(h MessageHandler) {
	m.mu.Lock()
	m.onMessage = h
	m.mu.Unlock()
}

// OnStateChange adds an observer of state transitions.
func (m *Manager) OnStateChange(h StateHandler) {
	m.mu.Lock()
	m.observers = append(m.observers, h)
	m.mu.Unlock()
}

// Done is closed once the manager reaches Closed or Failed.
func (m *Manager) Done() <-chan struct{} {
	return m.terminal
}

// Teardown closes the socket and moves to Closed unless already Failed.
// Safe to call any number of times from any goroutine.
func (m *Manager) Teardown() {
	m.teardown.Do(func() {
		m.mu.Lock()
		conn := m.conn
		wasOpen := m.state == Open
		readDone := m.readDone
		m.mu.Unlock()

		// Closed first, so a Send racing the close frame cannot end in Failed
		m.transition(Closed)

		if conn != nil && wasOpen {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			deadline := m.opts.Now().Add(m.opts.WriteTimeout)
			if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
				m.log.Debug().Err(err).Msg("close frame not sent")
			}
		}

		if conn != nil {
			conn.Close()
		}
		if readDone != nil {
			select {
			case <-readDone:
			case <-time.After(m.opts.WriteTimeout):
			}
		}
		m.log.Info().Str("state", m.State().String()).Msg("teardown complete")
	})
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	defer close(m.readDone)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				m.log.Info().Msg("remote closed connection")
				m.transition(Closed)
			case m.State().Terminal():
				// local teardown already settled the state
			default:
				m.log.Warn().Err(err).Msg("read failed")
				m.transition(Failed)
			}
			conn.Close()
			return
		}

		at := m.opts.Now()
		m.mu.Lock()
		h := m.onMessage
		m.mu.Unlock()
		if h != nil {
			h(data, at)
		}
	}
}

// transition applies to unless the current state is terminal.
func (m *Manager) transition(to State) {
	m.mu.Lock()
	if m.state.Terminal() || m.state == to {
		m.mu.Unlock()
		return
	}
	from := m.setStateLocked(to)
	m.mu.Unlock()
	m.notify(from, to)
}

func (m *Manager) setStateLocked(to State) State {
	from := m.state
	m.state = to
	if to.Terminal() {
		close(m.terminal)
	}
	return from
}

func (m *Manager) notify(from, to State) {
	m.log.Info().Str("from", from.String()).Str("to", to.String()).Msg("state change")

	m.mu.Lock()
	observers := append([]StateHandler(nil), m.observers...)
	m.mu.Unlock()
	for _, h := range observers {
		h(from, to)
	}
}
