package app_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_link/internal/app"
	"github.com/relabs-tech/motion_link/internal/gesture"
	"github.com/relabs-tech/motion_link/internal/imu"
	"github.com/relabs-tech/motion_link/internal/journal"
	"github.com/relabs-tech/motion_link/internal/motion"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (m *memRecorder) Record(e journal.Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memRecorder) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, string(e.Kind)+":"+e.Action)
	}
	return out
}

type memSink struct {
	mu      sync.Mutex
	actions []string
}

func (m *memSink) PublishAction(action, source string, _ time.Time) error {
	m.mu.Lock()
	m.actions = append(m.actions, source+":"+action)
	m.mu.Unlock()
	return nil
}

func (m *memSink) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.actions...)
}

func dialListener(t *testing.T, l *app.Listener) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(l)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, env motion.Envelope) {
	t.Helper()
	payload, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

var still = motion.Envelope{Accelerometer: motion.Sample{Z: imu.StandardGravity}}

func TestListenerAcknowledgesDeflect(t *testing.T) {
	rec := &memRecorder{}
	conn := dialListener(t, app.NewListener(app.ListenerOptions{
		Recorder:   rec,
		Thresholds: gesture.DefaultThresholds(),
	}))

	env := still
	env.SpecialAction = string(motion.Deflect)
	send(t, conn, env)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Deflect executed"}`, string(reply))
	assert.Equal(t, []string{"action:Deflect"}, rec.kinds())
}

func TestListenerCombinationTurnsSwingIntoCombatArt(t *testing.T) {
	rec := &memRecorder{}
	sink := &memSink{}
	conn := dialListener(t, app.NewListener(app.ListenerOptions{
		Recorder:   rec,
		Actions:    sink,
		Thresholds: gesture.DefaultThresholds(),
	}))

	toggle := still
	toggle.SpecialAction = string(motion.VolumeUp)
	send(t, conn, toggle)

	swing := motion.Envelope{Accelerometer: motion.Sample{X: 5 * imu.StandardGravity}, Delay: 40}
	send(t, conn, swing)
	// same delay again is not journaled twice
	send(t, conn, swing)

	require.Eventually(t, func() bool { return len(sink.all()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"handheld:Volume up", "gesture:Combat art"}, sink.all())
	assert.Equal(t, []string{"action:Volume up", "delay:", "gesture:Combat art"}, rec.kinds())
}

func TestListenerIgnoresUnknownActionsAndBadFrames(t *testing.T) {
	rec := &memRecorder{}
	conn := dialListener(t, app.NewListener(app.ListenerOptions{
		Recorder:   rec,
		Thresholds: gesture.DefaultThresholds(),
	}))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	unknown := still
	unknown.SpecialAction = "Jump"
	send(t, conn, unknown)

	// a Deflect afterwards still gets its acknowledgment
	deflect := still
	deflect.SpecialAction = string(motion.Deflect)
	send(t, conn, deflect)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(reply), "Deflect executed")
	assert.Equal(t, []string{"action:Deflect"}, rec.kinds())
}
