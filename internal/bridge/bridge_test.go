package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_link/internal/bridge"
	"github.com/relabs-tech/motion_link/internal/motion"
	"github.com/relabs-tech/motion_link/internal/state"
)

func newBridge(tracked ...motion.Action) (*bridge.Bridge, *state.ActionSlot, *state.LatencyTracker) {
	slot := &state.ActionSlot{}
	lat := &state.LatencyTracker{}
	return bridge.New(slot, lat, tracked), slot, lat
}

func TestPressMapsVolumeKeys(t *testing.T) {
	b, slot, _ := newBridge()

	require.True(t, b.Press(motion.KeyVolumeUp, time.Now()))
	assert.Equal(t, motion.VolumeUp, slot.Take())

	require.True(t, b.Press(motion.KeyVolumeDown, time.Now()))
	assert.Equal(t, motion.VolumeDown, slot.Take())
}

func TestPressUnknownKeyIgnored(t *testing.T) {
	b, slot, _ := newBridge()
	slot.Trigger(motion.CameraLock)

	assert.False(t, b.Press(motion.Key("power"), time.Now()))
	assert.Equal(t, motion.CameraLock, slot.Take())
}

func TestTriggerMarksLatencyOnlyForTrackedActions(t *testing.T) {
	b, _, lat := newBridge(motion.Deflect)
	t0 := time.Unix(100, 0)

	b.Trigger(motion.CameraLock, t0)
	_, ok := lat.OnAcknowledge(t0.Add(time.Second))
	assert.False(t, ok, "untracked action must not start a measurement")

	b.Trigger(motion.Deflect, t0)
	d, ok := lat.OnAcknowledge(t0.Add(40 * time.Millisecond))
	assert.True(t, ok)
	assert.EqualValues(t, 40, d)

	assert.True(t, b.Tracked(motion.Deflect))
	assert.False(t, b.Tracked(motion.VolumeUp))
}

func TestTrackedHardwareKeyMarksLatency(t *testing.T) {
	b, _, lat := newBridge(motion.VolumeUp)
	t0 := time.Unix(100, 0)

	b.Press(motion.KeyVolumeUp, t0)
	d, ok := lat.OnAcknowledge(t0.Add(15 * time.Millisecond))
	assert.True(t, ok)
	assert.EqualValues(t, 15, d)
}

func TestRunDrainsUntilClosed(t *testing.T) {
	b, slot, _ := newBridge()
	keys := make(chan motion.Key, 3)
	keys <- motion.KeyVolumeUp
	keys <- motion.KeyVolumeUp
	keys <- motion.KeyVolumeDown
	close(keys)

	require.NoError(t, b.Run(context.Background(), keys))
	assert.Equal(t, motion.VolumeDown, slot.Take())
}

func TestRunStopsOnCancel(t *testing.T) {
	b, _, _ := newBridge()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Run(ctx, make(chan motion.Key)), context.Canceled)
}

func TestKeyCodeMapping(t *testing.T) {
	k, ok := bridge.KeyForRawcode(115, 115, 114)
	assert.True(t, ok)
	assert.Equal(t, motion.KeyVolumeUp, k)

	k, ok = bridge.KeyForRawcode(114, 115, 114)
	assert.True(t, ok)
	assert.Equal(t, motion.KeyVolumeDown, k)

	_, ok = bridge.KeyForRawcode(30, 115, 114)
	assert.False(t, ok)

	k, ok = bridge.KeyForVolkey(24)
	assert.True(t, ok)
	assert.Equal(t, motion.KeyVolumeUp, k)

	k, ok = bridge.KeyForVolkey(25)
	assert.True(t, ok)
	assert.Equal(t, motion.KeyVolumeDown, k)

	_, ok = bridge.KeyForVolkey(26)
	assert.False(t, ok)
}
