package motion_test

import (
	"encoding/json"
	"testing"

	"github.com/relabs-tech/motion_link/internal/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireShape(t *testing.T) {
	env := motion.Envelope{
		Gyroscope:     motion.Sample{X: 1},
		Accelerometer: motion.Sample{Z: 9.8},
		SpecialAction: string(motion.Deflect),
		Delay:         40,
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"gyroscope":{"x":1,"y":0,"z":0},"accelerometer":{"x":0,"y":0,"z":9.8},"special_action":"Deflect","delay":40}`,
		string(b))
}

func TestEmptyActionIsSerialisedAsEmptyString(t *testing.T) {
	b, err := json.Marshal(motion.Envelope{})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "", raw["special_action"])
	assert.EqualValues(t, 0, raw["delay"])
}

func TestParseActions(t *testing.T) {
	got, err := motion.ParseActions(" deflect, Camera lock ,")
	require.NoError(t, err)
	assert.Equal(t, []motion.Action{motion.Deflect, motion.CameraLock}, got)

	got, err = motion.ParseActions("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = motion.ParseActions("Deflect,Jump")
	assert.ErrorContains(t, err, `"Jump"`)
}

func TestKeyAction(t *testing.T) {
	a, ok := motion.KeyVolumeUp.Action()
	assert.True(t, ok)
	assert.Equal(t, motion.VolumeUp, a)

	a, ok = motion.KeyVolumeDown.Action()
	assert.True(t, ok)
	assert.Equal(t, motion.VolumeDown, a)

	_, ok = motion.Key("power").Action()
	assert.False(t, ok)
}

func TestKnown(t *testing.T) {
	assert.True(t, motion.CameraLock.Known())
	assert.False(t, motion.NoAction.Known())
	assert.False(t, motion.Action("Attack").Known())
}
