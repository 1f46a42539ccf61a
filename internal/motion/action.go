package motion

import (
	"fmt"
	"strings"
)

// Action is an operator-triggered label. The empty Action means nothing
// is pending.
type Action string

const (
	NoAction   Action = ""
	CameraLock Action = "Camera lock"
	Deflect    Action = "Deflect"
	VolumeUp   Action = "Volume up"
	VolumeDown Action = "Volume down"
)

var knownActions = []Action{CameraLock, Deflect, VolumeUp, VolumeDown}

// Known reports whether a is one of the defined action labels.
func (a Action) Known() bool {
	for _, k := range knownActions {
		if a == k {
			return true
		}
	}
	return false
}

// ParseActions parses a comma-separated list of action labels,
// e.g. "Deflect, Camera lock". Matching is case-insensitive.
func ParseActions(s string) ([]Action, error) {
	var out []Action
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, ok := lookupAction(part)
		if !ok {
			return nil, fmt.Errorf("unknown action %q", part)
		}
		out = append(out, a)
	}
	return out, nil
}

func lookupAction(s string) (Action, bool) {
	for _, k := range knownActions {
		if strings.EqualFold(string(k), s) {
			return k, true
		}
	}
	return NoAction, false
}

// Key is a discrete hardware button press delivered by the host.
type Key string

const (
	KeyVolumeUp   Key = "volume-up"
	KeyVolumeDown Key = "volume-down"
)

// Action maps a hardware key to the label it triggers.
func (k Key) Action() (Action, bool) {
	switch k {
	case KeyVolumeUp:
		return VolumeUp, true
	case KeyVolumeDown:
		return VolumeDown, true
	default:
		return NoAction, false
	}
}
