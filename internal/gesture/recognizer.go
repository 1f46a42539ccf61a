// Package gesture recognises sword-style gestures from motion envelopes
// on the listening side.
package gesture

import (
	"math"
	"time"

	"github.com/relabs-tech/motion_link/internal/imu"
	"github.com/relabs-tech/motion_link/internal/motion"
)

type Gesture string

const (
	None      Gesture = ""
	Attack    Gesture = "Attack"
	CombatArt Gesture = "Combat art"
	Parry     Gesture = "Parry"
	DashIn    Gesture = "Dash in"
	DashOut   Gesture = "Dash out"
)

// Thresholds tune recognition. Gyro values are rad/s, accel values are
// in g.
type Thresholds struct {
	Cooldown      time.Duration // after Parry or Dash
	DashCooldown  time.Duration
	GyroMagnitude float64
	Parry         float64 // |gyro y|
	Dash          float64 // |gyro x|
	AccelStart    float64
	AccelStop     float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Cooldown:      250 * time.Millisecond,
		DashCooldown:  time.Second,
		GyroMagnitude: 8,
		Parry:         7,
		Dash:          8,
		AccelStart:    3,
		AccelStop:     2,
	}
}

// Recognizer keeps per-connection recognition state. It is not safe for
// concurrent use.
type Recognizer struct {
	th          Thresholds
	lastAction  time.Time
	lastDash    time.Time
	canAttack   bool
	combination bool
}

func NewRecognizer(th Thresholds) *Recognizer {
	return &Recognizer{th: th, canAttack: true}
}

// ToggleCombination flips combination mode and returns the new value.
// While it is on, an Attack is reported as CombatArt.
func (r *Recognizer) ToggleCombination() bool {
	r.combination = !r.combination
	return r.combination
}

func (r *Recognizer) Combination() bool {
	return r.combination
}

// Recognize inspects one envelope received at now.
//
// One swing crosses the start threshold on many consecutive samples, so
// after an Attack no other Attack fires until acceleration falls below
// the stop threshold. Parry wins over Dash.
func (r *Recognizer) Recognize(env motion.Envelope, now time.Time) Gesture {
	if !r.lastAction.IsZero() && now.Sub(r.lastAction) < r.th.Cooldown {
		return None
	}

	accel := magnitude(env.Accelerometer) / imu.StandardGravity
	gyro := magnitude(env.Gyroscope)

	if accel > r.th.AccelStart && r.canAttack {
		r.canAttack = false
		if r.combination {
			return CombatArt
		}
		return Attack
	}
	if accel < r.th.AccelStop {
		r.canAttack = true
	}

	if gyro <= r.th.GyroMagnitude {
		return None
	}

	if math.Abs(env.Gyroscope.Y) > r.th.Parry {
		r.lastAction = now
		return Parry
	}

	if math.Abs(env.Gyroscope.X) > r.th.Dash &&
		(r.lastDash.IsZero() || now.Sub(r.lastDash) > r.th.DashCooldown) {
		r.lastAction = now
		r.lastDash = now
		if env.Gyroscope.X < 0 {
			return DashIn
		}
		return DashOut
	}

	return None
}

func magnitude(s motion.Sample) float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}
