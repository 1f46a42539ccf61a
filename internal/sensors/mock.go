package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/motion_link/internal/imu"
	"github.com/relabs-tech/motion_link/internal/motion"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a source that generates smooth changing values:
// a slow wrist rotation with gravity on Z.
func NewMockSource() Source {
	return newMockSource(time.Now)
}

func newMockSource(now func() time.Time) *mockSource {
	return &mockSource{start: now(), now: now}
}

func (m *mockSource) Next() (motion.Reading, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	return motion.Reading{
		Gyroscope: motion.Sample{
			X: 2 * math.Sin(elapsed),
			Y: 1.5 * math.Cos(elapsed*0.7),
			Z: 0.5 * math.Sin(elapsed*0.3),
		},
		Accelerometer: motion.Sample{
			X: 0.8 * math.Sin(elapsed*1.3),
			Y: 0.6 * math.Cos(elapsed*0.9),
			Z: imu.StandardGravity,
		},
	}, nil
}
