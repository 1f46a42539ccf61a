package motion

// Sample is one three-axis reading from a motion sensor.
// Gyroscope samples are in rad/s, accelerometer samples in m/s².
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Channel identifies a sensor stream.
type Channel string

const (
	Gyroscope     Channel = "gyroscope"
	Accelerometer Channel = "accelerometer"
)

// Reading is one poll of a sensor driver that produces both channels.
type Reading struct {
	Gyroscope     Sample
	Accelerometer Sample
}

// Envelope is the payload sent to the listener once per tick.
type Envelope struct {
	Gyroscope     Sample `json:"gyroscope"`
	Accelerometer Sample `json:"accelerometer"`
	SpecialAction string `json:"special_action"`
	Delay         int64  `json:"delay"` // last known round-trip latency, ms
}
