package sensors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/motion_link/internal/bridge"
	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/motion"
	"github.com/relabs-tech/motion_link/internal/state"
)

// Line kinds of the serial feed.
const (
	LineAccel  = "accel"
	LineGyro   = "gyro"
	LineVolkey = "volkey"
)

// Line is one parsed feed line. Sample is set for accel and gyro lines,
// Key for volkey lines.
type Line struct {
	Kind   string
	Sample motion.Sample
	Key    motion.Key
}

// ParseLine parses "accel,x,y,z[,ts[,flag]]", "gyro,x,y,z[,...]" or
// "volkey,<code>[,ts]". Kind is case-insensitive.
func ParseLine(s string) (Line, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	kind := strings.ToLower(strings.TrimSpace(parts[0]))

	switch kind {
	case LineAccel, LineGyro:
		if len(parts) < 4 {
			return Line{}, fmt.Errorf("%s line needs 3 axes, got %d fields", kind, len(parts)-1)
		}
		var axes [3]float64
		for i := range axes {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
			if err != nil {
				return Line{}, fmt.Errorf("%s axis %d: %w", kind, i, err)
			}
			axes[i] = v
		}
		return Line{Kind: kind, Sample: motion.Sample{X: axes[0], Y: axes[1], Z: axes[2]}}, nil

	case LineVolkey:
		if len(parts) < 2 {
			return Line{}, fmt.Errorf("volkey line without code")
		}
		code, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return Line{}, fmt.Errorf("volkey code: %w", err)
		}
		k, ok := bridge.KeyForVolkey(code)
		if !ok {
			return Line{}, fmt.Errorf("unknown volume key code %d", code)
		}
		return Line{Kind: kind, Key: k}, nil

	default:
		return Line{}, fmt.Errorf("unknown line kind %q", kind)
	}
}

// LineFeed pushes parsed lines into the cache and the key channel.
type LineFeed struct {
	cache *state.SensorCache
	keys  chan<- motion.Key
	log   zerolog.Logger
}

// NewLineFeed returns a feed writing to cache. keys may be nil, in which
// case volkey lines are dropped.
func NewLineFeed(cache *state.SensorCache, keys chan<- motion.Key) *LineFeed {
	return &LineFeed{cache: cache, keys: keys, log: logger.Component("serial")}
}

// Consume reads lines from r until EOF, a read error or ctx ends. A
// blocked read only returns once the caller closes r.
func (f *LineFeed) Consume(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		line, err := ParseLine(text)
		if err != nil {
			// noisy links produce partial lines
			f.log.Debug().Err(err).Str("line", text).Msg("skipping line")
			continue
		}
		if err := f.apply(ctx, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("serial read: %w", err)
	}
	return nil
}

func (f *LineFeed) apply(ctx context.Context, line Line) error {
	switch line.Kind {
	case LineAccel:
		f.cache.Write(motion.Accelerometer, line.Sample)
	case LineGyro:
		f.cache.Write(motion.Gyroscope, line.Sample)
	case LineVolkey:
		if f.keys == nil {
			return nil
		}
		select {
		case f.keys <- line.Key:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// OpenSerial opens a serial port with 8N1 framing.
func OpenSerial(portName string, baudRate int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	log := logger.Component("serial")
	log.Info().Str("port", portName).Int("baud", baudRate).Msg("serial port opened")
	return port, nil
}
