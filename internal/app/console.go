package app

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/relabs-tech/motion_link/internal/bridge"
	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/motion"
)

// ConsoleCommand is one parsed stdin trigger line.
type ConsoleCommand struct {
	Action motion.Action // on-screen trigger
	Key    motion.Key    // simulated hardware key
	Quit   bool
}

// ParseConsoleLine maps c, d, u, v and q to their commands.
func ParseConsoleLine(line string) (ConsoleCommand, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "c":
		return ConsoleCommand{Action: motion.CameraLock}, true
	case "d":
		return ConsoleCommand{Action: motion.Deflect}, true
	case "u":
		return ConsoleCommand{Key: motion.KeyVolumeUp}, true
	case "v":
		return ConsoleCommand{Key: motion.KeyVolumeDown}, true
	case "q":
		return ConsoleCommand{Quit: true}, true
	default:
		return ConsoleCommand{}, false
	}
}

// RunConsole reads trigger lines from r and feeds them to b. quit is
// called on "q". Returns at EOF; a blocked read only ends with r.
func RunConsole(ctx context.Context, r io.Reader, b *bridge.Bridge, quit func()) error {
	log := logger.Component("console")
	log.Info().Msg("console triggers: c=Camera lock d=Deflect u=Volume up v=Volume down q=quit")

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd, ok := ParseConsoleLine(scanner.Text())
		if !ok {
			log.Warn().Str("input", scanner.Text()).Msg("unknown console trigger")
			continue
		}
		now := time.Now()
		switch {
		case cmd.Quit:
			quit()
			return nil
		case cmd.Key != "":
			b.Press(cmd.Key, now)
		default:
			b.Trigger(cmd.Action, now)
		}
	}
	return scanner.Err()
}
