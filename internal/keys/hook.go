//go:build cgo

package keys

import (
	"context"

	hook "github.com/robotn/gohook"

	"github.com/relabs-tech/motion_link/internal/bridge"
	"github.com/relabs-tech/motion_link/internal/logger"
	"github.com/relabs-tech/motion_link/internal/motion"
)

// HookSource listens to the global keyboard hook and forwards presses of
// the two configured rawcodes.
type HookSource struct {
	VolumeUp   uint16
	VolumeDown uint16
}

// Run blocks until ctx is done. The hook is process global, so only one
// HookSource may run at a time.
func (h HookSource) Run(ctx context.Context, out chan<- motion.Key) error {
	log := logger.Component("keys")
	log.Info().
		Uint16("volume_up", h.VolumeUp).
		Uint16("volume_down", h.VolumeDown).
		Msg("starting keyboard hook")

	events := hook.Start()
	defer hook.End()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			// KeyHold is the raw press; KeyDown only fires for keys that type a character
			if ev.Kind != hook.KeyHold {
				continue
			}
			k, ok := bridge.KeyForRawcode(ev.Rawcode, h.VolumeUp, h.VolumeDown)
			if !ok {
				continue
			}
			select {
			case out <- k:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
