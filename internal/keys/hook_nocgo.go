//go:build !cgo

package keys

import (
	"context"
	"fmt"

	"github.com/relabs-tech/motion_link/internal/motion"
)

type HookSource struct {
	VolumeUp   uint16
	VolumeDown uint16
}

func (h HookSource) Run(ctx context.Context, out chan<- motion.Key) error {
	return fmt.Errorf("keyboard hook needs a cgo build")
}
