//go:build tinygo && baremetal

package kernel

import (
	"context"
	"time"
)

// Channel operations are not allowed in interrupt handlers, so on the board
// an idle core polls the resched flag instead.
type waker struct{}

func (w *waker) init() {}

func (w *waker) notify() {}

const idlePoll = 100 * time.Microsecond

func (c *core) idle(ctx context.Context) {
	for !c.resched.Load() && ctx.Err() == nil {
		time.Sleep(idlePoll)
	}
}
