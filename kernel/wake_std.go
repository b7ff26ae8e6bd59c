//go:build !tinygo || !baremetal

package kernel

import "context"

// waker parks an idle core goroutine until the next scheduling point.
type waker struct {
	ch chan struct{}
}

func (w *waker) init() { w.ch = make(chan struct{}, 1) }

func (w *waker) notify() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (c *core) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-c.wake.ch:
	}
}
