package kernel

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Run dispatches tasks on both cores until ctx is cancelled or a fatal fault
// puts the kernel in panic mode. Each core runs on its own goroutine.
func (k *Kernel) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range k.cores {
		cid := CoreID(i)
		g.Go(func() error { return k.RunCore(ctx, cid) })
	}
	return g.Wait()
}

// RunCore is one core's dispatch loop. At every scheduling point it picks the
// highest ready task and runs one step of it; with only the idle task ready
// it sleeps until a post, an activation, a tick or cancellation.
func (k *Kernel) RunCore(ctx context.Context, cid CoreID) error {
	if cid >= NumCores {
		return fmt.Errorf("run core %d: %w", cid, ErrUnknownCore)
	}
	c := &k.cores[cid]
	for {
		if k.InPanicMode() {
			return fmt.Errorf("core %d: %w", cid, ErrHalted)
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		id := k.Schedule(cid)
		if id != IdleTask {
			k.runStep(cid, id)
			continue
		}

		c.idle(ctx)
	}
}

// Step runs at most one task step on a core and reports the task that was
// dispatched. It is the single-threaded form of RunCore, for drivers that
// interleave the cores themselves.
func (k *Kernel) Step(cid CoreID) TaskID {
	if cid >= NumCores || k.InPanicMode() {
		return IdleTask
	}
	id := k.Schedule(cid)
	if id != IdleTask {
		k.runStep(cid, id)
	}
	return id
}

// Start runs the kernel until a fatal fault. It never returns.
func (k *Kernel) Start() {
	k.runLogged(context.Background())
	select {}
}

// runLogged runs the kernel and leaves the reason it stopped in the log.
func (k *Kernel) runLogged(ctx context.Context) {
	if err := k.Run(ctx); err != nil {
		k.logf("panic: kernel stopped: %v", err)
	}
}
