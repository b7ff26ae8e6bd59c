package kernel

import "fmt"

// Context provides task-local access to kernel operations. It is only valid
// during the step it was passed to.
type Context struct {
	k    *Kernel
	task TaskID
	core CoreID
}

// TaskID returns the current task ID.
func (c *Context) TaskID() TaskID { return c.task }

// Core returns the core the step runs on.
func (c *Context) Core() CoreID { return c.core }

// Kernel returns the kernel running the task.
func (c *Context) Kernel() *Kernel { return c.k }

// Ticks returns the current tick count.
func (c *Context) Ticks() uint64 { return c.k.Ticks() }

func (c *Context) Lock(r ResourceID) error { return c.k.Lock(c.task, r) }

func (c *Context) Unlock(r ResourceID) error { return c.k.Unlock(c.task, r) }

// Acquire runs fn with r locked.
func (c *Context) Acquire(r ResourceID, fn func() error) error {
	return c.k.Acquire(c.task, r, fn)
}

// Wait consumes pending bits of mask; see Kernel.Wait.
func (c *Context) Wait(mask uint64) (uint64, error) { return c.k.Wait(c.task, mask) }

func (c *Context) WaitTimeout(mask uint64, ticks uint32) (uint64, error) {
	return c.k.WaitTimeout(c.task, mask, ticks)
}

// WaitEvent waits for a declared event.
func (c *Context) WaitEvent(id EventID) error {
	_, err := c.k.Wait(c.task, c.k.EventMask(id))
	return err
}

func (c *Context) WaitSem(s SemID) error { return c.k.WaitSem(c.task, s) }

func (c *Context) WaitSemTimeout(s SemID, ticks uint32) error {
	return c.k.WaitSemTimeout(c.task, s, ticks)
}

func (c *Context) Signal(s SemID) error { return c.k.signal(c.core, s) }

func (c *Context) Broadcast(s SemID) (int, error) { return c.k.broadcast(c.core, s) }

func (c *Context) Post(b uint8) { c.k.Post(b) }

func (c *Context) PostEvent(id EventID) { c.k.PostEvent(id) }

// Activate makes another task Ready.
func (c *Context) Activate(id TaskID) error { return c.k.Activate(id) }

// Yield keeps the task Ready after the current step returns, so it runs
// again once nothing of higher priority is ready.
func (c *Context) Yield() { c.k.yieldTask(c.task) }

// Exit ends the task's current job: it becomes Dormant immediately, even if
// it was activated again during the step. It returns ErrLockHeld, and the
// job goes on, while the task holds a core-local resource.
func (c *Context) Exit() error { return c.k.exitTask(c.task) }

// DisablePreemption defers rescheduling of the task's core; see
// Kernel.DisablePreemption.
func (c *Context) DisablePreemption() { c.k.DisablePreemption(c.core) }

func (c *Context) EnablePreemption() { c.k.EnablePreemption(c.core) }

// Logf writes a diagnostic line tagged with the task and core.
func (c *Context) Logf(format string, args ...any) {
	c.k.logf("task %d core %d: %s", c.task, c.core, fmt.Sprintf(format, args...))
}
