package kernel

import (
	"fmt"
)

// Activate makes a task Ready on its core. Activating a Ready task does
// nothing; activating a Running task makes it run again after its current
// step; a Blocked task stays parked until its wait completes.
func (k *Kernel) Activate(id TaskID) error {
	t, err := k.task(id)
	if err != nil {
		return err
	}
	c, st := k.lockTask(t)
	k.activateLocked(c, t)
	c.exit(st)
	return nil
}

func (k *Kernel) activateLocked(c *core, t *tcb) {
	switch t.state {
	case Dormant:
		t.state = Ready
		c.ready.Set(uint(t.id))
		k.trace.record(k, c.id, TraceActivate, t.id, 0)
	case Running:
		t.reactivate = true
	}
	c.requestResched()
}

// Release activates every task in mask.
func (k *Kernel) Release(mask uint64) error {
	mask &^= bit(uint8(IdleTask))
	var err error
	forEachBit(mask, func(i uint8) {
		if e := k.Activate(TaskID(i)); e != nil && err == nil {
			err = e
		}
	})
	return err
}

// Suspend makes a task Dormant and removes it from every vector. A task that
// holds a core-local resource cannot be suspended; cross-core resources it
// holds are released.
func (k *Kernel) Suspend(id TaskID) error {
	t, err := k.task(id)
	if err != nil {
		return err
	}
	c, st := k.lockTask(t)
	defer c.exit(st)

	if rid, ok := k.localHeld(t); ok {
		return fmt.Errorf("suspend task %d: %w (resource %d)", id, ErrLockHeld, rid)
	}
	k.releaseAllLocked(c, t)
	k.dormantLocked(c, t, TraceSuspend)
	return nil
}

func (k *Kernel) dormantLocked(c *core, t *tcb, kind TraceKind) {
	c.ready.Clear(uint(t.id))
	c.blocked.Clear(uint(t.id))
	t.clearWait()
	t.delivered = 0
	t.reactivate = false
	t.state = Dormant
	k.trace.record(k, c.id, kind, t.id, 0)
	c.requestResched()
}

// PickHighest returns the highest-priority task whose bit is set in the
// core's ready vector. The idle bit is always set, so there is always an
// answer.
func (k *Kernel) PickHighest(cid CoreID) TaskID {
	if cid >= NumCores {
		return IdleTask
	}
	i, ok := k.cores[cid].ready.FirstSet()
	if !ok {
		return IdleTask
	}
	return TaskID(i)
}

// Schedule is a scheduling point for one core. Parked tasks whose wait can
// now complete are made Ready, then the highest ready task becomes the
// core's current task and is returned.
func (k *Kernel) Schedule(cid CoreID) TaskID {
	if cid >= NumCores {
		return IdleTask
	}
	c := &k.cores[cid]
	st := c.enter()
	c.resched.Store(false)
	k.wakeLocked(c)

	prev := TaskID(c.current.Load())
	next := k.PickHighest(cid)
	if c.noPreempt > 0 && next != prev && prev != IdleTask && c.ready.Test(uint(prev)) {
		c.deferred = true
		next = prev
	}
	c.current.Store(uint32(next))
	c.exit(st)

	if next != prev {
		k.trace.record(k, cid, TraceDispatch, next, uint64(prev))
	}
	return next
}

// wakeLocked moves every parked task of c whose wait can complete back to
// the ready vector.
func (k *Kernel) wakeLocked(c *core) {
	pending := k.shared.events.Load()
	forEachBit(c.blocked.Load(), func(i uint8) {
		t := &k.tasks[i]
		if t.waitMask&pending == 0 && t.delivered&t.waitMask == 0 && !t.timedOut {
			return
		}
		c.blocked.Clear(uint(i))
		t.state = Ready
		c.ready.Set(uint(i))
		k.trace.record(k, c.id, TraceWake, t.id, t.waitMask)
	})
}

// DisablePreemption defers scheduling decisions on a core: until the
// matching EnablePreemption the current task keeps the core as long as it is
// ready. Calls nest.
func (k *Kernel) DisablePreemption(cid CoreID) {
	if cid >= NumCores {
		return
	}
	c := &k.cores[cid]
	st := c.enter()
	c.noPreempt++
	c.exit(st)
}

// EnablePreemption undoes one DisablePreemption. When the last one is undone
// and a reschedule was deferred, a scheduling point is requested.
func (k *Kernel) EnablePreemption(cid CoreID) {
	if cid >= NumCores {
		return
	}
	c := &k.cores[cid]
	st := c.enter()
	if c.noPreempt > 0 {
		c.noPreempt--
	}
	if c.noPreempt == 0 && c.deferred {
		c.deferred = false
		c.requestResched()
	}
	c.exit(st)
}

// Tick is called by the timer driver. It advances the tick count, expires
// wait timeouts, re-activates periodic tasks and requests a scheduling point
// on both cores.
func (k *Kernel) Tick() {
	k.ticks.Add(1)

	for i := range k.cores {
		c := &k.cores[i]
		st := c.enter()
		forEachBit(c.blocked.Load(), func(b uint8) {
			t := &k.tasks[b]
			if t.waitTicks == 0 {
				return
			}
			t.waitTicks--
			if t.waitTicks == 0 {
				t.timedOut = true
				k.trace.record(k, c.id, TraceTimeout, t.id, t.waitMask)
			}
		})
		c.exit(st)
	}

	forEachBit(k.periodic, func(i uint8) {
		t := &k.tasks[i]
		c, st := k.lockTask(t)
		t.periodLeft--
		if t.periodLeft == 0 {
			t.periodLeft = t.period
			k.activateLocked(c, t)
		}
		c.exit(st)
	})

	k.requestAll()
}

// runStep runs one step of a task the scheduler picked.
func (k *Kernel) runStep(cid CoreID, id TaskID) {
	t := &k.tasks[id]
	c := &k.cores[cid]

	st := c.enter()
	if t.state != Ready || t.coreID() != cid {
		c.exit(st)
		return
	}
	t.state = Running
	t.yielded = false
	t.reactivate = false
	c.exit(st)

	ctx := Context{k: k, task: id, core: cid}
	k.call(t, &ctx)

	leaked := 0
	st = c.enter()
	if t.state == Running {
		if t.yielded || t.reactivate {
			t.state = Ready
		} else {
			leaked = k.releaseAllLocked(c, t)
			t.clearWait()
			t.state = Dormant
			c.ready.Clear(uint(id))
			k.trace.record(k, cid, TraceExit, id, 0)
		}
		t.reactivate = false
	}
	c.exit(st)

	if leaked > 0 {
		k.heldAtJobEnd(id, cid, leaked)
	}
}

func (k *Kernel) call(t *tcb, ctx *Context) {
	if t.entry == nil {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			k.fault(FaultInfo{Task: t.id, Core: ctx.core, Err: ErrTaskPanic, Value: v}, true)
		}
	}()
	t.entry(ctx)
}

// exitTask ends the current job of a running task. Like Suspend it refuses
// while a core-local resource is held.
func (k *Kernel) exitTask(id TaskID) error {
	t := &k.tasks[id]
	c, st := k.lockTask(t)
	if t.state != Running {
		c.exit(st)
		return nil
	}
	if rid, ok := k.localHeld(t); ok {
		c.exit(st)
		return fmt.Errorf("exit task %d: %w (resource %d)", id, ErrLockHeld, rid)
	}
	leaked := k.releaseAllLocked(c, t)
	k.dormantLocked(c, t, TraceExit)
	cid := c.id
	c.exit(st)

	if leaked > 0 {
		k.heldAtJobEnd(id, cid, leaked)
	}
	return nil
}

func (k *Kernel) yieldTask(id TaskID) {
	t := &k.tasks[id]
	c, st := k.lockTask(t)
	if t.state == Running {
		t.yielded = true
		c.requestResched()
	}
	c.exit(st)
}
