package kernel

import (
	"errors"
	"fmt"
	"math/bits"
)

func (c *core) ceiling() Priority {
	if i, ok := c.levels.FirstSet(); ok {
		return Priority(i)
	}
	return NoCeiling
}

func (c *core) raise(p Priority) {
	if c.refs[p] == 0 {
		c.levels.Set(uint(p))
	}
	c.refs[p]++
}

func (c *core) lower(p Priority) {
	c.refs[p]--
	if c.refs[p] == 0 {
		c.levels.Clear(uint(p))
	}
}

// othersCeiling is the core's ceiling with t's own held resources taken out.
// A task never refuses itself: nested locks only compete with other tasks.
func (k *Kernel) othersCeiling(c *core, t *tcb) Priority {
	if t.nheld == 0 {
		return c.ceiling()
	}
	var own [WordWidth]uint8
	for i := 0; i < t.nheld; i++ {
		own[k.resources[t.held[i]].lockCeiling()]++
	}
	levels := c.levels.Load()
	forEachBit(levels, func(p uint8) {
		if c.refs[p] == own[p] {
			levels &^= bit(p)
		}
	})
	if levels == 0 {
		return NoCeiling
	}
	return Priority(bits.TrailingZeros64(levels))
}

// Lock acquires a resource for a task under the stack resource policy. The
// task must be a declared user and its priority must be strictly higher than
// the ceiling other tasks hold on its core. On success the core's ceiling
// rises to the resource ceiling. Cross-core resources additionally spin,
// boosted to their cross-core ceiling, until the other core releases them.
func (k *Kernel) Lock(id TaskID, rid ResourceID) error {
	t, err := k.task(id)
	if err != nil {
		return err
	}
	r, err := k.resource(rid)
	if err != nil {
		return err
	}
	if r.users&bit(uint8(id)) == 0 {
		return fmt.Errorf("lock resource %d by task %d: %w", rid, id, ErrAccessDenied)
	}

	c, st := k.lockTask(t)
	if t.state != Ready && t.state != Running {
		c.exit(st)
		return fmt.Errorf("lock resource %d by task %d: %w (%s)", rid, id, ErrNotReady, t.state)
	}
	if t.holds(rid) {
		c.exit(st)
		return fmt.Errorf("lock resource %d by task %d: %w: already held", rid, id, ErrNestingViolation)
	}
	if ceil := k.othersCeiling(c, t); id.Priority() >= ceil {
		cid := c.id
		c.exit(st)
		err := fmt.Errorf("lock resource %d by task %d: %w: priority %d, core %d ceiling %d", rid, id, ErrCeilingViolation, id, cid, ceil)
		k.fault(FaultInfo{Task: id, Core: cid, Err: err}, k.cfg.FatalCeilingViolation)
		return err
	}

	if !r.cross {
		if !r.holder.CompareAndSwap(0, uint32(id)+1) {
			c.exit(st)
			return fmt.Errorf("lock resource %d by task %d: %w (core-local resource)", rid, id, ErrRemoteBusy)
		}
		k.pushLocked(c, t, r)
		c.exit(st)
		return nil
	}

	// Boost to the cross-core ceiling for the duration of the spin, so no
	// local task at or below it can preempt the waiter.
	c.raise(r.crossCeiling)
	t.spinning = true
	cid := c.id
	c.exit(st)

	won := k.shared.acquire(r.id, cid, k.cfg.SpinLimit)

	st = c.enter()
	t.spinning = false
	if !won {
		c.lower(r.crossCeiling)
		c.exit(st)
		return fmt.Errorf("lock resource %d by task %d: %w after %d spins", rid, id, ErrRemoteBusy, k.cfg.SpinLimit)
	}
	r.holder.Store(uint32(id) + 1)
	t.held[t.nheld] = rid
	t.nheld++
	k.trace.record(k, cid, TraceLock, id, uint64(rid))
	c.exit(st)
	return nil
}

func (k *Kernel) pushLocked(c *core, t *tcb, r *rcb) {
	c.raise(r.lockCeiling())
	t.held[t.nheld] = r.id
	t.nheld++
	k.trace.record(k, c.id, TraceLock, t.id, uint64(r.id))
}

// Unlock releases the resource most recently locked by the task and restores
// the core's ceiling to its value before the matching Lock. Releasing
// anything else is a nesting violation; the kernel state is left unchanged.
func (k *Kernel) Unlock(id TaskID, rid ResourceID) error {
	t, err := k.task(id)
	if err != nil {
		return err
	}
	r, err := k.resource(rid)
	if err != nil {
		return err
	}

	c, st := k.lockTask(t)
	if t.nheld == 0 || t.held[t.nheld-1] != rid {
		cid := c.id
		held := t.holds(rid)
		c.exit(st)
		reason := "not held"
		if held {
			reason = "not the most recent lock"
		}
		err := fmt.Errorf("unlock resource %d by task %d: %w: %s", rid, id, ErrNestingViolation, reason)
		k.fault(FaultInfo{Task: id, Core: cid, Err: err}, false)
		return err
	}

	t.nheld--
	c.lower(r.lockCeiling())
	r.holder.Store(0)
	if r.cross {
		k.shared.release(r.id, c.id)
	}
	k.trace.record(k, c.id, TraceUnlock, id, uint64(rid))
	c.requestResched()
	c.exit(st)
	return nil
}

// Acquire locks a resource, runs fn and unlocks it again.
func (k *Kernel) Acquire(id TaskID, rid ResourceID, fn func() error) error {
	if err := k.Lock(id, rid); err != nil {
		return err
	}
	ferr := fn()
	return errors.Join(ferr, k.Unlock(id, rid))
}

// Holds reports the resources a task currently holds, outermost first.
func (k *Kernel) Holds(id TaskID) []ResourceID {
	t, err := k.task(id)
	if err != nil {
		return nil
	}
	c, st := k.lockTask(t)
	defer c.exit(st)
	out := make([]ResourceID, t.nheld)
	copy(out, t.held[:t.nheld])
	return out
}

// localHeld reports the innermost core-local resource t holds.
func (k *Kernel) localHeld(t *tcb) (ResourceID, bool) {
	for i := t.nheld - 1; i >= 0; i-- {
		if !k.resources[t.held[i]].cross {
			return t.held[i], true
		}
	}
	return 0, false
}

// releaseAllLocked unlocks everything t still holds, innermost first, and
// returns how many resources that was.
func (k *Kernel) releaseAllLocked(c *core, t *tcb) int {
	n := t.nheld
	for t.nheld > 0 {
		t.nheld--
		r := &k.resources[t.held[t.nheld]]
		c.lower(r.lockCeiling())
		r.holder.Store(0)
		if r.cross {
			k.shared.release(r.id, c.id)
		}
		k.trace.record(k, c.id, TraceUnlock, t.id, uint64(r.id))
	}
	if n > 0 {
		c.requestResched()
	}
	return n
}

// heldAtJobEnd reports a job that ended without unlocking what it locked.
func (k *Kernel) heldAtJobEnd(id TaskID, cid CoreID, n int) {
	err := fmt.Errorf("task %d ended its job holding %d resource(s): %w", id, n, ErrNestingViolation)
	k.fault(FaultInfo{Task: id, Core: cid, Err: err}, false)
}
