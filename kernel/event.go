package kernel

import "fmt"

// Post records an occurrence of an event bit and requests a scheduling point
// on both cores. It is safe to call from interrupt context and cannot fail:
// posting is a monotone set, so two posts before the next scheduling point
// are never lost, and an out-of-range bit is ignored.
func (k *Kernel) Post(b uint8) {
	if b >= WordWidth {
		return
	}
	k.shared.events.Set(uint(b))
	k.requestAll()
}

// PostMask posts every bit of mask at once.
func (k *Kernel) PostMask(mask uint64) {
	if mask == 0 {
		return
	}
	k.shared.events.Or(mask)
	k.requestAll()
}

// PostEvent posts a declared event. Undeclared events are ignored.
func (k *Kernel) PostEvent(id EventID) {
	if int(id) >= MaxEvents || !k.events[id].declared {
		return
	}
	k.Post(k.events[id].bit)
}

// EventMask returns the one-bit wait mask of a declared event.
func (k *Kernel) EventMask(id EventID) uint64 {
	if int(id) >= MaxEvents || !k.events[id].declared {
		return 0
	}
	return bit(k.events[id].bit)
}

// Pending returns the event bits posted and not yet consumed.
func (k *Kernel) Pending() uint64 { return k.shared.events.Load() }

// DispatchISR is called by the interrupt controller for an interrupt source.
// It posts the event routed to the source, if any, and marks the return from
// the handler as a scheduling point.
func (k *Kernel) DispatchISR(irq IRQ) {
	if int(irq) < MaxIRQs && k.irqs[irq].declared {
		k.shared.events.Set(uint(k.irqs[irq].bit))
	}
	k.requestAll()
}

// Wait consumes the bits of mask that are pending and returns them. If none
// are pending the task is parked and ErrBlocked is returned; the task becomes
// Ready again at the first scheduling point after a post that intersects
// mask and should then wait again.
func (k *Kernel) Wait(id TaskID, mask uint64) (uint64, error) {
	return k.wait(id, mask, false, 0)
}

// WaitTimeout is Wait with a tick budget. When the budget runs out while the
// task is parked it is woken and its next wait returns ErrWaitTimeout.
// A zero budget waits forever. Waiting again after a wake that found nothing
// continues with what is left of the first budget.
func (k *Kernel) WaitTimeout(id TaskID, mask uint64, ticks uint32) (uint64, error) {
	return k.wait(id, mask, false, ticks)
}

func (k *Kernel) wait(id TaskID, mask uint64, one bool, ticks uint32) (uint64, error) {
	t, err := k.task(id)
	if err != nil {
		return 0, err
	}
	if mask == 0 {
		return 0, fmt.Errorf("wait task %d: %w", id, ErrEmptyMask)
	}

	c, st := k.lockTask(t)
	defer c.exit(st)

	if t.state == Dormant || t.state == Migrating {
		return 0, fmt.Errorf("wait task %d: %w (%s)", id, ErrNotReady, t.state)
	}
	if t.timedOut {
		k.unparkLocked(c, t)
		t.clearWait()
		return 0, ErrWaitTimeout
	}

	got := t.delivered & mask
	if got != 0 {
		if one {
			got &= -got
		}
		t.delivered &^= got
	} else if one {
		got = k.shared.events.TakeLowest(mask)
	} else {
		got = k.shared.events.Take(mask)
	}
	if got != 0 {
		k.unparkLocked(c, t)
		t.clearWait()
		return got, nil
	}

	t.waitMask = mask
	if !t.waiting {
		t.waiting = true
		t.waitTicks = ticks
	}
	if t.state != Blocked {
		t.state = Blocked
		c.ready.Clear(uint(id))
		c.blocked.Set(uint(id))
		k.trace.record(k, c.id, TraceBlock, id, mask)
	}
	return 0, ErrBlocked
}

// unparkLocked returns a task that completed its wait without passing
// through a scheduling point to the ready vector.
func (k *Kernel) unparkLocked(c *core, t *tcb) {
	if t.state != Blocked {
		return
	}
	c.blocked.Clear(uint(t.id))
	c.ready.Set(uint(t.id))
	t.state = Ready
}
