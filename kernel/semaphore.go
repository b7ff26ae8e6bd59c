package kernel

import (
	"fmt"
	"math/bits"
)

// semaphore is a reservation of event bits. A binary semaphore owns one bit;
// a counting semaphore owns a small fixed set and its count is the number of
// set bits.
type semaphore struct {
	declared bool
	id       SemID
	name     string
	kind     SemKind
	mask     uint64
}

func (k *Kernel) semaphore(id SemID) (*semaphore, error) {
	if int(id) >= MaxSemaphores || !k.sems[id].declared {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSemaphore, id)
	}
	return &k.sems[id], nil
}

// Signal sets the lowest clear bit of the semaphore's reservation. When
// every bit is already set the signal is dropped and ErrSemaphoreOverflow is
// returned; nothing else in the kernel is affected. Its trace record carries
// ExternalCore; signals from a task step go through Context.Signal.
func (k *Kernel) Signal(id SemID) error {
	return k.signal(ExternalCore, id)
}

func (k *Kernel) signal(cid CoreID, id SemID) error {
	s, err := k.semaphore(id)
	if err != nil {
		return err
	}
	b := k.shared.events.SetLowestClear(s.mask)
	if b == 0 {
		k.trace.record(k, cid, TraceOverflow, IdleTask, uint64(id))
		return fmt.Errorf("signal semaphore %d: %w (capacity %d)", id, ErrSemaphoreOverflow, bits.OnesCount64(s.mask))
	}
	k.trace.record(k, cid, TraceSignal, IdleTask, uint64(id))
	k.requestAll()
	return nil
}

// WaitSem consumes one signal of the semaphore, or parks the task and
// returns ErrBlocked when there is none.
func (k *Kernel) WaitSem(task TaskID, id SemID) error {
	return k.WaitSemTimeout(task, id, 0)
}

// WaitSemTimeout is WaitSem with a tick budget; see WaitTimeout.
func (k *Kernel) WaitSemTimeout(task TaskID, id SemID, ticks uint32) error {
	s, err := k.semaphore(id)
	if err != nil {
		return err
	}
	_, err = k.wait(task, s.mask, true, ticks)
	return err
}

// Broadcast wakes every task parked on the semaphore. Each waiter receives
// its own copy of the signal, so no single waiter consumes it for the
// others. It returns the number of tasks notified; with no waiters it is a
// no-op.
func (k *Kernel) Broadcast(id SemID) (int, error) {
	return k.broadcast(ExternalCore, id)
}

func (k *Kernel) broadcast(cid CoreID, id SemID) (int, error) {
	s, err := k.semaphore(id)
	if err != nil {
		return 0, err
	}
	low := s.mask & -s.mask
	n := 0
	for i := range k.cores {
		c := &k.cores[i]
		st := c.enter()
		forEachBit(c.blocked.Load(), func(b uint8) {
			t := &k.tasks[b]
			if t.waitMask&s.mask == 0 {
				return
			}
			t.delivered |= low
			n++
		})
		if n > 0 {
			c.requestResched()
		}
		c.exit(st)
	}
	k.trace.record(k, cid, TraceBroadcast, IdleTask, uint64(n))
	return n, nil
}

// Count returns the number of pending signals of a semaphore.
func (k *Kernel) Count(id SemID) int {
	s, err := k.semaphore(id)
	if err != nil {
		return 0
	}
	return bits.OnesCount64(k.shared.events.Load() & s.mask)
}

// SemMask returns the bits reserved by a semaphore.
func (k *Kernel) SemMask(id SemID) uint64 {
	s, err := k.semaphore(id)
	if err != nil {
		return 0
	}
	return s.mask
}
