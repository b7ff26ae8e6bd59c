package kernel

import (
	"errors"
	"testing"
)

func TestCountingSemaphoreOverflowAndDrain(t *testing.T) {
	k := newKernel(t, Table{
		Tasks:      []TaskDecl{{ID: 3, Autostart: true}},
		Semaphores: []SemDecl{{ID: 0, Name: "slots", Kind: Counting, Bits: 0b111 << 20}},
	})

	for i := 0; i < 3; i++ {
		if err := k.Signal(0); err != nil {
			t.Fatalf("Signal() #%d error = %v", i+1, err)
		}
	}
	if err := k.Signal(0); !errors.Is(err, ErrSemaphoreOverflow) {
		t.Fatalf("fourth Signal() error = %v, want ErrSemaphoreOverflow", err)
	}
	if got := k.Count(0); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}

	for i := 0; i < 3; i++ {
		if err := k.WaitSem(3, 0); err != nil {
			t.Fatalf("WaitSem() #%d error = %v", i+1, err)
		}
	}
	if err := k.WaitSem(3, 0); !errors.Is(err, ErrBlocked) {
		t.Fatalf("fourth WaitSem() error = %v, want ErrBlocked", err)
	}
	mustState(t, k, 3, Blocked, 0)
	if k.Pending() != 0 {
		t.Fatalf("Pending() = %#x, want 0", k.Pending())
	}
}

func TestBinarySemaphoreResignal(t *testing.T) {
	k := newKernel(t, Table{Semaphores: []SemDecl{{ID: 4, Kind: Binary, Bits: 1 << 30}}})
	if err := k.Signal(4); err != nil {
		t.Fatal(err)
	}
	if err := k.Signal(4); !errors.Is(err, ErrSemaphoreOverflow) {
		t.Fatalf("re-signal error = %v, want ErrSemaphoreOverflow", err)
	}
	if k.SemMask(4) != 1<<30 || k.Count(4) != 1 {
		t.Fatalf("SemMask() = %#x Count() = %d", k.SemMask(4), k.Count(4))
	}
}

func TestSignalWakesWaiterOnOtherCore(t *testing.T) {
	var woke bool
	k := newKernel(t, Table{
		Tasks: []TaskDecl{
			{ID: 1, Core: 1, Autostart: true, Entry: func(c *Context) {
				woke = c.WaitSem(0) == nil
			}},
			{ID: 2, Entry: func(c *Context) { _ = c.Signal(0) }},
		},
		Semaphores: []SemDecl{{ID: 0, Kind: Binary, Bits: 1}},
	})
	k.Step(1)
	_ = k.Activate(2)
	k.Step(0)
	k.Step(1)
	if !woke {
		t.Fatal("waiter on core 1 did not receive the signal")
	}
}

func TestBroadcast(t *testing.T) {
	got := map[TaskID]error{}
	wait := func(c *Context) { got[c.TaskID()] = c.WaitSem(0) }
	k := newKernel(t, Table{
		Tasks: []TaskDecl{
			{ID: 1, Autostart: true, Entry: wait},
			{ID: 2, Core: 1, Autostart: true, Entry: wait},
			{ID: 3, Autostart: true},
		},
		Semaphores: []SemDecl{{ID: 0, Kind: Binary, Bits: 1 << 2}},
	})

	if n, err := k.Broadcast(0); err != nil || n != 0 {
		t.Fatalf("Broadcast() with no waiters = %d, %v", n, err)
	}
	if k.Count(0) != 0 {
		t.Fatal("Broadcast() with no waiters left a signal behind")
	}

	k.Step(0)
	k.Step(1)
	if n, err := k.Broadcast(0); err != nil || n != 2 {
		t.Fatalf("Broadcast() = %d, %v, want 2", n, err)
	}
	k.Step(0)
	k.Step(1)
	if got[1] != nil || got[2] != nil {
		t.Fatalf("waiters after Broadcast() = %v", got)
	}
	if k.Count(0) != 0 {
		t.Fatalf("Count() = %d after broadcast, want 0", k.Count(0))
	}
	// The task that never waited has nothing delivered.
	if err := k.WaitSem(3, 0); !errors.Is(err, ErrBlocked) {
		t.Fatalf("WaitSem() by non-waiter error = %v, want ErrBlocked", err)
	}
}

func TestSignalTraceCarriesCallerCore(t *testing.T) {
	k := newKernel(t, Table{
		Tasks: []TaskDecl{
			{ID: 4, Core: 1, Autostart: true, Entry: func(c *Context) {
				_ = c.Signal(0)
				_, _ = c.Broadcast(0)
			}},
		},
		Semaphores: []SemDecl{{ID: 0, Kind: Counting, Bits: 0b11 << 8}},
	})
	_ = k.Signal(0)
	k.Step(1)

	var cores []CoreID
	for _, r := range k.Trace(0) {
		if r.Kind == TraceSignal || r.Kind == TraceBroadcast {
			cores = append(cores, r.Core)
		}
	}
	want := []CoreID{ExternalCore, 1, 1}
	if len(cores) != len(want) {
		t.Fatalf("signal/broadcast record cores = %v, want %v", cores, want)
	}
	for i := range want {
		if cores[i] != want[i] {
			t.Fatalf("signal/broadcast record cores = %v, want %v", cores, want)
		}
	}
}
