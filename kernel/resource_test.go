package kernel

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Two tasks on core 0 share R; T1 has the higher priority.
func srpTable() Table {
	return Table{
		Tasks: []TaskDecl{
			{ID: 1, Name: "t1"},
			{ID: 2, Name: "t2"},
			{ID: 8, Name: "low"},
			{ID: 20, Name: "other", Core: 1},
		},
		Resources: []ResourceDecl{
			{ID: 0, Name: "r", Users: []TaskID{1, 2}},
			{ID: 1, Name: "inner", Users: []TaskID{2, 8}},
			{ID: 2, Name: "low", Users: []TaskID{8, 20}},
		},
	}
}

func TestLockRefusedWhileLowerTaskHoldsCeiling(t *testing.T) {
	k := newKernel(t, srpTable())
	_ = k.Activate(2)
	if err := k.Lock(2, 0); err != nil {
		t.Fatalf("T2 Lock(R) error = %v", err)
	}
	if got := k.SystemCeiling(0); got != 1 {
		t.Fatalf("SystemCeiling(0) = %d, want 1", got)
	}

	// T1 is still dispatched: the scheduler ignores ceilings.
	_ = k.Activate(1)
	if got := k.Schedule(0); got != 1 {
		t.Fatalf("Schedule(0) = %d, want 1", got)
	}
	if err := k.Lock(1, 0); !errors.Is(err, ErrCeilingViolation) {
		t.Fatalf("T1 Lock(R) error = %v, want ErrCeilingViolation", err)
	}
	if k.InPanicMode() {
		t.Fatal("ceiling violation was fatal without FatalCeilingViolation")
	}
	if k.Faults() != 1 {
		t.Fatalf("Faults() = %d, want 1", k.Faults())
	}

	if err := k.Unlock(2, 0); err != nil {
		t.Fatalf("T2 Unlock(R) error = %v", err)
	}
	if err := k.Lock(1, 0); err != nil {
		t.Fatalf("T1 Lock(R) after unlock error = %v", err)
	}
	if err := k.Unlock(1, 0); err != nil {
		t.Fatalf("T1 Unlock(R) error = %v", err)
	}
	if got := k.SystemCeiling(0); got != NoCeiling {
		t.Fatalf("SystemCeiling(0) = %d, want NoCeiling", got)
	}
}

func TestFatalCeilingViolation(t *testing.T) {
	k, err := New(srpTable(), Config{FatalCeilingViolation: true})
	if err != nil {
		t.Fatal(err)
	}
	_ = k.Release(bit(1) | bit(2))
	_ = k.Lock(2, 0)
	if err := k.Lock(1, 0); !errors.Is(err, ErrCeilingViolation) {
		t.Fatalf("Lock() error = %v", err)
	}
	if !k.InPanicMode() {
		t.Fatal("kernel is not in panic mode")
	}
}

func TestNestedLocksRestoreCeiling(t *testing.T) {
	k := newKernel(t, srpTable())
	_ = k.Activate(2)

	got := []Priority{k.SystemCeiling(0)}
	if err := k.Lock(2, 1); err != nil {
		t.Fatalf("Lock(inner) error = %v", err)
	}
	got = append(got, k.SystemCeiling(0))
	if err := k.Lock(2, 0); err != nil {
		t.Fatalf("nested Lock(R) error = %v", err)
	}
	got = append(got, k.SystemCeiling(0))

	if diff := cmp.Diff(got, []Priority{NoCeiling, 2, 1}); diff != "" {
		t.Fatalf("ceilings mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff([]ResourceID{1, 0}, k.Holds(2)); diff != "" {
		t.Fatalf("Holds() mismatch (-want +got):\n%s", diff)
	}

	if err := k.Unlock(2, 1); !errors.Is(err, ErrNestingViolation) {
		t.Fatalf("out-of-order Unlock error = %v, want ErrNestingViolation", err)
	}
	if got := k.SystemCeiling(0); got != 1 {
		t.Fatalf("nesting violation changed the ceiling to %d", got)
	}

	_ = k.Unlock(2, 0)
	if got := k.SystemCeiling(0); got != 2 {
		t.Fatalf("SystemCeiling(0) = %d, want 2", got)
	}
	_ = k.Unlock(2, 1)
	if got := k.SystemCeiling(0); got != NoCeiling {
		t.Fatalf("SystemCeiling(0) = %d, want NoCeiling", got)
	}
}

func TestLockErrors(t *testing.T) {
	k := newKernel(t, srpTable())

	if err := k.Lock(2, 0); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Lock by dormant task error = %v, want ErrNotReady", err)
	}
	_ = k.Release(bit(1) | bit(2) | bit(8))
	if err := k.Lock(8, 0); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("Lock by non-user error = %v, want ErrAccessDenied", err)
	}
	_ = k.Lock(2, 0)
	if err := k.Lock(2, 0); !errors.Is(err, ErrNestingViolation) {
		t.Fatalf("recursive Lock error = %v, want ErrNestingViolation", err)
	}
	if err := k.Unlock(1, 0); !errors.Is(err, ErrNestingViolation) {
		t.Fatalf("foreign Unlock error = %v, want ErrNestingViolation", err)
	}
	if err := k.Suspend(2); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("Suspend while holding error = %v, want ErrLockHeld", err)
	}
}

func TestCoreLocalResourceUsedFromBothCores(t *testing.T) {
	k := newKernel(t, srpTable())
	_ = k.Release(bit(8) | bit(20))
	if err := k.Lock(8, 2); err != nil {
		t.Fatalf("Lock(low) on core 0 error = %v", err)
	}
	if err := k.Lock(20, 2); !errors.Is(err, ErrRemoteBusy) {
		t.Fatalf("Lock(low) on core 1 error = %v, want ErrRemoteBusy", err)
	}
	if got := k.SystemCeiling(1); got != NoCeiling {
		t.Fatalf("refused lock left core 1 ceiling at %d", got)
	}
	_ = k.Unlock(8, 2)
	if err := k.Lock(20, 2); err != nil {
		t.Fatalf("Lock(low) on core 1 after release error = %v", err)
	}
}

func TestAcquire(t *testing.T) {
	k := newKernel(t, srpTable())
	_ = k.Activate(1)

	var during Priority
	err := k.Acquire(1, 0, func() error {
		during = k.SystemCeiling(0)
		return nil
	})
	if err != nil || during != 1 {
		t.Fatalf("Acquire() = %v with ceiling %d, want nil with 1", err, during)
	}

	boom := errors.New("boom")
	if err := k.Acquire(1, 0, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Acquire() error = %v, want %v", err, boom)
	}
	if len(k.Holds(1)) != 0 {
		t.Fatal("Acquire() left the resource held")
	}
}

func crossTable() Table {
	return Table{
		Tasks: []TaskDecl{
			{ID: 2, Name: "a", Autostart: true},
			{ID: 3, Name: "b", Core: 1, Autostart: true},
			{ID: 10, Name: "c", Autostart: true},
		},
		Resources: []ResourceDecl{
			{ID: 0, Name: "bus", Users: []TaskID{2, 3, 10}, CrossCoreCeiling: Ceiling(1)},
			{ID: 1, Name: "local", Users: []TaskID{2, 10}},
		},
	}
}

func TestCrossCoreLock(t *testing.T) {
	k := newKernel(t, crossTable())

	if err := k.Lock(2, 0); err != nil {
		t.Fatalf("Lock(bus) on core 0 error = %v", err)
	}
	if got := k.SystemCeiling(0); got != 1 {
		t.Fatalf("SystemCeiling(0) = %d, want cross-core ceiling 1", got)
	}
	if !k.RemoteLocked(0, 0) || k.RemoteLocked(1, 0) {
		t.Fatal("remote-lock flags do not name core 0")
	}

	if err := k.Lock(3, 0); !errors.Is(err, ErrRemoteBusy) {
		t.Fatalf("Lock(bus) on core 1 error = %v, want ErrRemoteBusy", err)
	}
	if got := k.SystemCeiling(1); got != NoCeiling {
		t.Fatalf("failed spin left core 1 ceiling at %d", got)
	}

	if err := k.Unlock(2, 0); err != nil {
		t.Fatalf("Unlock(bus) error = %v", err)
	}
	if err := k.Lock(3, 0); err != nil {
		t.Fatalf("Lock(bus) on core 1 after release error = %v", err)
	}
	if !k.RemoteLocked(1, 0) || k.RemoteLocked(0, 0) {
		t.Fatal("remote-lock flags do not name core 1")
	}
	_ = k.Unlock(3, 0)
	if k.RemoteLocked(1, 0) {
		t.Fatal("remote-lock flag survived the unlock")
	}
}
