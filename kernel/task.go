package kernel

import "sync/atomic"

const (
	// NumCores is the number of cooperating execution units.
	NumCores = 2

	// IdleTask is the reserved lowest-priority task. Its bit is set in every
	// core's ready vector for the life of the kernel.
	IdleTask TaskID = WordWidth - 1

	// MaxTasks is the number of declarable tasks (every bit but the idle bit).
	MaxTasks = WordWidth - 1

	// NoCeiling is the system ceiling of a core that holds no resource. It is
	// numerically above every task priority, so it never refuses a lock.
	NoCeiling Priority = WordWidth

	// ExternalCore tags trace records raised outside any task step, such as
	// a semaphore signalled from interrupt context.
	ExternalCore CoreID = NumCores
)

// TaskID is a task's bit position in the ready vectors. It is also its
// priority: a lower value is a higher priority.
type TaskID uint8

// Priority is a task priority or resource ceiling; lower is higher.
type Priority uint8

// CoreID names one of the two execution units.
type CoreID uint8

// Priority returns the task's priority.
func (id TaskID) Priority() Priority { return Priority(id) }

// TaskState is the scheduling state of a task.
type TaskState uint8

const (
	Dormant TaskState = iota
	Ready
	Running
	Blocked
	Migrating
)

func (s TaskState) String() string {
	switch s {
	case Dormant:
		return "dormant"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Migrating:
		return "migrating"
	default:
		return "unknown"
	}
}

// Entry is a task body. It runs to completion once per dispatch; the task
// goes Dormant when it returns unless it yielded, parked in a wait or was
// activated again while running.
type Entry func(*Context)

// StackRegion is the memory reserved for a task's stack on the target.
type StackRegion struct {
	Base uintptr
	Size uint32
}

// tcb is a task control block. Fields other than core are guarded by the
// lock of the core the task currently lives on; core is only written with
// both core locks held.
type tcb struct {
	declared bool
	id       TaskID
	name     string
	home     CoreID
	core     atomic.Uint32
	entry    Entry
	stack    StackRegion
	period   uint32

	state      TaskState
	periodLeft uint32
	yielded    bool
	reactivate bool
	spinning   bool

	held  [MaxResources]ResourceID
	nheld int

	// waiting is set from the first parking wait until the wait completes,
	// so a re-issued wait keeps the remaining tick budget.
	waiting   bool
	waitMask  uint64
	waitTicks uint32
	timedOut  bool
	delivered uint64
}

func (t *tcb) coreID() CoreID { return CoreID(t.core.Load()) }

func (t *tcb) holds(r ResourceID) bool {
	for i := 0; i < t.nheld; i++ {
		if t.held[i] == r {
			return true
		}
	}
	return false
}

func (t *tcb) clearWait() {
	t.waiting = false
	t.waitMask = 0
	t.waitTicks = 0
	t.timedOut = false
}
