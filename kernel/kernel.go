package kernel

import (
	"fmt"
	"sync/atomic"
)

const defaultSpinLimit = 1 << 16

// Logger receives one line per kernel diagnostic. hal.Logger satisfies it.
type Logger interface {
	WriteLineString(s string)
}

// Config holds runtime knobs that are not part of the static table.
type Config struct {
	Logger Logger

	// SpinLimit bounds the cross-core lock spin, in attempts.
	SpinLimit int

	// FatalCeilingViolation turns a refused lock into a kernel fault that
	// stops dispatching, instead of an error returned to the task.
	FatalCeilingViolation bool
}

// core is the per-execution-unit scheduling state.
type core struct {
	id CoreID
	mu spinLock

	ready   Vector
	blocked Vector
	current atomic.Uint32
	resched atomic.Bool
	wake    waker

	// levels has bit c set while some held resource contributes ceiling c;
	// refs counts the contributions per level.
	levels Vector
	refs   [WordWidth]uint8

	noPreempt int
	deferred  bool
}

func (c *core) enter() irqState {
	st := disableIRQ()
	c.mu.Lock()
	return st
}

func (c *core) exit(st irqState) {
	c.mu.Unlock()
	restoreIRQ(st)
}

// requestResched marks a scheduling point. It never blocks and is safe in
// interrupt context.
func (c *core) requestResched() {
	c.resched.Store(true)
	c.wake.notify()
}

type rcb struct {
	declared     bool
	id           ResourceID
	name         string
	users        uint64
	ceiling      Priority
	cross        bool
	crossCeiling Priority
	holder       atomic.Uint32 // TaskID+1, 0 when free
}

// lockCeiling is the level a held resource contributes to its core.
func (r *rcb) lockCeiling() Priority {
	if r.cross {
		return r.crossCeiling
	}
	return r.ceiling
}

// Kernel is the whole kernel context: both cores' vectors, the resource and
// semaphore tables and the shared cross-core region. It is created once from
// the static table and passed by reference to every operation.
type Kernel struct {
	cfg Config

	tasks     [MaxTasks]tcb
	cores     [NumCores]core
	resources [MaxResources]rcb
	sems      [MaxSemaphores]semaphore
	events    [MaxEvents]eventSlot
	irqs      [MaxIRQs]eventSlot
	periodic  uint64

	shared sharedRegion
	ticks  atomic.Uint64
	trace  traceRing
	faults faultState
}

type eventSlot struct {
	declared bool
	name     string
	bit      uint8
}

// New validates the static table and builds a kernel from it.
func New(tb Table, cfg Config) (*Kernel, error) {
	c, err := compile(&tb)
	if err != nil {
		return nil, err
	}
	if cfg.SpinLimit <= 0 {
		cfg.SpinLimit = defaultSpinLimit
	}

	k := &Kernel{cfg: cfg}
	for i := range k.cores {
		cr := &k.cores[i]
		cr.id = CoreID(i)
		cr.wake.init()
		cr.ready.Set(uint(IdleTask))
		cr.current.Store(uint32(IdleTask))
	}

	for _, td := range tb.Tasks {
		t := &k.tasks[td.ID]
		t.declared = true
		t.id = td.ID
		t.name = td.Name
		t.home = td.Core
		t.core.Store(uint32(td.Core))
		t.entry = td.Entry
		t.stack = td.Stack
		t.period = td.Period
		t.periodLeft = td.Period
		if td.Period > 0 {
			k.periodic |= bit(uint8(td.ID))
		}
		if td.Autostart {
			t.state = Ready
			k.cores[td.Core].ready.Set(uint(td.ID))
		}
	}

	for _, rd := range tb.Resources {
		r := &k.resources[rd.ID]
		r.declared = true
		r.id = rd.ID
		r.name = rd.Name
		r.ceiling = c.ceilings[rd.ID]
		for _, u := range rd.Users {
			r.users |= bit(uint8(u))
		}
		if rd.CrossCoreCeiling != nil {
			r.cross = true
			r.crossCeiling = *rd.CrossCoreCeiling
		}
	}

	for _, sd := range tb.Semaphores {
		k.sems[sd.ID] = semaphore{declared: true, id: sd.ID, name: sd.Name, kind: sd.Kind, mask: sd.Bits}
	}
	for _, ed := range tb.Events {
		k.events[ed.ID] = eventSlot{declared: true, name: ed.Name, bit: ed.Bit}
	}
	for _, id := range tb.IRQs {
		k.irqs[id.IRQ] = k.events[id.Event]
	}

	return k, nil
}

func (k *Kernel) task(id TaskID) (*tcb, error) {
	if id >= IdleTask || !k.tasks[id].declared {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTask, id)
	}
	return &k.tasks[id], nil
}

func (k *Kernel) resource(id ResourceID) (*rcb, error) {
	if int(id) >= MaxResources || !k.resources[id].declared {
		return nil, fmt.Errorf("%w: %d", ErrUnknownResource, id)
	}
	return &k.resources[id], nil
}

// lockTask locks the core that currently owns t. The task cannot change
// cores while the lock is held.
func (k *Kernel) lockTask(t *tcb) (*core, irqState) {
	for {
		c := &k.cores[t.coreID()]
		st := c.enter()
		if t.coreID() == c.id {
			return c, st
		}
		c.exit(st)
	}
}

func (k *Kernel) requestAll() {
	for i := range k.cores {
		k.cores[i].requestResched()
	}
}

func (k *Kernel) logf(format string, args ...any) {
	if k.cfg.Logger == nil {
		return
	}
	k.cfg.Logger.WriteLineString(fmt.Sprintf(format, args...))
}

// Ticks returns the number of Tick calls so far.
func (k *Kernel) Ticks() uint64 { return k.ticks.Load() }

// TaskName returns the declared name of a task, or "" if it has none.
func (k *Kernel) TaskName(id TaskID) string {
	if id == IdleTask {
		return "idle"
	}
	if id >= IdleTask {
		return ""
	}
	return k.tasks[id].name
}

// TaskState returns a task's state and the core it lives on.
func (k *Kernel) TaskState(id TaskID) (TaskState, CoreID, error) {
	t, err := k.task(id)
	if err != nil {
		return Dormant, 0, err
	}
	c, st := k.lockTask(t)
	defer c.exit(st)
	return t.state, c.id, nil
}

// ResourceCeiling returns the static ceiling computed for a resource.
func (k *Kernel) ResourceCeiling(id ResourceID) (Priority, error) {
	r, err := k.resource(id)
	if err != nil {
		return NoCeiling, err
	}
	return r.ceiling, nil
}

// SystemCeiling returns the current ceiling of a core, or NoCeiling when the
// core holds no resource.
func (k *Kernel) SystemCeiling(cid CoreID) Priority {
	if cid >= NumCores {
		return NoCeiling
	}
	return k.cores[cid].ceiling()
}

// CoreSnapshot is a consistent view of one core.
type CoreSnapshot struct {
	Ready    uint64
	Blocked  uint64
	Ceiling  Priority
	Current  TaskID
	Remote   uint64
	Deferred bool
}

// Snapshot is a view of the whole kernel. Each core is captured under its
// own lock; the cores are not captured at the same instant.
type Snapshot struct {
	Tick   uint64
	Events uint64
	Cores  [NumCores]CoreSnapshot
}

// Snapshot captures the kernel state for monitors and tests.
func (k *Kernel) Snapshot() Snapshot {
	s := Snapshot{Tick: k.ticks.Load(), Events: k.shared.events.Load()}
	for i := range k.cores {
		c := &k.cores[i]
		st := c.enter()
		s.Cores[i] = CoreSnapshot{
			Ready:    c.ready.Load(),
			Blocked:  c.blocked.Load(),
			Ceiling:  c.ceiling(),
			Current:  TaskID(c.current.Load()),
			Remote:   k.shared.remote[i].Load(),
			Deferred: c.deferred,
		}
		c.exit(st)
	}
	return s
}
