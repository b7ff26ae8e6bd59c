package kernel

import (
	"fmt"
	"math/bits"
)

const (
	MaxResources  = WordWidth
	MaxSemaphores = WordWidth
	MaxEvents     = WordWidth
	MaxIRQs       = 32
)

type (
	ResourceID uint8
	SemID      uint8
	EventID    uint8
	IRQ        uint8
)

// TaskDecl declares one task. ID is both the bit position and the priority.
type TaskDecl struct {
	ID    TaskID
	Name  string
	Core  CoreID
	Entry Entry
	Stack StackRegion

	// Period re-activates the task every Period ticks when non-zero.
	Period uint32
	// Autostart makes the task Ready when the kernel is created.
	Autostart bool
}

// ResourceDecl declares a lockable resource and the tasks allowed to lock it.
type ResourceDecl struct {
	ID    ResourceID
	Name  string
	Users []TaskID

	// CrossCoreCeiling makes the resource usable from both cores. A core
	// spinning for it, and the core holding it, run at this ceiling.
	CrossCoreCeiling *Priority
}

// SemKind tags a semaphore's bit reservation.
type SemKind uint8

const (
	Binary SemKind = iota
	Counting
)

func (k SemKind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Counting:
		return "counting"
	default:
		return "unknown"
	}
}

// SemDecl reserves event bits for a semaphore.
type SemDecl struct {
	ID   SemID
	Name string
	Kind SemKind
	Bits uint64
}

// EventDecl names a single event bit.
type EventDecl struct {
	ID   EventID
	Name string
	Bit  uint8
}

// IRQDecl routes an interrupt source to an event.
type IRQDecl struct {
	IRQ   IRQ
	Event EventID
}

// Table is the static configuration consumed once by New.
type Table struct {
	Tasks      []TaskDecl
	Resources  []ResourceDecl
	Semaphores []SemDecl
	Events     []EventDecl
	IRQs       []IRQDecl
}

// Ceiling returns a pointer to p, for ResourceDecl.CrossCoreCeiling literals.
func Ceiling(p Priority) *Priority { return &p }

// Validate checks the table without building a kernel.
func (tb *Table) Validate() error {
	_, err := compile(tb)
	return err
}

// compiled is the validated form of a Table.
type compiled struct {
	tasks     [MaxTasks]bool
	ceilings  [MaxResources]Priority
	resources [MaxResources]bool
	sems      [MaxSemaphores]bool
	events    [MaxEvents]bool
	eventBits [MaxEvents]uint8
}

func compile(tb *Table) (*compiled, error) {
	var c compiled

	if len(tb.Tasks) > MaxTasks {
		return nil, configErrorf("tasks", "%d tasks exceed the %d-bit vector (one bit is reserved for idle)", len(tb.Tasks), WordWidth)
	}
	for _, td := range tb.Tasks {
		item := taskItem(td)
		if td.ID >= IdleTask {
			return nil, configErrorf(item, "priority %d is reserved for the idle task or out of range", td.ID)
		}
		if c.tasks[td.ID] {
			return nil, configErrorf(item, "duplicate priority %d", td.ID)
		}
		if td.Core >= NumCores {
			return nil, configErrorf(item, "core %d out of range", td.Core)
		}
		c.tasks[td.ID] = true
	}

	for _, rd := range tb.Resources {
		item := fmt.Sprintf("resource %d", rd.ID)
		if rd.Name != "" {
			item = fmt.Sprintf("resource %d (%s)", rd.ID, rd.Name)
		}
		if int(rd.ID) >= MaxResources {
			return nil, configErrorf(item, "id out of range")
		}
		if c.resources[rd.ID] {
			return nil, configErrorf(item, "duplicate id")
		}
		if len(rd.Users) == 0 {
			return nil, configErrorf(item, "empty user set")
		}
		ceiling := NoCeiling
		for _, u := range rd.Users {
			if u >= IdleTask || !c.tasks[u] {
				return nil, configErrorf(item, "user %d is not a declared task", u)
			}
			if u.Priority() < ceiling {
				ceiling = u.Priority()
			}
		}
		if rd.CrossCoreCeiling != nil && *rd.CrossCoreCeiling > ceiling {
			return nil, configErrorf(item, "cross-core ceiling %d is below the static ceiling %d", *rd.CrossCoreCeiling, ceiling)
		}
		c.resources[rd.ID] = true
		c.ceilings[rd.ID] = ceiling
	}

	var reserved uint64
	for _, sd := range tb.Semaphores {
		item := fmt.Sprintf("semaphore %d", sd.ID)
		if sd.Name != "" {
			item = fmt.Sprintf("semaphore %d (%s)", sd.ID, sd.Name)
		}
		if int(sd.ID) >= MaxSemaphores {
			return nil, configErrorf(item, "id out of range")
		}
		if c.sems[sd.ID] {
			return nil, configErrorf(item, "duplicate id")
		}
		n := bits.OnesCount64(sd.Bits)
		switch sd.Kind {
		case Binary:
			if n != 1 {
				return nil, configErrorf(item, "binary semaphore needs exactly one bit, got %d", n)
			}
		case Counting:
			if n < 2 {
				return nil, configErrorf(item, "counting semaphore needs at least two bits, got %d", n)
			}
		default:
			return nil, configErrorf(item, "unknown kind %d", sd.Kind)
		}
		if reserved&sd.Bits != 0 {
			return nil, configErrorf(item, "bits %#x overlap another reservation", reserved&sd.Bits)
		}
		reserved |= sd.Bits
		c.sems[sd.ID] = true
	}

	for _, ed := range tb.Events {
		item := fmt.Sprintf("event %d", ed.ID)
		if ed.Name != "" {
			item = fmt.Sprintf("event %d (%s)", ed.ID, ed.Name)
		}
		if int(ed.ID) >= MaxEvents {
			return nil, configErrorf(item, "id out of range")
		}
		if c.events[ed.ID] {
			return nil, configErrorf(item, "duplicate id")
		}
		if ed.Bit >= WordWidth {
			return nil, configErrorf(item, "bit %d out of range", ed.Bit)
		}
		if reserved&bit(ed.Bit) != 0 {
			return nil, configErrorf(item, "bit %d overlaps another reservation", ed.Bit)
		}
		reserved |= bit(ed.Bit)
		c.events[ed.ID] = true
		c.eventBits[ed.ID] = ed.Bit
	}

	var irqs [MaxIRQs]bool
	for _, id := range tb.IRQs {
		item := fmt.Sprintf("irq %d", id.IRQ)
		if int(id.IRQ) >= MaxIRQs {
			return nil, configErrorf(item, "line out of range")
		}
		if irqs[id.IRQ] {
			return nil, configErrorf(item, "routed twice")
		}
		if int(id.Event) >= MaxEvents || !c.events[id.Event] {
			return nil, configErrorf(item, "event %d is not declared", id.Event)
		}
		irqs[id.IRQ] = true
	}

	return &c, nil
}

func taskItem(td TaskDecl) string {
	if td.Name != "" {
		return fmt.Sprintf("task %d (%s)", td.ID, td.Name)
	}
	return fmt.Sprintf("task %d", td.ID)
}
