package config

import (
	"fmt"

	"bitrt/kernel"
)

// Names maps the names used in a file to kernel ids.
type Names struct {
	Tasks      map[string]kernel.TaskID
	Resources  map[string]kernel.ResourceID
	Semaphores map[string]kernel.SemID
	Events     map[string]kernel.EventID
}

func (n *Names) Task(name string) (kernel.TaskID, error) {
	id, ok := n.Tasks[name]
	if !ok {
		return 0, fmt.Errorf("task %q: %w", name, ErrUnknownName)
	}
	return id, nil
}

func (n *Names) Resource(name string) (kernel.ResourceID, error) {
	id, ok := n.Resources[name]
	if !ok {
		return 0, fmt.Errorf("resource %q: %w", name, ErrUnknownName)
	}
	return id, nil
}

func (n *Names) Semaphore(name string) (kernel.SemID, error) {
	id, ok := n.Semaphores[name]
	if !ok {
		return 0, fmt.Errorf("semaphore %q: %w", name, ErrUnknownName)
	}
	return id, nil
}

func (n *Names) Event(name string) (kernel.EventID, error) {
	id, ok := n.Events[name]
	if !ok {
		return 0, fmt.Errorf("event %q: %w", name, ErrUnknownName)
	}
	return id, nil
}

// Behaviour builds a task body from its parameters. It resolves the
// resources, semaphores and events it uses through names.
type Behaviour func(names *Names, params map[string]string) (kernel.Entry, error)

// Registry maps behaviour names to their constructors.
type Registry map[string]Behaviour

// Resolve turns the file into a validated kernel table. Tasks without a
// behaviour get no entry. The registry may be nil when no task names one.
func (f *File) Resolve(reg Registry) (kernel.Table, *Names, error) {
	names := &Names{
		Tasks:      make(map[string]kernel.TaskID, len(f.Tasks)),
		Resources:  make(map[string]kernel.ResourceID, len(f.Resources)),
		Semaphores: make(map[string]kernel.SemID, len(f.Semaphores)),
		Events:     make(map[string]kernel.EventID, len(f.Events)),
	}
	var tb kernel.Table

	for i, t := range f.Tasks {
		if t.Name == "" {
			return tb, nil, fmt.Errorf("task #%d: missing name", i)
		}
		if _, dup := names.Tasks[t.Name]; dup {
			return tb, nil, fmt.Errorf("task %q: declared twice", t.Name)
		}
		if t.Priority < 0 || t.Priority >= int(kernel.IdleTask) {
			return tb, nil, fmt.Errorf("task %q: priority %d out of range 0..%d", t.Name, t.Priority, kernel.IdleTask-1)
		}
		if t.Core < 0 || t.Core >= kernel.NumCores {
			return tb, nil, fmt.Errorf("task %q: core %d out of range", t.Name, t.Core)
		}
		names.Tasks[t.Name] = kernel.TaskID(t.Priority)
	}
	for i, r := range f.Resources {
		if _, dup := names.Resources[r.Name]; dup || r.Name == "" {
			return tb, nil, fmt.Errorf("resource #%d %q: missing or duplicate name", i, r.Name)
		}
		names.Resources[r.Name] = kernel.ResourceID(i)
	}
	for i, s := range f.Semaphores {
		if _, dup := names.Semaphores[s.Name]; dup || s.Name == "" {
			return tb, nil, fmt.Errorf("semaphore #%d %q: missing or duplicate name", i, s.Name)
		}
		names.Semaphores[s.Name] = kernel.SemID(i)
	}
	for i, e := range f.Events {
		if _, dup := names.Events[e.Name]; dup || e.Name == "" {
			return tb, nil, fmt.Errorf("event #%d %q: missing or duplicate name", i, e.Name)
		}
		names.Events[e.Name] = kernel.EventID(i)
	}

	for _, t := range f.Tasks {
		td := kernel.TaskDecl{
			ID:        kernel.TaskID(t.Priority),
			Name:      t.Name,
			Core:      kernel.CoreID(t.Core),
			Stack:     kernel.StackRegion{Size: t.StackSize},
			Period:    t.Period,
			Autostart: t.Autostart,
		}
		if t.Behaviour != "" {
			mk, ok := reg[t.Behaviour]
			if !ok {
				return tb, nil, fmt.Errorf("task %q: behaviour %q: %w", t.Name, t.Behaviour, ErrUnknownName)
			}
			entry, err := mk(names, t.Params)
			if err != nil {
				return tb, nil, fmt.Errorf("task %q: behaviour %q: %w", t.Name, t.Behaviour, err)
			}
			td.Entry = entry
		}
		tb.Tasks = append(tb.Tasks, td)
	}

	for i, r := range f.Resources {
		rd := kernel.ResourceDecl{ID: kernel.ResourceID(i), Name: r.Name}
		for _, u := range r.Users {
			id, err := names.Task(u)
			if err != nil {
				return tb, nil, fmt.Errorf("resource %q: %w", r.Name, err)
			}
			rd.Users = append(rd.Users, id)
		}
		if r.CrossCoreCeiling != nil {
			if *r.CrossCoreCeiling < 0 || *r.CrossCoreCeiling >= int(kernel.NoCeiling) {
				return tb, nil, fmt.Errorf("resource %q: cross-core ceiling %d out of range", r.Name, *r.CrossCoreCeiling)
			}
			rd.CrossCoreCeiling = kernel.Ceiling(kernel.Priority(*r.CrossCoreCeiling))
		}
		tb.Resources = append(tb.Resources, rd)
	}

	for i, s := range f.Semaphores {
		sd := kernel.SemDecl{ID: kernel.SemID(i), Name: s.Name}
		switch s.Kind {
		case "binary":
			sd.Kind = kernel.Binary
		case "counting":
			sd.Kind = kernel.Counting
		default:
			return tb, nil, fmt.Errorf("semaphore %q: kind %q is neither binary nor counting", s.Name, s.Kind)
		}
		for _, b := range s.Bits {
			if b < 0 || b >= kernel.WordWidth {
				return tb, nil, fmt.Errorf("semaphore %q: bit %d out of range", s.Name, b)
			}
			sd.Bits |= 1 << uint(b)
		}
		tb.Semaphores = append(tb.Semaphores, sd)
	}

	for i, e := range f.Events {
		tb.Events = append(tb.Events, kernel.EventDecl{ID: kernel.EventID(i), Name: e.Name, Bit: e.Bit})
	}
	for _, q := range f.IRQs {
		id, err := names.Event(q.Event)
		if err != nil {
			return tb, nil, fmt.Errorf("irq %d: %w", q.Line, err)
		}
		tb.IRQs = append(tb.IRQs, kernel.IRQDecl{IRQ: kernel.IRQ(q.Line), Event: id})
	}

	if err := tb.Validate(); err != nil {
		return tb, nil, err
	}
	return tb, names, nil
}
