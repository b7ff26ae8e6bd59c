package kernel

import "fmt"

// Migrate moves a Ready or Dormant task to another core. The task's ready
// bit, its held cross-core resources and their ceiling contributions move
// together inside one critical section that holds both core locks, so the
// bit is never visible in both ready vectors and no ceiling is counted twice
// or dropped. A Dormant task arrives Ready.
//
// The request is rejected with a *MigrationError, and nothing changes, when
// the task is Running, Blocked or spinning for a lock, or holds a resource
// without a cross-core ceiling.
func (k *Kernel) Migrate(id TaskID, dest CoreID) error {
	t, err := k.task(id)
	if err != nil {
		return err
	}
	from := t.coreID()
	if dest >= NumCores {
		return &MigrationError{Task: id, From: from, To: dest, Reason: ErrUnknownCore.Error()}
	}

	// Core locks are always taken in core order.
	var sts [NumCores]irqState
	for i := range k.cores {
		sts[i] = k.cores[i].enter()
	}
	defer func() {
		for i := NumCores - 1; i >= 0; i-- {
			k.cores[i].exit(sts[i])
		}
	}()

	from = t.coreID()
	reject := func(reason string) error {
		return &MigrationError{Task: id, From: from, To: dest, Reason: reason}
	}
	switch {
	case t.spinning:
		return reject("task is spinning for a cross-core resource")
	case t.state == Running, t.state == Blocked, t.state == Migrating:
		return reject("task is " + t.state.String())
	}
	for i := 0; i < t.nheld; i++ {
		r := &k.resources[t.held[i]]
		if !r.cross {
			return reject("holds core-local resource " + resourceLabel(r))
		}
	}

	src := &k.cores[from]
	dst := &k.cores[dest]

	t.state = Migrating
	src.ready.Clear(uint(id))
	for i := 0; i < t.nheld; i++ {
		r := &k.resources[t.held[i]]
		src.lower(r.crossCeiling)
		dst.raise(r.crossCeiling)
		if from != dest {
			k.shared.move(r.id, from, dest)
		}
	}
	t.core.Store(uint32(dest))
	t.state = Ready
	dst.ready.Set(uint(id))

	k.trace.record(k, dest, TraceMigrate, id, uint64(from))
	src.requestResched()
	dst.requestResched()
	return nil
}

func resourceLabel(r *rcb) string {
	if r.name != "" {
		return r.name
	}
	return fmt.Sprintf("%d", r.id)
}
