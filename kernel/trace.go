package kernel

import "sync/atomic"

// TraceKind tags a trace record.
type TraceKind uint8

const (
	TraceNone TraceKind = iota
	TraceActivate
	TraceSuspend
	TraceDispatch
	TraceWake
	TraceBlock
	TraceTimeout
	TraceExit
	TraceLock
	TraceUnlock
	TraceSignal
	TraceOverflow
	TraceBroadcast
	TraceMigrate
	TraceFault
)

var traceNames = [...]string{
	TraceNone:      "none",
	TraceActivate:  "activate",
	TraceSuspend:   "suspend",
	TraceDispatch:  "dispatch",
	TraceWake:      "wake",
	TraceBlock:     "block",
	TraceTimeout:   "timeout",
	TraceExit:      "exit",
	TraceLock:      "lock",
	TraceUnlock:    "unlock",
	TraceSignal:    "signal",
	TraceOverflow:  "overflow",
	TraceBroadcast: "broadcast",
	TraceMigrate:   "migrate",
	TraceFault:     "fault",
}

func (k TraceKind) String() string {
	if int(k) < len(traceNames) {
		return traceNames[k]
	}
	return "unknown"
}

// TraceRecord is one kernel event. Arg depends on Kind: the previous task for
// dispatch, the resource for lock and unlock, the wait mask for block, wake
// and timeout, the semaphore for signal and overflow, the number of waiters
// for broadcast and the source core for migrate.
type TraceRecord struct {
	Seq  uint64
	Tick uint64
	Core CoreID
	Kind TraceKind
	Task TaskID
	Arg  uint64
}

const traceSize = 256

// traceRing is a lock-free ring of the most recent records. Writers claim a
// sequence number and fill the slot; a slot's seq word is written last, so a
// reader that sees the sequence it expects before and after copying the
// slot got a whole record.
type traceRing struct {
	next  atomic.Uint64
	slots [traceSize]traceSlot
}

type traceSlot struct {
	seq  atomic.Uint64 // Seq+1, 0 while being written
	tick atomic.Uint64
	meta atomic.Uint64 // core | kind<<8 | task<<16
	arg  atomic.Uint64
}

func (r *traceRing) record(k *Kernel, c CoreID, kind TraceKind, task TaskID, arg uint64) {
	seq := r.next.Add(1) - 1
	s := &r.slots[seq%traceSize]
	s.seq.Store(0)
	s.tick.Store(k.ticks.Load())
	s.meta.Store(uint64(c) | uint64(kind)<<8 | uint64(task)<<16)
	s.arg.Store(arg)
	s.seq.Store(seq + 1)
}

// Trace returns up to max of the most recent trace records, oldest first.
// Records overwritten while being read are skipped.
func (k *Kernel) Trace(max int) []TraceRecord {
	r := &k.trace
	end := r.next.Load()
	if max <= 0 || max > traceSize {
		max = traceSize
	}
	start := uint64(0)
	if end > uint64(max) {
		start = end - uint64(max)
	}
	out := make([]TraceRecord, 0, end-start)
	for seq := start; seq < end; seq++ {
		s := &r.slots[seq%traceSize]
		if s.seq.Load() != seq+1 {
			continue
		}
		tick := s.tick.Load()
		meta := s.meta.Load()
		arg := s.arg.Load()
		if s.seq.Load() != seq+1 {
			continue
		}
		out = append(out, TraceRecord{
			Seq:  seq,
			Tick: tick,
			Core: CoreID(meta),
			Kind: TraceKind(meta >> 8),
			Task: TaskID(meta >> 16),
			Arg:  arg,
		})
	}
	return out
}
