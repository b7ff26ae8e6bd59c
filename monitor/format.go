package monitor

import (
	"fmt"
	"strings"

	"bitrt/kernel"
)

// Namer resolves task ids to names. *kernel.Kernel implements it.
type Namer interface {
	TaskName(id kernel.TaskID) string
}

func taskLabel(n Namer, id kernel.TaskID) string {
	if n != nil {
		if name := n.TaskName(id); name != "" {
			return fmt.Sprintf("%d:%s", id, name)
		}
	}
	return fmt.Sprintf("%d", id)
}

func coreLabel(c kernel.CoreID) string {
	if c >= kernel.NumCores {
		return "c-"
	}
	return fmt.Sprintf("c%d", c)
}

// FormatRecord renders one trace record as a single line.
func FormatRecord(n Namer, r kernel.TraceRecord) string {
	head := fmt.Sprintf("%06d %s %-9s", r.Tick, coreLabel(r.Core), r.Kind)
	switch r.Kind {
	case kernel.TraceDispatch:
		return fmt.Sprintf("%s %s (was %s)", head, taskLabel(n, r.Task), taskLabel(n, kernel.TaskID(r.Arg)))
	case kernel.TraceLock, kernel.TraceUnlock:
		return fmt.Sprintf("%s %s r%d", head, taskLabel(n, r.Task), r.Arg)
	case kernel.TraceBlock, kernel.TraceWake, kernel.TraceTimeout:
		return fmt.Sprintf("%s %s mask=%#x", head, taskLabel(n, r.Task), r.Arg)
	case kernel.TraceSignal, kernel.TraceOverflow:
		return fmt.Sprintf("%s sem%d", head, r.Arg)
	case kernel.TraceBroadcast:
		return fmt.Sprintf("%s waiters=%d", head, r.Arg)
	case kernel.TraceMigrate:
		return fmt.Sprintf("%s %s from c%d", head, taskLabel(n, r.Task), r.Arg)
	default:
		return fmt.Sprintf("%s %s", head, taskLabel(n, r.Task))
	}
}

// FormatVector renders a 64-bit vector as 64 characters, bit 0 first, with
// a dot for every clear bit and mark for every set bit.
func FormatVector(w uint64, mark byte) string {
	var b strings.Builder
	b.Grow(kernel.WordWidth)
	for i := 0; i < kernel.WordWidth; i++ {
		if w&(1<<uint(i)) != 0 {
			b.WriteByte(mark)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// FormatCeiling renders a core ceiling, "-" for none.
func FormatCeiling(p kernel.Priority) string {
	if p == kernel.NoCeiling {
		return "-"
	}
	return fmt.Sprintf("%d", p)
}

// Summary renders a snapshot as text lines, one header line plus two lines
// per core.
func Summary(n Namer, s kernel.Snapshot) []string {
	lines := []string{fmt.Sprintf("tick %d  events %#x", s.Tick, s.Events)}
	for i, c := range s.Cores {
		flag := ""
		if c.Deferred {
			flag = " deferred"
		}
		lines = append(lines,
			fmt.Sprintf("core %d run %s ceil %s remote %#x%s", i, taskLabel(n, c.Current), FormatCeiling(c.Ceiling), c.Remote, flag),
			fmt.Sprintf("  ready %#x blocked %#x", c.Ready, c.Blocked),
		)
	}
	return lines
}
