package kernel

import (
	"sync"
	"sync/atomic"
)

// FaultInfo describes a kernel fault: a task panic, a refused lock or a
// nesting violation.
type FaultInfo struct {
	Task  TaskID
	Core  CoreID
	Err   error
	Value any
	Stack []byte

	// Fatal faults stop dispatching on both cores.
	Fatal bool
}

type faultState struct {
	active  atomic.Bool
	once    sync.Once
	handler atomic.Value // func(FaultInfo)
	count   atomic.Uint32
}

// InPanicMode reports whether a fatal fault stopped the kernel.
func (k *Kernel) InPanicMode() bool {
	return k.faults.active.Load()
}

// Faults returns the number of faults reported so far, fatal or not.
func (k *Kernel) Faults() uint32 { return k.faults.count.Load() }

// SetFaultHandler installs the kernel's fault handler.
//
// Non-fatal faults reach the handler every time. A fatal fault reaches it at
// most once, from the core that raised it, after dispatching has stopped;
// the handler may block forever. It must not panic.
func (k *Kernel) SetFaultHandler(fn func(FaultInfo)) {
	k.faults.handler.Store(fn)
}

func (k *Kernel) fault(info FaultInfo, fatal bool) {
	k.faults.count.Add(1)
	info.Fatal = fatal
	k.trace.record(k, info.Core, TraceFault, info.Task, 0)

	if !fatal {
		k.logf("fault: task=%d core=%d err=%v", info.Task, info.Core, info.Err)
		k.callFaultHandler(info)
		return
	}

	k.faults.once.Do(func() {
		k.faults.active.Store(true)
		info.Stack = captureStack()
		k.logf("panic: task=%d core=%d err=%v value=%v", info.Task, info.Core, info.Err, info.Value)
		k.requestAll()
		k.callFaultHandler(info)
	})
}

func (k *Kernel) callFaultHandler(info FaultInfo) {
	if v := k.faults.handler.Load(); v != nil {
		if fn, ok := v.(func(FaultInfo)); ok && fn != nil {
			fn(info)
		}
	}
}
