package kernel

import (
	"runtime"
	"sync/atomic"
)

// spinLock guards one core's compound state. It is only ever held for a
// bounded number of instructions and never across a task step.
type spinLock struct {
	atomic.Uint32
}

func (l *spinLock) Lock() {
	// Try to replace 0 with 1. Once we succeed, the lock has been acquired.
	for !l.Uint32.CompareAndSwap(0, 1) {
		spinLoopHint()
	}
}

func (l *spinLock) Unlock() {
	l.Uint32.Store(0)
}

func spinLoopHint() {
	runtime.Gosched()
}
