//go:build tinygo && baremetal

package kernel

import "runtime/interrupt"

type irqState = interrupt.State

func disableIRQ() irqState { return interrupt.Disable() }

func restoreIRQ(st irqState) { interrupt.Restore(st) }
