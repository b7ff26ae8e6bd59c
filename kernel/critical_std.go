//go:build !tinygo || !baremetal

package kernel

// irqState is the saved interrupt mask. Simulated interrupts on the host
// never take a core lock, so there is nothing to mask.
type irqState struct{}

func disableIRQ() irqState { return irqState{} }

func restoreIRQ(irqState) {}
