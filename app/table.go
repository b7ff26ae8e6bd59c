package app

import (
	"bitrt/config"
	"bitrt/hal"
)

func intp(v int) *int { return &v }

// DefaultFile is the demo system. A sampler and a consumer share a
// cross-core bus. A button handler feeds a worker through a binary
// semaphore, and a reporter broadcasts to the blinker once a second. A
// watchdog waits for the sampler's heartbeat with a timeout, and a balancer
// moves the sampler between cores.
func DefaultFile() *config.File {
	return &config.File{
		Name:      "demo",
		SpinLimit: 1 << 12,
		Tasks: []config.Task{
			{Name: "button", Priority: 1, Core: 0, Behaviour: "button", Params: map[string]string{"event": "key", "sem": "work"}, Autostart: true},
			{Name: "worker", Priority: 2, Core: 1, Behaviour: "worker", Params: map[string]string{"sem": "work", "resource": "stats"}, Autostart: true},
			{Name: "sampler", Priority: 3, Core: 0, Behaviour: "sampler", Params: map[string]string{"resource": "bus", "sem": "samples", "event": "heartbeat"}, Period: 10},
			{Name: "consumer", Priority: 4, Core: 1, Behaviour: "consumer", Params: map[string]string{"resource": "bus", "sem": "samples"}, Autostart: true},
			{Name: "watchdog", Priority: 5, Core: 1, Behaviour: "watchdog", Params: map[string]string{"event": "heartbeat", "timeout": "100"}, Autostart: true},
			{Name: "blinker", Priority: 6, Core: 0, Behaviour: "blinker", Params: map[string]string{"sem": "done"}, Autostart: true},
			{Name: "balancer", Priority: 7, Core: 1, Behaviour: "balancer", Params: map[string]string{"task": "sampler"}, Period: 2000},
			{Name: "reporter", Priority: 8, Core: 0, Behaviour: "reporter", Params: map[string]string{"resource": "stats", "sem": "done"}, Period: 1000},
		},
		Resources: []config.Resource{
			{Name: "bus", Users: []string{"sampler", "consumer"}, CrossCoreCeiling: intp(3)},
			{Name: "stats", Users: []string{"worker", "reporter"}, CrossCoreCeiling: intp(2)},
		},
		Semaphores: []config.Semaphore{
			{Name: "work", Kind: "binary", Bits: []int{8}},
			{Name: "samples", Kind: "counting", Bits: []int{16, 17, 18, 19}},
			{Name: "done", Kind: "binary", Bits: []int{9}},
		},
		Events: []config.Event{
			{Name: "key", Bit: 0},
			{Name: "heartbeat", Bit: 1},
			{Name: "tick1hz", Bit: 2},
		},
		IRQs: []config.IRQ{
			{Line: 0, Event: "tick1hz"},
			{Line: hal.KeyLineBase + 1, Event: "key"},
			{Line: 2, Event: "key"},
		},
	}
}
