// Package app wires the kernel to a HAL: it builds the task table from a
// configuration file, routes interrupt lines to kernel events, drives the
// tick and draws the monitor.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"bitrt/config"
	"bitrt/hal"
	"bitrt/kernel"
	"bitrt/monitor"
)

type system struct {
	h    hal.HAL
	k    *kernel.Kernel
	data *shared
	mon  *monitor.Monitor

	traceLog  bool
	traceNext uint64

	fault      atomic.Pointer[kernel.FaultInfo]
	faultShown bool
}

// Config selects the table the system runs and what it reports.
type Config struct {
	// File is the system description. DefaultFile is used when nil.
	File *config.File

	// Monitor draws the kernel state into the HAL's framebuffer every step.
	Monitor bool

	// TraceLog writes every trace record to the HAL's logger.
	TraceLog bool
}

// New initializes and starts the demo system with the monitor enabled.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, Config{Monitor: true})
}

// NewWithConfig starts the system described by cfg and returns the per-frame
// step function. The step function fails once the kernel has halted.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	s, err := newSystem(h, cfg)
	if err != nil {
		if l := h.Logger(); l != nil {
			l.WriteLineString("bitrt: " + err.Error())
		}
		return func() error { return err }
	}
	s.start(context.Background())
	return s.step
}

// Run starts the demo system and blocks forever (TinyGo/native entrypoint).
func Run(h hal.HAL) {
	s, err := newSystem(h, Config{Monitor: true})
	if err != nil {
		if l := h.Logger(); l != nil {
			l.WriteLineString("bitrt: " + err.Error())
		}
		select {}
	}
	ctx := context.Background()
	go s.tickLoop(ctx)
	go s.refreshLoop(ctx)
	s.k.Start()
}

func newSystem(h hal.HAL, cfg Config) (*system, error) {
	file := cfg.File
	if file == nil {
		file = DefaultFile()
	}

	s := &system{h: h, data: &shared{led: h.LED()}, traceLog: cfg.TraceLog}

	tb, _, err := file.Resolve(s.data.Behaviours())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}
	kcfg := file.KernelConfig()
	kcfg.Logger = h.Logger()
	k, err := kernel.New(tb, kcfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}
	s.k = k
	k.SetFaultHandler(s.onFault)

	if irq := h.Interrupts(); irq != nil {
		for _, q := range file.IRQs {
			err := irq.Handle(q.Line, func(line uint8) { k.DispatchISR(kernel.IRQ(line)) })
			if err != nil {
				return nil, fmt.Errorf("route irq %d to %q: %w", q.Line, q.Event, err)
			}
		}
	}

	if cfg.Monitor {
		if d := h.Display(); d != nil {
			s.mon = monitor.New(k, d.Framebuffer())
		}
	}
	return s, nil
}

// start runs the kernel and the tick driver in the background until ctx is
// done or the kernel halts.
func (s *system) start(ctx context.Context) {
	go s.tickLoop(ctx)
	go func() {
		if err := s.k.Run(ctx); err != nil {
			s.logf("kernel stopped: %v", err)
		}
	}()
}

func (s *system) tickLoop(ctx context.Context) {
	t := s.h.Time()
	if t == nil {
		return
	}
	ch := t.Ticks()
	if ch == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if s.k.InPanicMode() {
				return
			}
			s.k.Tick()
		}
	}
}

// refreshLoop redraws the monitor ten times a second. After a fatal fault it
// draws the fault screen once and stops.
func (s *system) refreshLoop(ctx context.Context) {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.step(); err != nil {
				return
			}
		}
	}
}

// step is called once per host frame.
func (s *system) step() error {
	if info := s.fault.Load(); info != nil {
		if !s.faultShown {
			s.faultShown = true
			s.showFault(*info)
		}
		return fmt.Errorf("task %d on core %d: %w", info.Task, info.Core, kernel.ErrHalted)
	}
	if s.traceLog {
		s.drainTrace()
	}
	if s.mon != nil {
		return s.mon.Render()
	}
	return nil
}

func (s *system) onFault(info kernel.FaultInfo) {
	if !info.Fatal {
		return
	}
	s.fault.Store(&info)
}

func (s *system) drainTrace() {
	for _, r := range s.k.Trace(0) {
		if r.Seq < s.traceNext {
			continue
		}
		s.logf("%s", monitor.FormatRecord(s.k, r))
		s.traceNext = r.Seq + 1
	}
}

func (s *system) logf(format string, args ...any) {
	if l := s.h.Logger(); l != nil {
		l.WriteLineString(fmt.Sprintf(format, args...))
	}
}
