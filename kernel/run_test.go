package kernel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunCrossCoreSignal(t *testing.T) {
	done := make(chan struct{})
	var once sync.Once
	k := newKernel(t, Table{
		Tasks: []TaskDecl{
			{ID: 1, Name: "producer", Period: 1, Entry: func(c *Context) {
				if err := c.Signal(0); err != nil && !errors.Is(err, ErrSemaphoreOverflow) {
					c.Logf("signal: %v", err)
				}
			}},
			{ID: 2, Name: "consumer", Core: 1, Autostart: true, Entry: func(c *Context) {
				if c.WaitSem(0) == nil {
					once.Do(func() { close(done) })
				}
			}},
		},
		Semaphores: []SemDecl{{ID: 0, Kind: Binary, Bits: 1 << 8}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- k.Run(ctx) }()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
wait:
	for {
		select {
		case <-done:
			break wait
		case <-ticker.C:
			k.Tick()
		case <-timeout:
			cancel()
			<-errc
			t.Fatal("consumer never received the signal")
		}
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunStopsOnFatalFault(t *testing.T) {
	k := newKernel(t, Table{Tasks: []TaskDecl{
		{ID: 1, Core: 1, Autostart: true, Entry: func(*Context) { panic("bad step") }},
	}})
	faulted := make(chan FaultInfo, 1)
	k.SetFaultHandler(func(info FaultInfo) { faulted <- info })

	err := k.Run(context.Background())
	if !errors.Is(err, ErrHalted) {
		t.Fatalf("Run() error = %v, want ErrHalted", err)
	}
	info := <-faulted
	if info.Core != 1 || info.Task != 1 {
		t.Fatalf("fault = %+v", info)
	}
}

func TestRunCoreUnknownCore(t *testing.T) {
	k := newKernel(t, Table{})
	if err := k.RunCore(context.Background(), NumCores); !errors.Is(err, ErrUnknownCore) {
		t.Fatalf("RunCore() error = %v, want ErrUnknownCore", err)
	}
}

func TestTraceRecordsKernelEvents(t *testing.T) {
	k := newKernel(t, srpTable())
	_ = k.Activate(2)
	k.Schedule(0)
	_ = k.Lock(2, 0)
	_ = k.Unlock(2, 0)
	_ = k.Suspend(2)

	var kinds []TraceKind
	for _, r := range k.Trace(0) {
		kinds = append(kinds, r.Kind)
	}
	want := []TraceKind{TraceActivate, TraceDispatch, TraceLock, TraceUnlock, TraceSuspend}
	if len(kinds) != len(want) {
		t.Fatalf("trace kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("trace kinds = %v, want %v", kinds, want)
		}
	}

	last := k.Trace(1)
	if len(last) != 1 || last[0].Kind != TraceSuspend || last[0].Task != 2 {
		t.Fatalf("Trace(1) = %+v", last)
	}
}

func TestTraceRingWraps(t *testing.T) {
	k := newKernel(t, Table{Tasks: []TaskDecl{{ID: 1}}})
	for i := 0; i < traceSize+10; i++ {
		_ = k.Activate(1)
		_ = k.Suspend(1)
	}
	recs := k.Trace(0)
	if len(recs) != traceSize {
		t.Fatalf("len(Trace(0)) = %d, want %d", len(recs), traceSize)
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Seq != recs[i-1].Seq+1 {
			t.Fatalf("trace not in sequence at %d: %d after %d", i, recs[i].Seq, recs[i-1].Seq)
		}
	}
}

type syncLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *syncLog) WriteLineString(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	l.mu.Unlock()
}

func TestStartLogsWhyTheKernelStopped(t *testing.T) {
	var log syncLog
	k, err := New(Table{Tasks: []TaskDecl{
		{ID: 1, Autostart: true, Entry: func(*Context) { panic("bad step") }},
	}}, Config{Logger: &log})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	k.runLogged(context.Background())

	log.mu.Lock()
	defer log.mu.Unlock()
	last := ""
	if len(log.lines) > 0 {
		last = log.lines[len(log.lines)-1]
	}
	if !strings.HasPrefix(last, "panic: kernel stopped: ") || !strings.Contains(last, ErrHalted.Error()) {
		t.Fatalf("last log line = %q, want the halt reason", last)
	}
}
