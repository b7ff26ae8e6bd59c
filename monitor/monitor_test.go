package monitor

import (
	"strings"
	"testing"

	"bitrt/hal"
	"bitrt/kernel"
)

type memFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newMemFB(w, h int) *memFB { return &memFB{w: w, h: h, buf: make([]byte, w*h*2)} }

func (f *memFB) Width() int              { return f.w }
func (f *memFB) Height() int             { return f.h }
func (f *memFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *memFB) StrideBytes() int        { return f.w * 2 }
func (f *memFB) Buffer() []byte          { return f.buf }
func (f *memFB) Present() error          { f.presents++; return nil }

func (f *memFB) ClearRGB(r, g, b uint8) {
	for i := range f.buf {
		f.buf[i] = 0
	}
}

func (f *memFB) pixel(x, y int) uint16 {
	off := y*f.w*2 + x*2
	return uint16(f.buf[off]) | uint16(f.buf[off+1])<<8
}

func testKernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	k, err := kernel.New(kernel.Table{
		Tasks: []kernel.TaskDecl{
			{ID: 1, Name: "sensor", Autostart: true},
			{ID: 4, Name: "logger", Core: 1},
		},
		Resources: []kernel.ResourceDecl{{ID: 0, Name: "bus", Users: []kernel.TaskID{1, 4}}},
	}, kernel.Config{})
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestRenderDrawsStateAndTrace(t *testing.T) {
	k := testKernel(t)
	fb := newMemFB(320, 240)
	m := New(k, fb)

	k.Schedule(0)
	_ = k.Lock(1, 0)
	if err := m.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if fb.presents != 1 {
		t.Fatalf("presents = %d, want 1", fb.presents)
	}
	if m.Printed() != 2 {
		t.Fatalf("Printed() = %d, want 2 (dispatch, lock)", m.Printed())
	}

	lit := 0
	for y := 0; y < fb.h; y++ {
		for x := 0; x < fb.w; x++ {
			if fb.pixel(x, y) != 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatal("Render() drew nothing")
	}

	// Records already printed are not printed again.
	_ = m.Render()
	if m.Printed() != 2 {
		t.Fatalf("Printed() after second Render = %d, want 2", m.Printed())
	}
	_ = k.Unlock(1, 0)
	_ = m.Render()
	if m.Printed() != 3 {
		t.Fatalf("Printed() = %d, want 3", m.Printed())
	}
}

func TestRenderWithoutFramebuffer(t *testing.T) {
	m := New(testKernel(t), nil)
	if err := m.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func TestFormatRecord(t *testing.T) {
	k := testKernel(t)
	tests := []struct {
		rec  kernel.TraceRecord
		want string
	}{
		{kernel.TraceRecord{Tick: 7, Kind: kernel.TraceDispatch, Task: 1, Arg: uint64(kernel.IdleTask)}, "1:sensor (was 63:idle)"},
		{kernel.TraceRecord{Core: 1, Kind: kernel.TraceLock, Task: 4, Arg: 0}, "c1 lock      4:logger r0"},
		{kernel.TraceRecord{Kind: kernel.TraceBlock, Task: 9, Arg: 0x20}, "9 mask=0x20"},
		{kernel.TraceRecord{Kind: kernel.TraceMigrate, Task: 4, Arg: 0}, "4:logger from c0"},
		{kernel.TraceRecord{Kind: kernel.TraceOverflow, Arg: 3}, "sem3"},
		{kernel.TraceRecord{Core: kernel.ExternalCore, Kind: kernel.TraceSignal, Arg: 2}, "c- signal    sem2"},
	}
	for _, tt := range tests {
		got := FormatRecord(k, tt.rec)
		if !strings.Contains(got, tt.want) {
			t.Fatalf("FormatRecord(%v) = %q, want it to contain %q", tt.rec.Kind, got, tt.want)
		}
	}
}

func TestFormatVectorAndSummary(t *testing.T) {
	v := FormatVector(1|1<<63, 'R')
	if len(v) != 64 || v[0] != 'R' || v[63] != 'R' || strings.Count(v, "R") != 2 {
		t.Fatalf("FormatVector() = %q", v)
	}

	k := testKernel(t)
	lines := Summary(k, k.Snapshot())
	if len(lines) != 1+2*kernel.NumCores {
		t.Fatalf("Summary() = %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "ceil -") || !strings.Contains(lines[1], "63:idle") {
		t.Fatalf("core 0 line = %q", lines[1])
	}
	if FormatCeiling(3) != "3" {
		t.Fatalf("FormatCeiling(3) = %q", FormatCeiling(3))
	}
}
