//go:build tinygo && baremetal

package hal

import (
	"machine"
	"strconv"
	"sync"
	"time"
)

type tinyGoDisplay struct {
	fb Framebuffer
}

func (d tinyGoDisplay) Framebuffer() Framebuffer { return d.fb }

// tinyGoTime emits one tick per millisecond. Ticks the kernel does not
// collect in time are dropped; the sequence number still advances.
type tinyGoTime struct {
	ch chan uint64
}

func newTinyGoTime() *tinyGoTime {
	t := &tinyGoTime{ch: make(chan uint64, 16)}
	go t.run()
	return t
}

func (t *tinyGoTime) run() {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	var seq uint64
	for range ticker.C {
		seq++
		select {
		case t.ch <- seq:
		default:
		}
	}
}

func (t *tinyGoTime) Ticks() <-chan uint64 { return t.ch }

// uartLogger writes one CRLF-terminated line per call, stamped with the
// milliseconds since boot. Both cores log, so lines are serialized.
type uartLogger struct {
	mu   sync.Mutex
	uart *machine.UART
	t0   time.Time
	buf  []byte
}

func newUARTLogger(uart *machine.UART) *uartLogger {
	return &uartLogger{uart: uart, t0: time.Now(), buf: make([]byte, 0, 128)}
}

func (l *uartLogger) WriteLineString(s string) {
	l.mu.Lock()
	l.buf = append(l.stamp(), s...)
	l.flush()
	l.mu.Unlock()
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	l.buf = append(l.stamp(), b...)
	l.flush()
	l.mu.Unlock()
}

func (l *uartLogger) stamp() []byte {
	b := append(l.buf[:0], '[')
	b = strconv.AppendInt(b, time.Since(l.t0).Milliseconds(), 10)
	return append(b, ']', ' ')
}

func (l *uartLogger) flush() {
	l.buf = append(l.buf, '\r', '\n')
	_, _ = l.uart.Write(l.buf)
}

type pinLED struct {
	pin machine.Pin
}

func (l *pinLED) High() { l.pin.High() }
func (l *pinLED) Low()  { l.pin.Low() }
