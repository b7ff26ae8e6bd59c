//go:build !tinygo

package hal

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type hostHAL struct {
	logger *hostLogger
	led    *hostLED
	fb     *hostFramebuffer
	t      *hostTime
	irq    *Controller
}

// Host interrupt sources, one per line from line 0.
func hostSources() []GPIOPin {
	return []GPIOPin{
		newSignalPin("SIG1HZ", time.Second, 500*time.Millisecond, nil),
		newSignalPin("SIG5HZ", 200*time.Millisecond, 100*time.Millisecond, nil),
		newSignalPin("SIGPULSE", time.Second, 50*time.Millisecond, nil),
		newSignalPin("SIGPWM25", 200*time.Millisecond, 50*time.Millisecond, nil),
	}
}

// New returns a host HAL implementation that logs to stderr.
func New() HAL {
	return NewWithLogger(newZapLogger(false))
}

// NewWithLogger returns a host HAL implementation that logs through z.
func NewWithLogger(z *zap.Logger) HAL {
	return newHost(z)
}

func newHost(z *zap.Logger) *hostHAL {
	if z == nil {
		z = zap.NewNop()
	}
	logger := &hostLogger{z: z}
	return &hostHAL{
		logger: logger,
		led:    &hostLED{logger: z},
		fb:     newHostFramebuffer(320, 320),
		t:      newHostTime(),
		irq:    NewController(hostSources()...),
	}
}

func newZapLogger(verbose bool) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.DisableStacktrace = true
	if !verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	z, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return z
}

func (h *hostHAL) Logger() Logger         { return h.logger }
func (h *hostHAL) LED() LED               { return h.led }
func (h *hostHAL) Display() Display       { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time             { return h.t }
func (h *hostHAL) Interrupts() Interrupts { return h.irq }

// poll advances simulated hardware by one host frame.
func (h *hostHAL) poll() {
	h.t.advance()
	h.irq.Poll()
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

// hostLogger adapts zap to the line-oriented Logger.
type hostLogger struct {
	z *zap.Logger
}

// WriteLineString logs kernel panics at error level and faults at warn
// level; everything else is info.
func (l *hostLogger) WriteLineString(s string) {
	switch {
	case strings.HasPrefix(s, "panic:"):
		l.z.Error(s)
	case strings.HasPrefix(s, "fault:"):
		l.z.Warn(s)
	default:
		l.z.Info(s)
	}
}

func (l *hostLogger) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

type hostLED struct {
	mu     sync.Mutex
	on     bool
	logger *zap.Logger
}

func (l *hostLED) High() { l.set(true) }
func (l *hostLED) Low()  { l.set(false) }

// set logs level changes only.
func (l *hostLED) set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on == on {
		return
	}
	l.on = on
	l.logger.Debug("led", zap.Bool("on", on))
}
