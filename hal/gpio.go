package hal

import (
	"strings"
	"time"
)

// GPIOPin is a digital input that can drive an interrupt line.
type GPIOPin interface {
	Name() string
	Read() (level bool, err error)
}

// signalPin is a periodic square wave that is high for the first part of
// every period. On host it stands in for the timer and peripheral interrupt
// sources of a board.
type signalPin struct {
	name   string
	period time.Duration
	high   time.Duration

	// clock returns the time since the wave started.
	clock func() time.Duration
}

// newSignalPin returns nil for a blank name. The high time is clamped to
// the period.
func newSignalPin(name string, period, high time.Duration, clock func() time.Duration) GPIOPin {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	if period <= 0 {
		period = time.Second
	}
	high = min(max(high, 0), period)
	if clock == nil {
		t0 := time.Now()
		clock = func() time.Duration { return time.Since(t0) }
	}
	return &signalPin{name: name, period: period, high: high, clock: clock}
}

func (p *signalPin) Name() string { return p.name }

func (p *signalPin) Read() (bool, error) {
	at := p.clock()
	if at < 0 {
		at = -at
	}
	return at%p.period < p.high, nil
}
