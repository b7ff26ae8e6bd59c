//go:build !tinygo

package hal

import "time"

// hostTime converts the wall-clock time between host frames into 1ms kernel
// ticks, carrying the sub-tick remainder to the next frame.
type hostTime struct {
	ch    chan uint64
	seq   uint64
	now   func() time.Time
	last  time.Time
	carry time.Duration
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024), now: time.Now}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// advance emits the ticks that elapsed since the previous call and returns
// how many that was. The first call emits exactly one tick.
func (t *hostTime) advance() int {
	now := t.now()
	if t.last.IsZero() {
		t.last = now
		t.emit(1)
		return 1
	}
	t.carry += now.Sub(t.last)
	t.last = now
	n := int(t.carry / time.Millisecond)
	t.carry -= time.Duration(n) * time.Millisecond
	t.emit(n)
	return n
}

// emit sends n ticks. A full channel drops the tick but not its number.
func (t *hostTime) emit(n int) {
	for ; n > 0; n-- {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
