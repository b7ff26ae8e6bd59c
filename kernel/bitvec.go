package kernel

import (
	"math/bits"
	"sync/atomic"
)

// WordWidth is the number of positions in a Vector.
const WordWidth = 64

// Vector is a fixed-width boolean vector. Every operation is a single atomic
// load, store or compare-and-swap loop over one word, so a Vector may be
// shared between cores and interrupt handlers without a lock.
type Vector struct {
	w atomic.Uint64
}

// Set sets bit i and reports whether it was already set.
func (v *Vector) Set(i uint) bool {
	m := uint64(1) << (i & (WordWidth - 1))
	return v.or(m)&m != 0
}

// Clear clears bit i and reports whether it was set.
func (v *Vector) Clear(i uint) bool {
	m := uint64(1) << (i & (WordWidth - 1))
	return v.and(^m)&m != 0
}

// Test reports whether bit i is set.
func (v *Vector) Test(i uint) bool {
	return v.w.Load()&(uint64(1)<<(i&(WordWidth-1))) != 0
}

// Load returns the whole word.
func (v *Vector) Load() uint64 { return v.w.Load() }

// Store replaces the whole word.
func (v *Vector) Store(w uint64) { v.w.Store(w) }

// Or sets every bit of mask.
func (v *Vector) Or(mask uint64) { v.or(mask) }

// AndNot clears every bit of mask.
func (v *Vector) AndNot(mask uint64) { v.and(^mask) }

// FirstSet returns the lowest set bit.
func (v *Vector) FirstSet() (uint, bool) {
	w := v.w.Load()
	if w == 0 {
		return 0, false
	}
	return uint(bits.TrailingZeros64(w)), true
}

// TrySet sets bit i only if it is clear and reports whether it did.
func (v *Vector) TrySet(i uint) bool {
	m := uint64(1) << (i & (WordWidth - 1))
	for {
		old := v.w.Load()
		if old&m != 0 {
			return false
		}
		if v.w.CompareAndSwap(old, old|m) {
			return true
		}
	}
}

// Take clears the bits of mask that are set and returns them.
func (v *Vector) Take(mask uint64) uint64 {
	return v.and(^mask) & mask
}

// TakeLowest clears the lowest set bit within mask and returns it as a
// one-bit mask, or 0 if none of mask is set.
func (v *Vector) TakeLowest(mask uint64) uint64 {
	for {
		old := v.w.Load()
		hit := old & mask
		if hit == 0 {
			return 0
		}
		low := hit & -hit
		if v.w.CompareAndSwap(old, old&^low) {
			return low
		}
	}
}

// SetLowestClear sets the lowest clear bit within mask and returns it as a
// one-bit mask, or 0 if every bit of mask is already set.
func (v *Vector) SetLowestClear(mask uint64) uint64 {
	for {
		old := v.w.Load()
		free := mask &^ old
		if free == 0 {
			return 0
		}
		low := free & -free
		if v.w.CompareAndSwap(old, old|low) {
			return low
		}
	}
}

// or and and return the previous word.
func (v *Vector) or(m uint64) uint64 {
	for {
		old := v.w.Load()
		if old&m == m || v.w.CompareAndSwap(old, old|m) {
			return old
		}
	}
}

func (v *Vector) and(m uint64) uint64 {
	for {
		old := v.w.Load()
		if old&^m == 0 || v.w.CompareAndSwap(old, old&m) {
			return old
		}
	}
}

func bit(i uint8) uint64 { return uint64(1) << (i & (WordWidth - 1)) }

// forEachBit calls fn for every set bit of w, lowest first.
func forEachBit(w uint64, fn func(i uint8)) {
	for w != 0 {
		i := bits.TrailingZeros64(w)
		w &= w - 1
		fn(uint8(i))
	}
}
