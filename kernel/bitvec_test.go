package kernel

import (
	"sync"
	"testing"
)

func TestVectorSetClearFirstSet(t *testing.T) {
	var v Vector
	if _, ok := v.FirstSet(); ok {
		t.Fatal("FirstSet() on empty vector reported a bit")
	}
	if v.Set(40) {
		t.Fatal("Set(40) reported the bit already set")
	}
	if !v.Set(40) {
		t.Fatal("second Set(40) did not report the bit set")
	}
	v.Set(7)
	v.Set(63)
	if i, ok := v.FirstSet(); !ok || i != 7 {
		t.Fatalf("FirstSet() = %d, %v, want 7, true", i, ok)
	}
	if !v.Clear(7) {
		t.Fatal("Clear(7) did not report the bit set")
	}
	if v.Clear(7) {
		t.Fatal("second Clear(7) reported the bit set")
	}
	if i, _ := v.FirstSet(); i != 40 {
		t.Fatalf("FirstSet() = %d, want 40", i)
	}
	if !v.Test(63) || v.Test(0) {
		t.Fatalf("Test() mismatch, word %#x", v.Load())
	}
}

func TestVectorMaskOps(t *testing.T) {
	var v Vector
	v.Store(0b1011_0000)

	if got := v.Take(0b0011_0000); got != 0b0011_0000 {
		t.Fatalf("Take() = %#b, want %#b", got, 0b0011_0000)
	}
	if got := v.Load(); got != 0b1000_0000 {
		t.Fatalf("after Take word = %#b", got)
	}
	if got := v.Take(0b1); got != 0 {
		t.Fatalf("Take(unset) = %#b, want 0", got)
	}

	v.Store(0)
	mask := uint64(0b1110)
	for _, want := range []uint64{0b0010, 0b0100, 0b1000, 0} {
		if got := v.SetLowestClear(mask); got != want {
			t.Fatalf("SetLowestClear() = %#b, want %#b", got, want)
		}
	}
	for _, want := range []uint64{0b0010, 0b0100, 0b1000, 0} {
		if got := v.TakeLowest(mask); got != want {
			t.Fatalf("TakeLowest() = %#b, want %#b", got, want)
		}
	}

	if !v.TrySet(3) || v.TrySet(3) {
		t.Fatal("TrySet() must succeed exactly once")
	}
	v.Or(0b110000)
	v.AndNot(0b011000)
	if got := v.Load(); got != 0b100000 {
		t.Fatalf("word = %#b, want %#b", got, 0b100000)
	}
}

func TestVectorConcurrentSetLowestClear(t *testing.T) {
	var v Vector
	const n = 64
	var wg sync.WaitGroup
	wins := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- v.SetLowestClear(^uint64(0))
		}()
	}
	wg.Wait()
	close(wins)

	var seen uint64
	for w := range wins {
		if w == 0 {
			t.Fatal("SetLowestClear() ran out of bits")
		}
		if seen&w != 0 {
			t.Fatalf("bit %#x handed out twice", w)
		}
		seen |= w
	}
	if seen != ^uint64(0) {
		t.Fatalf("handed out %#x, want every bit", seen)
	}
}

func TestForEachBit(t *testing.T) {
	var got []uint8
	forEachBit(0x8000_0000_0000_0105, func(i uint8) { got = append(got, i) })
	want := []uint8{0, 2, 8, 63}
	if len(got) != len(want) {
		t.Fatalf("forEachBit() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("forEachBit() = %v, want %v", got, want)
		}
	}
}
