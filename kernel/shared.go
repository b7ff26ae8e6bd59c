package kernel

// sharedRegion is the only state both cores write. It is accessed with
// atomic bit operations only, never under a core lock of the other core.
type sharedRegion struct {
	// events holds pending event and semaphore bits.
	events Vector

	// claims has one bit per cross-core resource currently held anywhere.
	claims Vector

	// remote[c] is core c's remote-lock flag per cross-core resource.
	remote [NumCores]Vector
}

func otherCore(c CoreID) CoreID { return (c + 1) % NumCores }

// acquire spins until core c owns resource r or the limit runs out.
func (s *sharedRegion) acquire(r ResourceID, c CoreID, limit int) bool {
	other := &s.remote[otherCore(c)]
	for spins := 0; spins < limit; spins++ {
		if !other.Test(uint(r)) && s.claims.TrySet(uint(r)) {
			s.remote[c].Set(uint(r))
			return true
		}
		spinLoopHint()
	}
	return false
}

func (s *sharedRegion) release(r ResourceID, c CoreID) {
	s.remote[c].Clear(uint(r))
	s.claims.Clear(uint(r))
}

// move transfers core ownership of a held resource. The destination flag is
// raised before the source flag drops so the resource never looks free.
func (s *sharedRegion) move(r ResourceID, from, to CoreID) {
	s.remote[to].Set(uint(r))
	s.remote[from].Clear(uint(r))
}

// RemoteLocked reports whether core c currently holds cross-core resource r.
func (k *Kernel) RemoteLocked(c CoreID, r ResourceID) bool {
	if c >= NumCores || int(r) >= MaxResources {
		return false
	}
	return k.shared.remote[c].Test(uint(r))
}
