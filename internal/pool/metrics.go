package pool

import "sync/atomic"

// Metrics tracks the lifetime counters required of every pool flavor:
// acquisitions, releases, pool hits, fallback-to-allocator misses, and the
// high-water mark of concurrently in-use items. All fields are updated with
// atomics so readers never block a hot acquire/release path.
type Metrics struct {
	acquired  atomic.Int64
	released  atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	inUse     atomic.Int64
	highWater atomic.Int64
}

// Snapshot is a point-in-time copy of Metrics, safe to read without races.
type Snapshot struct {
	Acquired  int64
	Released  int64
	Hits      int64
	Misses    int64
	InUse     int64
	HighWater int64
}

func (m *Metrics) recordAcquire(hit bool) {
	m.acquired.Add(1)
	if hit {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	inUse := m.inUse.Add(1)
	for {
		hw := m.highWater.Load()
		if inUse <= hw || m.highWater.CompareAndSwap(hw, inUse) {
			break
		}
	}
}

func (m *Metrics) recordRelease() {
	m.released.Add(1)
	m.inUse.Add(-1)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Acquired:  m.acquired.Load(),
		Released:  m.released.Load(),
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		InUse:     m.inUse.Load(),
		HighWater: m.highWater.Load(),
	}
}
