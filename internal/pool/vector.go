package pool

import (
	"sync"
	"unsafe"
)

const (
	alignBytes     = 32 // width-8 f32 SIMD lanes
	bytesPerFloat  = 4
	alignElems     = alignBytes / bytesPerFloat // 8 float32s per alignment boundary
)

// roundUpToAlignment rounds n up to the next multiple of alignElems so a
// block can hold n float32s while still ending on a SIMD-friendly boundary.
func roundUpToAlignment(n int) int {
	if n <= 0 {
		return alignElems
	}
	rem := n % alignElems
	if rem == 0 {
		return n
	}
	return n + (alignElems - rem)
}

// vecBlock is one pooled buffer: raw is the oversized backing allocation,
// aligned is the 32-byte aligned view into it that callers actually use.
type vecBlock struct {
	raw     []float32
	aligned []float32
}

func newVecBlock(size int) *vecBlock {
	size = roundUpToAlignment(size)
	// Over-allocate by alignElems-1 elements so there is always a
	// 32-byte aligned starting point within the backing array.
	raw := make([]float32, size+alignElems-1)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	offset := 0
	if rem := addr % alignBytes; rem != 0 {
		offset = int((alignBytes - rem) / bytesPerFloat)
	}
	return &vecBlock{raw: raw, aligned: raw[offset : offset+size]}
}

// VectorPool is a SIMD-aligned pool of float32 embedding buffers. Every
// buffer handed out starts on a 32-byte boundary so width-8 f32 SIMD loads
// and stores need no fix-up, and block sizes are rounded up to a 32-byte
// multiple (8 float32 lanes).
type VectorPool struct {
	mu      sync.Mutex
	free    map[int][]*vecBlock
	Metrics Metrics
}

// NewVectorPool creates an empty SIMD-aligned vector pool. Blocks are
// created lazily per requested (rounded) size and recycled by size class.
func NewVectorPool() *VectorPool {
	return &VectorPool{free: make(map[int][]*vecBlock)}
}

// Acquire returns a 32-byte aligned []float32 of length size whose
// capacity is size rounded up to the alignment. The returned slice's
// contents are zeroed.
func (p *VectorPool) Acquire(size int) []float32 {
	rounded := roundUpToAlignment(size)

	p.mu.Lock()
	bucket := p.free[rounded]
	var blk *vecBlock
	if n := len(bucket); n > 0 {
		blk = bucket[n-1]
		p.free[rounded] = bucket[:n-1]
	}
	p.mu.Unlock()

	hit := blk != nil
	if blk == nil {
		blk = newVecBlock(rounded)
	} else {
		for i := range blk.aligned {
			blk.aligned[i] = 0
		}
	}
	p.Metrics.recordAcquire(hit)
	return blk.aligned[:size:rounded]
}

// Release returns a buffer previously obtained from Acquire back to its
// size-class free list. Passing a slice not obtained from this pool is
// safe but wasteful: it is simply dropped.
func (p *VectorPool) Release(buf []float32) {
	if cap(buf) == 0 {
		return
	}
	rounded := roundUpToAlignment(cap(buf))
	if rounded != cap(buf) {
		// Not one of ours (wrong capacity class); let the GC reclaim it.
		p.Metrics.recordRelease()
		return
	}
	full := buf[:cap(buf)]
	addr := uintptr(unsafe.Pointer(&full[0]))
	if addr%alignBytes != 0 {
		p.Metrics.recordRelease()
		return
	}
	blk := &vecBlock{aligned: full}
	p.mu.Lock()
	p.free[rounded] = append(p.free[rounded], blk)
	p.mu.Unlock()
	p.Metrics.recordRelease()
}

// IsAligned reports whether buf's backing array starts on a 32-byte
// boundary. Exposed for tests and for callers that accept vectors from
// outside the pool and want to validate the alignment themselves.
func IsAligned(buf []float32) bool {
	if len(buf) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))%alignBytes == 0
}
