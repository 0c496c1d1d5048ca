package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRegistersLazilyOnce(t *testing.T) {
	r := NewRegistry(0)
	a := r.Ensure("agent-1", "Alice", []string{"code"}, 100)
	b := r.Ensure("agent-1", "Other Name", nil, 200)
	assert.Same(t, a, b)
	assert.Equal(t, "Alice", b.Name)
	assert.Equal(t, int64(100), b.StartedAt)
}

func TestRecordOperationCountsEveryInvocation(t *testing.T) {
	r := NewRegistry(0)
	a := r.Ensure("agent-1", "", nil, 1)
	a.RecordOperation(10)
	a.RecordOperation(20)
	assert.Equal(t, int64(2), a.Operations())
	assert.Equal(t, int64(20), a.LastActivity())
}

func TestActivityLogIsTotallyOrdered(t *testing.T) {
	r := NewRegistry(0)
	s1 := r.Append("a", "store", 1, true)
	s2 := r.Append("a", "search", 2, false)
	require.Less(t, s1, s2)

	all := r.Since(0)
	require.Len(t, all, 2)
	assert.Equal(t, "store", all[0].Primitive)
	assert.False(t, all[1].Success)
}

func TestSinceSkipsOlderRecords(t *testing.T) {
	r := NewRegistry(0)
	r.Append("a", "store", 1, true)
	s2 := r.Append("a", "link", 2, true)
	got := r.Since(s2)
	require.Len(t, got, 1)
	assert.Equal(t, "link", got[0].Primitive)
}

func TestLogCapDropsOldest(t *testing.T) {
	r := NewRegistry(2)
	r.Append("a", "p1", 1, true)
	r.Append("a", "p2", 2, true)
	r.Append("a", "p3", 3, true)
	got := r.Since(0)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].Primitive)
	assert.Equal(t, "p3", got[1].Primitive)
}

func TestConcurrentAppendsKeepUniqueSequences(t *testing.T) {
	r := NewRegistry(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Append("a", "store", 1, true)
		}()
	}
	wg.Wait()
	seen := make(map[uint64]bool)
	for _, rec := range r.Since(0) {
		assert.False(t, seen[rec.Seq])
		seen[rec.Seq] = true
	}
	assert.Len(t, seen, 50)
}
