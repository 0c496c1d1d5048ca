// Package content implements the temporal content store: current bytes plus
// a bounded, anchor+delta compressed history per path, with single-writer /
// many-reader path-sharded locking.
package content

import (
	"hash/fnv"
	"sync"

	"github.com/nibzard/agrama/internal/agramaerr"
)

const defaultShardCount = 64

// entry is everything the store tracks for one path: the current full
// snapshot (the anchor) and the chain of reverse deltas needed to
// reconstruct every older version, most-recent-delta first.
type entry struct {
	current *ContentVersion
	deltas  []*reverseDelta // deltas[0] reconstructs the version before current, etc.
}

// Store is the temporal content store. It enforces path
// safety on every write, never mutates state on a failed write, and never
// blocks reads behind writes to a different path (modulo shard collisions).
type Store struct {
	root   string
	shards [defaultShardCount]sync.RWMutex
	data   [defaultShardCount]map[Path]*entry

	maxHistory int // 0 means unbounded
}

// New creates an empty content store rooted at root. maxHistory bounds how
// many versions are retained per path; 0 means unbounded.
func New(root string, maxHistory int) *Store {
	s := &Store{root: root, maxHistory: maxHistory}
	for i := range s.data {
		s.data[i] = make(map[Path]*entry)
	}
	return s
}

func (s *Store) shardFor(p Path) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(p))
	return int(h.Sum32()) % defaultShardCount
}

// Put validates path, records a new ContentVersion, and updates current.
// Path validation happens before any mutation, so a failed Put leaves the
// store unchanged.
func (s *Store) Put(rawPath string, timestamp int64, bytes []byte, author string, metadata map[string]string) (Path, error) {
	const op = "content.Put"
	p, err := ValidatePath(s.root, rawPath)
	if err != nil {
		return "", err
	}

	shard := s.shardFor(p)
	s.shards[shard].Lock()
	defer s.shards[shard].Unlock()

	e, ok := s.data[shard][p]
	if !ok {
		e = &entry{}
		s.data[shard][p] = e
	}

	if e.current != nil && timestamp <= e.current.Timestamp {
		return "", agramaerr.New(agramaerr.Validation, op, "timestamp must strictly increase for this path")
	}

	version := &ContentVersion{Path: p, Timestamp: timestamp, Bytes: append([]byte(nil), bytes...), Author: author, Metadata: metadata}

	if e.current != nil {
		prefixLen, suffixLen, middle := computeReverseDelta(e.current.Bytes, bytes)
		e.deltas = append([]*reverseDelta{{
			timestamp: e.current.Timestamp,
			author:    e.current.Author,
			metadata:  e.current.Metadata,
			prefixLen: prefixLen,
			suffixLen: suffixLen,
			middle:    middle,
		}}, e.deltas...)
		if s.maxHistory > 0 && len(e.deltas) > s.maxHistory-1 {
			e.deltas = e.deltas[:s.maxHistory-1]
		}
	}
	e.current = version

	return p, nil
}

// Get returns the current bytes for path.
func (s *Store) Get(rawPath string) ([]byte, error) {
	const op = "content.Get"
	p, err := ValidatePath(s.root, rawPath)
	if err != nil {
		return nil, err
	}
	shard := s.shardFor(p)
	s.shards[shard].RLock()
	defer s.shards[shard].RUnlock()

	e, ok := s.data[shard][p]
	if !ok || e.current == nil {
		return nil, agramaerr.New(agramaerr.NotFound, op, "no such path")
	}
	return append([]byte(nil), e.current.Bytes...), nil
}

// GetVersion returns the full current ContentVersion record for path.
func (s *Store) GetVersion(rawPath string) (*ContentVersion, error) {
	const op = "content.GetVersion"
	p, err := ValidatePath(s.root, rawPath)
	if err != nil {
		return nil, err
	}
	shard := s.shardFor(p)
	s.shards[shard].RLock()
	defer s.shards[shard].RUnlock()

	e, ok := s.data[shard][p]
	if !ok || e.current == nil {
		return nil, agramaerr.New(agramaerr.NotFound, op, "no such path")
	}
	cp := *e.current
	cp.Bytes = append([]byte(nil), e.current.Bytes...)
	return &cp, nil
}

// History returns up to limit of the most recent versions of path,
// most-recent-first, reconstructed from the anchor by replaying the reverse
// delta chain. A limit of 0 or less returns the full retained history.
func (s *Store) History(rawPath string, limit int) ([]*ContentVersion, error) {
	const op = "content.History"
	p, err := ValidatePath(s.root, rawPath)
	if err != nil {
		return nil, err
	}
	shard := s.shardFor(p)
	s.shards[shard].RLock()
	defer s.shards[shard].RUnlock()

	e, ok := s.data[shard][p]
	if !ok || e.current == nil {
		return nil, agramaerr.New(agramaerr.NotFound, op, "no such path")
	}

	total := 1 + len(e.deltas)
	if limit <= 0 || limit > total {
		limit = total
	}

	out := make([]*ContentVersion, 0, limit)
	out = append(out, &ContentVersion{
		Path: p, Timestamp: e.current.Timestamp, Bytes: append([]byte(nil), e.current.Bytes...),
		Author: e.current.Author, Metadata: e.current.Metadata,
	})

	cur := e.current.Bytes
	for i := 0; i < limit-1; i++ {
		d := e.deltas[i]
		older := d.apply(cur)
		out = append(out, &ContentVersion{
			Path: p, Timestamp: d.timestamp, Bytes: older, Author: d.author, Metadata: d.metadata,
		})
		cur = older
	}
	return out, nil
}

// Paths returns every path currently stored, in no particular order. Used
// by temporal search to scan the content log.
func (s *Store) Paths() []Path {
	var out []Path
	for i := range s.data {
		s.shards[i].RLock()
		for p, e := range s.data[i] {
			if e.current != nil {
				out = append(out, p)
			}
		}
		s.shards[i].RUnlock()
	}
	return out
}

// Exists reports whether path has ever been written.
func (s *Store) Exists(rawPath string) bool {
	p, err := ValidatePath(s.root, rawPath)
	if err != nil {
		return false
	}
	shard := s.shardFor(p)
	s.shards[shard].RLock()
	defer s.shards[shard].RUnlock()
	e, ok := s.data[shard][p]
	return ok && e.current != nil
}
