// Package session tracks agent identity: lazily registered agents, their
// per-session stats, and the append-only activity log that feeds the
// external activity stream.
package session

import (
	"sync"
	"sync/atomic"
)

// Agent is one registered agent's session record. Counters are atomic so
// the primitive engine can bump them without taking the registry lock.
type Agent struct {
	ID           string
	Name         string
	Capabilities []string
	StartedAt    int64 // microseconds

	operations   atomic.Int64
	lastActivity atomic.Int64
}

// Operations returns the number of primitive invocations this session has
// made, successful or not.
func (a *Agent) Operations() int64 { return a.operations.Load() }

// LastActivity returns the microsecond timestamp of the most recent
// operation.
func (a *Agent) LastActivity() int64 { return a.lastActivity.Load() }

// RecordOperation bumps the session counters. Called exactly once per
// primitive invocation regardless of outcome.
func (a *Agent) RecordOperation(now int64) {
	a.operations.Add(1)
	a.lastActivity.Store(now)
}

// Activity is one append-only activity record.
type Activity struct {
	Seq       uint64
	AgentID   string
	Primitive string
	Timestamp int64 // microseconds
	Success   bool
}

// Registry holds all agent sessions and the activity log. Agents register
// lazily on their first operation.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent

	logMu   sync.Mutex
	log     []Activity
	nextSeq uint64
	// logCap bounds retained activity records; older records are dropped
	// from the front once exceeded. 0 means unbounded.
	logCap int
}

// NewRegistry creates an empty registry retaining up to logCap activity
// records (0 = unbounded).
func NewRegistry(logCap int) *Registry {
	return &Registry{agents: make(map[string]*Agent), logCap: logCap}
}

// Ensure returns the session for agent id, registering it with the given
// display name and capabilities on first sight. Later calls ignore name and
// capabilities.
func (r *Registry) Ensure(id, name string, capabilities []string, now int64) *Agent {
	r.mu.RLock()
	a, ok := r.agents[id]
	r.mu.RUnlock()
	if ok {
		return a
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[id]; ok {
		return a
	}
	if name == "" {
		name = id
	}
	a = &Agent{ID: id, Name: name, Capabilities: capabilities, StartedAt: now}
	r.agents[id] = a
	return a
}

// Get returns the session for id, if registered.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// Agents returns a snapshot of all registered sessions.
func (r *Registry) Agents() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// Append records one activity entry and returns its sequence number.
// Sequence numbers are totally ordered and never reused.
func (r *Registry) Append(agentID, primitive string, now int64, success bool) uint64 {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	seq := r.nextSeq
	r.nextSeq++
	r.log = append(r.log, Activity{Seq: seq, AgentID: agentID, Primitive: primitive, Timestamp: now, Success: success})
	if r.logCap > 0 && len(r.log) > r.logCap {
		r.log = append([]Activity(nil), r.log[len(r.log)-r.logCap:]...)
	}
	return seq
}

// Since returns all retained activity records with Seq >= seq, oldest
// first. This is the read API the external activity-feed stream drains.
func (r *Registry) Since(seq uint64) []Activity {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	i := 0
	for i < len(r.log) && r.log[i].Seq < seq {
		i++
	}
	return append([]Activity(nil), r.log[i:]...)
}
