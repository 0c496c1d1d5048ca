package crdt

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nibzard/agrama/internal/agramaerr"
)

// LocalEdit is the caller-facing shape of a new local operation, before the
// model stamps it with an id and a clock.
type LocalEdit struct {
	Kind    OpKind
	Pos     Position
	Payload string
	Length  int
}

// Model manages the set of collaborative documents. Operations on different
// documents proceed concurrently; within one document the per-document
// mutator lock serializes application.
type Model struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewModel creates an empty document model.
func NewModel() *Model {
	return &Model{docs: make(map[string]*Document)}
}

// Open returns the document at path, creating it with the given initial
// text if it does not exist yet. Opening an existing document ignores
// initial.
func (m *Model) Open(path, initial string) *Document {
	m.mu.RLock()
	d, ok := m.docs[path]
	m.mu.RUnlock()
	if ok {
		return d
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[path]; ok {
		return d
	}
	d = NewDocument(path, initial)
	m.docs[path] = d
	return d
}

// Get returns the document at path, if any.
func (m *Model) Get(path string) (*Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[path]
	return d, ok
}

// ApplyLocal creates an operation from edit on behalf of agent and applies
// it to the document at path. The returned operation carries the stamped
// clock (origin component incremented by one) and is what peers should be
// handed for MergeRemote.
func (m *Model) ApplyLocal(path, agent string, edit LocalEdit) (*Operation, error) {
	const op = "crdt.ApplyLocal"
	switch edit.Kind {
	case OpInsert, OpDelete, OpModify:
	default:
		return nil, agramaerr.New(agramaerr.Validation, op, "unknown operation kind")
	}
	if edit.Kind != OpInsert && edit.Length <= 0 {
		return nil, agramaerr.New(agramaerr.Validation, op, "delete/modify requires a positive length")
	}

	d := m.Open(path, "")
	d.mu.Lock()
	defer d.mu.Unlock()

	clock := d.clock.Clone()
	clock.Increment(agent)
	operation := &Operation{
		ID:      uuid.NewString(),
		Agent:   agent,
		Path:    path,
		Kind:    edit.Kind,
		Pos:     edit.Pos,
		Payload: edit.Payload,
		Length:  edit.Length,
		Clock:   clock,
	}
	d.integrate(operation)
	d.drainPending()
	return operation, nil
}

// MergeRemote applies an operation received from a peer. Duplicate
// deliveries are no-ops (idempotence); operations whose causal dependencies
// have not arrived yet are buffered and applied automatically once they
// have.
func (m *Model) MergeRemote(path string, operation *Operation) error {
	const op = "crdt.MergeRemote"
	if operation == nil || operation.ID == "" {
		return agramaerr.New(agramaerr.Validation, op, "operation missing id")
	}
	if len(operation.Clock) == 0 {
		return agramaerr.New(agramaerr.Validation, op, "operation missing clock")
	}

	d := m.Open(path, "")
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.appliedID[operation.ID] {
		return nil
	}
	if !d.ready(operation) {
		for _, p := range d.pending {
			if p.ID == operation.ID {
				return nil
			}
		}
		d.pending = append(d.pending, operation)
		return nil
	}
	d.integrate(operation)
	d.drainPending()
	return nil
}

// UpdateCursor records agent's position on the document at path.
func (m *Model) UpdateCursor(path, agent string, pos Position) {
	m.Open(path, "").UpdateCursor(agent, pos)
}

// Snapshot returns the text and clock of the document at path.
func (m *Model) Snapshot(path string) (string, VectorClock, error) {
	const op = "crdt.Snapshot"
	d, ok := m.Get(path)
	if !ok {
		return "", nil, agramaerr.New(agramaerr.NotFound, op, "no such document")
	}
	text, clock := d.Snapshot()
	return text, clock, nil
}
