package crdt

import (
	"sort"
	"sync"
)

// Document is one collaboratively edited text. A single mutator lock
// serializes operation application per document; reads (Snapshot, Cursor)
// take the same lock briefly to copy out a consistent view.
type Document struct {
	mu sync.Mutex

	path    string
	initial string
	text    string

	applied   []*Operation
	appliedID map[string]bool
	// byAgentCounter indexes applied operations by (agent, that agent's
	// clock counter), the DAG index the operation log is navigated by.
	byAgentCounter map[agentCounter]*Operation

	clock   VectorClock
	cursors map[string]Position

	pending []*Operation
}

type agentCounter struct {
	agent   string
	counter uint64
}

// NewDocument creates a document at path with the given initial text and an
// empty causal history.
func NewDocument(path, initial string) *Document {
	return &Document{
		path:           path,
		initial:        initial,
		text:           initial,
		appliedID:      make(map[string]bool),
		byAgentCounter: make(map[agentCounter]*Operation),
		clock:          make(VectorClock),
		cursors:        make(map[string]Position),
	}
}

// Path returns the document's path.
func (d *Document) Path() string { return d.path }

// Snapshot returns the current text and a copy of the document clock.
func (d *Document) Snapshot() (string, VectorClock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text, d.clock.Clone()
}

// Cursor returns agent's last reported position.
func (d *Document) Cursor(agent string) (Position, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.cursors[agent]
	return p, ok
}

// UpdateCursor records agent's position. Cursor updates commute with text
// operations: they touch only the cursor map, never the text or the clock.
func (d *Document) UpdateCursor(agent string, pos Position) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursors[agent] = pos
}

// ready reports whether op's causal dependencies are satisfied: the origin
// agent's counter must be exactly the next one for that agent, and every
// other component must already be covered by the document clock.
func (d *Document) ready(op *Operation) bool {
	for agent, c := range op.Clock {
		if agent == op.Agent {
			if c != d.clock[agent]+1 {
				return false
			}
			continue
		}
		if c > d.clock[agent] {
			return false
		}
	}
	return true
}

// integrate records op as applied, merges its clock, and re-derives the
// text. Caller holds d.mu.
func (d *Document) integrate(op *Operation) {
	d.applied = append(d.applied, op)
	d.appliedID[op.ID] = true
	d.byAgentCounter[agentCounter{op.Agent, op.Clock[op.Agent]}] = op
	d.clock.Merge(op.Clock)
	d.rederive()
}

// rederive replays the full applied log in the deterministic total order
// (causal order extended by the operation-id tiebreaker) against the
// initial text. Two replicas holding the same operation set always compute
// the same order and therefore the same text. Caller holds d.mu.
func (d *Document) rederive() {
	ops := append([]*Operation(nil), d.applied...)
	sort.Slice(ops, func(i, j int) bool { return replayLess(ops[i], ops[j]) })

	text := []byte(d.initial)
	for _, op := range ops {
		text = applyOp(text, op)
	}
	d.text = string(text)
}

// applyOp applies one operation at its recorded byte offset, clamped to the
// current text bounds so concurrent edits that shifted the document never
// push an offset out of range.
func applyOp(text []byte, op *Operation) []byte {
	offset := op.Pos.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}

	switch op.Kind {
	case OpInsert:
		out := make([]byte, 0, len(text)+len(op.Payload))
		out = append(out, text[:offset]...)
		out = append(out, op.Payload...)
		out = append(out, text[offset:]...)
		return out
	case OpDelete, OpModify:
		end := offset + op.Length
		if end > len(text) {
			end = len(text)
		}
		out := make([]byte, 0, len(text)-(end-offset)+len(op.Payload))
		out = append(out, text[:offset]...)
		if op.Kind == OpModify {
			out = append(out, op.Payload...)
		}
		out = append(out, text[end:]...)
		return out
	default:
		return text
	}
}

// drainPending applies every buffered operation whose dependencies are now
// satisfied, repeating until a full pass applies nothing. Caller holds d.mu.
func (d *Document) drainPending() {
	for {
		progressed := false
		remaining := d.pending[:0]
		for _, op := range d.pending {
			if d.appliedID[op.ID] {
				progressed = true
				continue
			}
			if d.ready(op) {
				d.integrate(op)
				progressed = true
			} else {
				remaining = append(remaining, op)
			}
		}
		d.pending = remaining
		if !progressed || len(d.pending) == 0 {
			return
		}
	}
}

// PendingCount returns the number of operations buffered waiting on missing
// causal dependencies.
func (d *Document) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
