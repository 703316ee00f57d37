package board

import (
	"fmt"
	"time"
)

// State is the part of an entity a status transition touches. Both fields
// are captured and restored together.
type State[S comparable] struct {
	Status      S
	CompletedAt *time.Time
}

// Lane describes one kind of kanban entity: its columns and how to read and
// write its status. The task board, the project board and the personal task
// board are the same component configured with different lanes.
type Lane[T any, S comparable] struct {
	Name     string
	Statuses []S
	ID       func(*T) int64
	Label    func(*T) string
	Get      func(*T) State[S]
	Set      func(*T, State[S])

	// Stamp adjusts the optimistic state before it is applied, e.g. setting
	// a completion time. Optional.
	Stamp func(next State[S], now time.Time) State[S]

	// StatusLabel formats a status for notices. Defaults to fmt.Sprint.
	StatusLabel func(S) string
}

func (l Lane[T, S]) statusLabel(s S) string {
	if l.StatusLabel != nil {
		return l.StatusLabel(s)
	}
	return fmt.Sprint(s)
}

// Index returns the column index of s, or -1
func (l Lane[T, S]) Index(s S) int {
	for i, st := range l.Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// Neighbour returns the status delta columns away from s, clamped to the
// lane. ok is false when there is no such column.
func (l Lane[T, S]) Neighbour(s S, delta int) (S, bool) {
	i := l.Index(s)
	var zero S
	if i < 0 {
		return zero, false
	}
	j := i + delta
	if j < 0 || j >= len(l.Statuses) {
		return zero, false
	}
	return l.Statuses[j], true
}

// Find returns a pointer into items for the entity with id, or nil
func (l Lane[T, S]) Find(items []T, id int64) *T {
	for i := range items {
		if l.ID(&items[i]) == id {
			return &items[i]
		}
	}
	return nil
}

// NoticeKind classifies a Notice
type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notice is the transient message a settled transition produces
type Notice struct {
	Kind   NoticeKind
	Entity string
	Label  string
	From   string
	To     string
	Err    error
}

func (n Notice) String() string {
	if n.Kind == NoticeError {
		return fmt.Sprintf("Failed to move %s %q to %s: %v", n.Entity, n.Label, n.To, n.Err)
	}
	return fmt.Sprintf("%s %q moved from %s to %s", n.Entity, n.Label, n.From, n.To)
}

// Outcome is the result of settling a transition
type Outcome int

const (
	// Confirmed means the backend accepted the latest transition
	Confirmed Outcome = iota
	// RolledBack means the latest transition failed and the entity was restored
	RolledBack
	// Stale means a newer transition superseded this one; nothing was rolled back
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled back"
	default:
		return "stale"
	}
}

// Ticket identifies one in-flight transition. It is handed to the request
// command and back to Settle with the request's result.
type Ticket[S comparable] struct {
	ID      int64
	Version uint64
	From    S
	To      S

	applied State[S]
}

type pending[S comparable] struct {
	version  uint64
	baseline State[S]
}

// Mover applies status transitions optimistically and settles them when the
// persistence request completes. Each entity has at most one pending slot;
// only the settlement of the newest transition may roll back.
//
// A Mover is not safe for concurrent use. In the UI it is only touched from
// the Update loop.
type Mover[T any, S comparable] struct {
	Lane   Lane[T, S]
	Notify func(Notice)
	Now    func() time.Time

	seq     uint64
	pending map[int64]pending[S]
}

// NewMover creates a Mover for lane. notify may be nil.
func NewMover[T any, S comparable](lane Lane[T, S], notify func(Notice)) *Mover[T, S] {
	return &Mover[T, S]{
		Lane:    lane,
		Notify:  notify,
		Now:     time.Now,
		pending: make(map[int64]pending[S]),
	}
}

// Begin sets e's status to to, immediately. It returns false without
// touching e when e is already in that status.
func (m *Mover[T, S]) Begin(e *T, to S) (Ticket[S], bool) {
	cur := m.Lane.Get(e)
	if cur.Status == to {
		return Ticket[S]{}, false
	}
	if m.pending == nil {
		m.pending = make(map[int64]pending[S])
	}

	id := m.Lane.ID(e)
	p, inFlight := m.pending[id]
	if !inFlight {
		p.baseline = cur
	}
	m.seq++
	p.version = m.seq
	m.pending[id] = p

	next := State[S]{Status: to, CompletedAt: cur.CompletedAt}
	if m.Lane.Stamp != nil {
		next = m.Lane.Stamp(next, m.now())
	}
	m.Lane.Set(e, next)

	return Ticket[S]{ID: id, Version: p.version, From: cur.Status, To: to, applied: next}, true
}

// Settle records the result of the request started for t. e is the entity's
// current location in the caller's collection and may be nil if it has since
// been removed. Exactly one notice is sent unless the settlement is stale.
func (m *Mover[T, S]) Settle(e *T, t Ticket[S], err error) Outcome {
	p, ok := m.pending[t.ID]
	if !ok || p.version != t.Version {
		if ok && err == nil {
			// the backend now holds this value; a later failure rolls back to it
			p.baseline = t.applied
			m.pending[t.ID] = p
		}
		return Stale
	}
	delete(m.pending, t.ID)

	n := Notice{
		Entity: m.Lane.Name,
		From:   m.Lane.statusLabel(t.From),
		To:     m.Lane.statusLabel(t.To),
	}
	if e != nil {
		n.Label = m.Lane.Label(e)
	}

	if err == nil {
		n.Kind = NoticeSuccess
		m.notify(n)
		return Confirmed
	}

	if e != nil {
		m.Lane.Set(e, p.baseline)
	}
	n.Kind = NoticeError
	n.Err = err
	m.notify(n)
	return RolledBack
}

// Pending reports whether id has a transition in flight
func (m *Mover[T, S]) Pending(id int64) bool {
	_, ok := m.pending[id]
	return ok
}

func (m *Mover[T, S]) notify(n Notice) {
	if m.Notify != nil {
		m.Notify(n)
	}
}

func (m *Mover[T, S]) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Transition runs a complete transition with a blocking persist call. It is
// the synchronous form of Begin followed by Settle.
func (m *Mover[T, S]) Transition(e *T, to S, persist func(id int64, to S) error) Outcome {
	t, ok := m.Begin(e, to)
	if !ok {
		return Confirmed
	}
	return m.Settle(e, t, persist(t.ID, t.To))
}
