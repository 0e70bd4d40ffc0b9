// Package optimistic mirrors a user's boards on the client side. Local edits
// show up immediately and are reconciled with the server's answer: a
// confirmed edit becomes part of the confirmed snapshot, a rejected one
// rolls the mirror back to that snapshot.
package optimistic

import (
	"context"
	"sync"

	"github.com/emrecunlu/trello-clone/kanban"
	"github.com/emrecunlu/trello-clone/model"
)

type State int

const (
	Confirmed State = iota
	Speculative
)

func (s State) String() string {
	if s == Speculative {
		return "speculative"
	}
	return "confirmed"
}

// Ticket identifies an applied mutation until it is reconciled.
type Ticket uint64

type pending struct {
	ticket Ticket
	m      Mutation
	done   bool
}

// View is safe for concurrent use. Every list it returns is a deep copy.
type View struct {
	mu        sync.Mutex
	confirmed []model.Board
	current   []model.Board
	queue     []pending
	next      Ticket
}

func New(boards []model.Board) *View {
	v := &View{}
	v.Reset(boards)
	return v
}

// Reset replaces both snapshots with a fresh server read and drops every
// pending mutation.
func (v *View) Reset(boards []model.Board) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.confirmed = model.CloneBoards(boards)
	if v.confirmed == nil {
		v.confirmed = []model.Board{}
	}
	v.current = model.CloneBoards(v.confirmed)
	v.queue = nil
}

func (v *View) Boards() []model.Board {
	v.mu.Lock()
	defer v.mu.Unlock()
	return model.CloneBoards(v.current)
}

// ConfirmedBoards returns the last snapshot the server agreed with.
func (v *View) ConfirmedBoards() []model.Board {
	v.mu.Lock()
	defer v.mu.Unlock()
	return model.CloneBoards(v.confirmed)
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.queue) == 0 {
		return Confirmed
	}
	return Speculative
}

// Pending is the number of mutations not yet folded into the confirmed
// snapshot.
func (v *View) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}

// Apply runs m against the current mirror, which may already carry earlier
// unconfirmed mutations.
func (v *View) Apply(m Mutation) Ticket {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.next++
	v.current = m.Apply(model.CloneBoards(v.current))
	v.queue = append(v.queue, pending{ticket: v.next, m: m})
	return v.next
}

// Confirm marks t as accepted by the server. Confirmed mutations at the head
// of the queue are folded into the confirmed snapshot in the order they were
// applied. It reports false for a ticket that is no longer pending.
func (v *View) Confirm(t Ticket) bool {
	return v.settle(t, nil)
}

// settle confirms t. When t added a board or task and data is the server's
// copy of it, the placeholder id is replaced by the server's id.
func (v *View) settle(t Ticket, data any) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	found := false
	for i := range v.queue {
		if v.queue[i].ticket != t {
			continue
		}
		v.queue[i].done = true
		if data != nil {
			if m, rename, ok := bind(v.queue[i].m, data); ok {
				v.queue[i].m = m
				rename(v.current)
			}
		}
		found = true
		break
	}
	if !found {
		return false
	}
	for len(v.queue) > 0 && v.queue[0].done {
		v.confirmed = v.queue[0].m.Apply(model.CloneBoards(v.confirmed))
		v.queue = v.queue[1:]
	}
	if len(v.queue) == 0 {
		v.queue = nil
		v.current = model.CloneBoards(v.confirmed)
	}
	return true
}

// RevertAll discards every pending mutation, including ones chained on top
// of a failed one, and restores the confirmed snapshot.
func (v *View) RevertAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = model.CloneBoards(v.confirmed)
	v.queue = nil
}

// Reconcile settles t with the server's result. A successful create takes
// the id the server assigned, found in res.Data.
func (v *View) Reconcile(t Ticket, res kanban.Result) {
	if res.Success {
		v.settle(t, res.Data)
		return
	}
	v.RevertAll()
}

// Dispatch applies m locally, performs call and reconciles the view with its
// result, which is returned unchanged.
func Dispatch(ctx context.Context, v *View, m Mutation, call func(ctx context.Context) kanban.Result) kanban.Result {
	t := v.Apply(m)
	res := call(ctx)
	v.Reconcile(t, res)
	return res
}
