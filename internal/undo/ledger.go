// Package undo keeps a bounded, in-memory record of recently deleted
// tasks. It is a session-local safety net: never persisted, lost on exit.
package undo

import "github.com/quilltask/quill/internal/models"

// Capacity is the fixed number of deletions the ledger remembers.
const Capacity = 3

// Ledger is a fixed-capacity ring buffer of deleted entries. When full,
// pushing evicts the oldest entry; popping returns the newest.
type Ledger struct {
	buf   [Capacity]models.DeletedEntry
	start int
	n     int
}

// Push records a deletion, evicting the oldest entry when full.
func (l *Ledger) Push(e models.DeletedEntry) {
	l.buf[(l.start+l.n)%Capacity] = e
	if l.n < Capacity {
		l.n++
	} else {
		l.start = (l.start + 1) % Capacity
	}
}

// PopMostRecent removes and returns the newest entry.
func (l *Ledger) PopMostRecent() (models.DeletedEntry, bool) {
	if l.n == 0 {
		return models.DeletedEntry{}, false
	}
	l.n--
	return l.buf[(l.start+l.n)%Capacity], true
}

// Len returns the number of recorded deletions.
func (l *Ledger) Len() int { return l.n }

// Clear drops all entries. Called on context switch: undo history does
// not cross context boundaries.
func (l *Ledger) Clear() {
	l.start = 0
	l.n = 0
}
