// Package models defines the core domain types for Quill.
package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "NotStarted"
	StatusInProgress TaskStatus = "InProgress"
	StatusCompleted  TaskStatus = "Completed"
)

// Valid reports whether s is one of the three known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Next returns the status that follows s in the cycle
// NotStarted -> InProgress -> Completed -> NotStarted.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case StatusNotStarted:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusNotStarted
	}
}

// Context is the partition key for task data, derived from the surrounding
// git repository. Two contexts are equal iff all three fields match exactly.
type Context struct {
	Org    string `json:"org"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
}

// None is the sentinel context used when the working directory is not
// inside a git repository.
var None = Context{}

// Label returns the display form "org:repo:branch".
func (c Context) Label() string {
	return c.Org + ":" + c.Repo + ":" + c.Branch
}

// IsNone reports whether c is the sentinel context.
func (c Context) IsNone() bool {
	return c == None
}

// Task is a single TODO item, unique by ID within its context.
type Task struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Collection is the ordered set of tasks for one context, the unit of
// load/save against a storage backend.
type Collection []Task

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// IndexOf returns the position of the task with the given id, or -1.
func (c Collection) IndexOf(id int64) int {
	for i, t := range c {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// NextID returns the smallest id safe to assign: max existing id + 1,
// or 0 for an empty collection.
func (c Collection) NextID() int64 {
	if len(c) == 0 {
		return 0
	}
	max := c[0].ID
	for _, t := range c[1:] {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}

// DeletedEntry records a deleted task for the undo ledger.
type DeletedEntry struct {
	Task      Task
	Index     int // position the task held before deletion
	DeletedAt time.Time
}
