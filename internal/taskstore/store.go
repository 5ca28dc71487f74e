// Package taskstore owns the active task collection and its persistence.
// Every mutation writes through to the storage backend before returning,
// so in-memory and durable state never diverge after a successful call.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quilltask/quill/internal/models"
	"github.com/quilltask/quill/internal/storage"
	"github.com/quilltask/quill/internal/undo"
)

// Sentinel errors for task operations.
var (
	ErrNotFound      = errors.New("task not found")
	ErrTaskCompleted = errors.New("completed tasks cannot be edited")
	ErrEmptyText     = errors.New("task text must not be empty")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrIDConflict    = errors.New("a task with the restored id already exists")
	ErrDegraded      = errors.New("storage degraded, mutations disabled")
)

// RestorePolicy decides what happens when an undone deletion collides
// with an id assigned after the deletion.
type RestorePolicy int

const (
	// RestoreDrop discards the undo entry and reports ErrIDConflict.
	RestoreDrop RestorePolicy = iota
	// RestoreRenumber restores the task under a freshly assigned id.
	RestoreRenumber
)

// Store orchestrates the context resolver's key, the storage backend, and
// the undo ledger. It is not safe for concurrent use; the session drives
// it from a single goroutine.
type Store struct {
	backend storage.Backend
	key     models.Context
	tasks   models.Collection
	ledger  undo.Ledger
	policy  RestorePolicy
	now     func() time.Time

	loaded  bool
	dirty   bool
	nextID  int64 // session high-watermark; ids are never reassigned after deletion
	loadErr error // set when the active context's load failed; guards saves
}

// Option configures a Store.
type Option func(*Store)

// WithRestorePolicy overrides the default RestoreDrop policy.
func WithRestorePolicy(p RestorePolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over the given backend. No context is active until
// the first SwitchContext call.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		policy:  RestoreDrop,
		// Millisecond precision is the finest all backends round-trip.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the active storage backend.
func (s *Store) Backend() storage.Backend { return s.backend }

// ActiveContext returns the context whose collection is loaded.
func (s *Store) ActiveContext() models.Context { return s.key }

// Tasks returns a read-only snapshot of the active collection.
func (s *Store) Tasks() models.Collection { return s.tasks.Clone() }

// UndoCount returns how many deletions can currently be undone.
func (s *Store) UndoCount() int { return s.ledger.Len() }

// Degraded returns the load error that disabled mutations, if any.
func (s *Store) Degraded() error { return s.loadErr }

// SwitchContext makes key the active context. If it differs from the
// current one, any dirty in-memory state is persisted first, then the new
// context's collection is loaded and the undo ledger cleared. A failed
// load leaves the store in a degraded state: reads return the empty
// collection and mutations are refused until the load succeeds or the
// user explicitly starts fresh.
func (s *Store) SwitchContext(ctx context.Context, key models.Context) error {
	// Re-resolving the same context is a no-op, except while degraded:
	// then the load is retried so an externally repaired file recovers
	// the session.
	if s.loaded && key == s.key && s.loadErr == nil {
		return nil
	}

	if s.loaded && s.dirty && s.loadErr == nil {
		if err := s.backend.Save(ctx, s.key, s.tasks); err != nil {
			return fmt.Errorf("persist %s before switch: %w", s.key.Label(), err)
		}
		s.dirty = false
	}

	s.key = key
	s.loaded = true
	s.ledger.Clear()

	tasks, err := s.backend.Load(ctx, key)
	if err != nil {
		s.tasks = models.Collection{}
		s.nextID = 0
		s.loadErr = err
		return fmt.Errorf("load %s: %w", key.Label(), err)
	}
	s.tasks = tasks
	s.nextID = tasks.NextID()
	s.loadErr = nil
	return nil
}

// SetBackend swaps the storage backend (after a configuration change) and
// forces a fresh load of the active context. Data is not migrated between
// backends. The previous backend is returned so the caller can close it.
func (s *Store) SetBackend(ctx context.Context, backend storage.Backend) (storage.Backend, error) {
	old := s.backend
	s.backend = backend
	s.dirty = false
	if !s.loaded {
		return old, nil
	}
	s.ledger.Clear()

	tasks, err := s.backend.Load(ctx, s.key)
	if err != nil {
		s.tasks = models.Collection{}
		s.nextID = 0
		s.loadErr = err
		return old, fmt.Errorf("load %s: %w", s.key.Label(), err)
	}
	s.tasks = tasks
	s.nextID = tasks.NextID()
	s.loadErr = nil
	return old, nil
}

// StartFresh discards unreadable persisted data for the active context by
// overwriting it with the empty collection. This is the explicit recovery
// path after a decode failure; it is never taken automatically.
func (s *Store) StartFresh(ctx context.Context) error {
	if s.loadErr == nil {
		return nil
	}
	if err := s.backend.Save(ctx, s.key, models.Collection{}); err != nil {
		return err
	}
	s.tasks = models.Collection{}
	s.nextID = 0
	s.loadErr = nil
	return nil
}

// Add appends a new task and persists it. The id comes off the session
// watermark, so deleting the highest-id task never frees its id for the
// next add: the undo ledger can always restore it without collision.
func (s *Store) Add(ctx context.Context, text string) (models.Task, error) {
	if s.loadErr != nil {
		return models.Task{}, fmt.Errorf("%w: %v", ErrDegraded, s.loadErr)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Task{}, ErrEmptyText
	}

	task := models.Task{
		ID:        s.nextID,
		Text:      text,
		Status:    models.StatusNotStarted,
		CreatedAt: s.now(),
	}
	next := append(s.tasks.Clone(), task)
	if err := s.commit(ctx, next); err != nil {
		return models.Task{}, err
	}
	s.nextID = task.ID + 1
	return task, nil
}

// Edit replaces the text of a task. Completed tasks are immutable with
// respect to text.
func (s *Store) Edit(ctx context.Context, id int64, text string) error {
	if s.loadErr != nil {
		return fmt.Errorf("%w: %v", ErrDegraded, s.loadErr)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	i := s.tasks.IndexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	if s.tasks[i].Status == models.StatusCompleted {
		return ErrTaskCompleted
	}

	next := s.tasks.Clone()
	next[i].Text = text
	return s.commit(ctx, next)
}

// Delete removes a task, records it in the undo ledger with its original
// index, persists, and returns the removed task.
func (s *Store) Delete(ctx context.Context, id int64) (models.Task, error) {
	if s.loadErr != nil {
		return models.Task{}, fmt.Errorf("%w: %v", ErrDegraded, s.loadErr)
	}
	i := s.tasks.IndexOf(id)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}

	removed := s.tasks[i]
	next := s.tasks.Clone()
	next = append(next[:i], next[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return models.Task{}, err
	}

	s.ledger.Push(models.DeletedEntry{Task: removed, Index: i, DeletedAt: s.now()})
	return removed, nil
}

// RestoreLastDeleted reinserts the most recently deleted task at
// min(original index, current length). An id collision with a task
// created after the deletion is resolved by the restore policy.
func (s *Store) RestoreLastDeleted(ctx context.Context) (models.Task, error) {
	if s.loadErr != nil {
		return models.Task{}, fmt.Errorf("%w: %v", ErrDegraded, s.loadErr)
	}
	entry, ok := s.ledger.PopMostRecent()
	if !ok {
		return models.Task{}, ErrNothingToUndo
	}

	// Ids are never reassigned within a session, so a collision here
	// means the entry is stale against data that changed underneath the
	// session (another process, a backend swap).
	task := entry.Task
	if s.tasks.IndexOf(task.ID) >= 0 {
		switch s.policy {
		case RestoreRenumber:
			task.ID = s.nextID
		default:
			// The entry stays dropped: restoring it would corrupt the
			// id-uniqueness invariant.
			return models.Task{}, ErrIDConflict
		}
	}

	i := entry.Index
	if i > len(s.tasks) {
		i = len(s.tasks)
	}
	next := s.tasks.Clone()
	next = append(next[:i], append(models.Collection{task}, next[i:]...)...)
	if err := s.commit(ctx, next); err != nil {
		// Failed persistence must not lose the undo entry.
		s.ledger.Push(entry)
		return models.Task{}, err
	}
	if task.ID >= s.nextID {
		s.nextID = task.ID + 1
	}
	return task, nil
}

// SetStatus updates a task's status in place. Unlike Edit, there is no
// restriction based on the current status.
func (s *Store) SetStatus(ctx context.Context, id int64, status models.TaskStatus) error {
	if s.loadErr != nil {
		return fmt.Errorf("%w: %v", ErrDegraded, s.loadErr)
	}
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	i := s.tasks.IndexOf(id)
	if i < 0 {
		return ErrNotFound
	}

	next := s.tasks.Clone()
	next[i].Status = status
	return s.commit(ctx, next)
}

// CycleStatus advances a task's status one step through
// NotStarted -> InProgress -> Completed -> NotStarted.
func (s *Store) CycleStatus(ctx context.Context, id int64) error {
	i := s.tasks.IndexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	return s.SetStatus(ctx, id, s.tasks[i].Status.Next())
}

// MoveUp swaps a task with its predecessor. It reports false when the
// task is already first.
func (s *Store) MoveUp(ctx context.Context, id int64) (bool, error) {
	return s.move(ctx, id, -1)
}

// MoveDown swaps a task with its successor. It reports false when the
// task is already last.
func (s *Store) MoveDown(ctx context.Context, id int64) (bool, error) {
	return s.move(ctx, id, +1)
}

func (s *Store) move(ctx context.Context, id int64, delta int) (bool, error) {
	if s.loadErr != nil {
		return false, fmt.Errorf("%w: %v", ErrDegraded, s.loadErr)
	}
	i := s.tasks.IndexOf(id)
	if i < 0 {
		return false, ErrNotFound
	}
	j := i + delta
	if j < 0 || j >= len(s.tasks) {
		return false, nil
	}

	next := s.tasks.Clone()
	next[i], next[j] = next[j], next[i]
	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// commit persists next and only then makes it the in-memory collection.
// A failed save leaves the store exactly as it was before the mutation.
func (s *Store) commit(ctx context.Context, next models.Collection) error {
	s.dirty = true
	if err := s.backend.Save(ctx, s.key, next); err != nil {
		s.dirty = false
		return err
	}
	s.tasks = next
	s.dirty = false
	return nil
}
