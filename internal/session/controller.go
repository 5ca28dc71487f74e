// Package session implements the state machine between user input events
// and the task store. It owns selection and view state; the rendering
// layer feeds it events and draws the snapshots it produces.
package session

import (
	"context"
	"errors"

	"github.com/quilltask/quill/internal/config"
	"github.com/quilltask/quill/internal/gitctx"
	"github.com/quilltask/quill/internal/models"
	"github.com/quilltask/quill/internal/storage"
	"github.com/quilltask/quill/internal/taskstore"
)

// Mode is the controller's top-level state.
type Mode int

const (
	// Viewing is the default task-list state.
	Viewing Mode = iota
	// Editing delegates text entry (add or edit) to the rendering layer.
	Editing
	// Configuring delegates the storage config form to the rendering layer.
	Configuring
)

// Level classifies a notice for display.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// Notice is a non-fatal, dismissible message for the rendering layer.
type Notice struct {
	Text  string
	Level Level
}

// Event is a discrete user action. The rendering layer maps raw key
// presses to these; the controller never sees keystrokes.
type Event interface{ isEvent() }

type (
	// Select moves the cursor by Delta, clamped at both ends.
	Select struct{ Delta int }
	// BeginAdd enters Editing with an empty input.
	BeginAdd struct{}
	// BeginEdit enters Editing prefilled with the selected task's text.
	BeginEdit struct{}
	// Delete removes the selected task.
	Delete struct{}
	// Undo restores the most recently deleted task.
	Undo struct{}
	// SetStatus assigns a concrete status to the selected task.
	SetStatus struct{ Status models.TaskStatus }
	// CycleStatus advances the selected task's status one step.
	CycleStatus struct{}
	// MoveUp reorders the selected task one position earlier.
	MoveUp struct{}
	// MoveDown reorders the selected task one position later.
	MoveDown struct{}
	// StartFresh overwrites unreadable persisted data for the active
	// context with an empty collection. Only meaningful while degraded.
	StartFresh struct{}
	// OpenConfig enters Configuring.
	OpenConfig struct{}
	// Confirm completes Editing with the entered text.
	Confirm struct{ Text string }
	// Cancel leaves Editing/Configuring, or dismisses a notice.
	Cancel struct{}
	// Quit ends the session. Accepted from Viewing only; elsewhere it
	// behaves like Cancel.
	Quit struct{}
)

func (Select) isEvent()      {}
func (BeginAdd) isEvent()    {}
func (BeginEdit) isEvent()   {}
func (Delete) isEvent()      {}
func (Undo) isEvent()        {}
func (SetStatus) isEvent()   {}
func (CycleStatus) isEvent() {}
func (MoveUp) isEvent()      {}
func (MoveDown) isEvent()    {}
func (StartFresh) isEvent()  {}
func (OpenConfig) isEvent()  {}
func (Confirm) isEvent()     {}
func (Cancel) isEvent()      {}
func (Quit) isEvent()        {}

// BackendFactory builds a storage backend from a validated configuration.
type BackendFactory func(ctx context.Context, cfg config.Config) (storage.Backend, error)

// Snapshot is the read-only view handed to the rendering layer.
type Snapshot struct {
	Tasks     models.Collection
	Cursor    int
	Context   models.Context
	Mode      Mode
	Notice    Notice
	Prefill   string // input seed when Mode == Editing
	UndoCount int
	Backend   string
	Config    config.Config
}

// Controller drives the task store from input events.
type Controller struct {
	store   *taskstore.Store
	cfg     config.Config
	factory BackendFactory

	mode    Mode
	cursor  int
	editID  int64 // task being edited; -1 while adding
	prefill string
	notice  Notice
}

// New creates a controller over the store. cfg is the configuration the
// active backend was built from; factory rebuilds backends when the user
// reconfigures storage.
func New(store *taskstore.Store, cfg config.Config, factory BackendFactory) *Controller {
	return &Controller{store: store, cfg: cfg, factory: factory, editID: -1}
}

// Notify sets a pending notice, e.g. for startup storage diagnostics.
func (c *Controller) Notify(level Level, text string) {
	c.notice = Notice{Text: text, Level: level}
}

// Config returns the configuration the active backend was built from.
func (c *Controller) Config() config.Config { return c.cfg }

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Tasks:     c.store.Tasks(),
		Cursor:    c.cursor,
		Context:   c.store.ActiveContext(),
		Mode:      c.mode,
		Notice:    c.notice,
		Prefill:   c.prefill,
		UndoCount: c.store.UndoCount(),
		Backend:   c.store.Backend().Name(),
		Config:    c.cfg,
	}
}

// RefreshContext re-resolves the git context for dir and, when it
// changed, switches the store to it and resets the selection. Resolution
// failure falls back to the sentinel context instead of propagating.
func (c *Controller) RefreshContext(ctx context.Context, dir string) {
	key, err := gitctx.Resolve(dir)
	if err != nil && !errors.Is(err, gitctx.ErrNotARepository) {
		c.notice = Notice{Text: err.Error(), Level: LevelError}
		return
	}
	if key == c.store.ActiveContext() && c.store.Degraded() == nil {
		return
	}
	c.switchTo(ctx, key)
}

func (c *Controller) switchTo(ctx context.Context, key models.Context) {
	prev := c.store.ActiveContext()
	wasDegraded := c.store.Degraded() != nil
	if err := c.store.SwitchContext(ctx, key); err != nil {
		text := err.Error()
		if c.store.Degraded() != nil {
			text += " (press F to start fresh)"
		}
		c.notice = Notice{Text: text, Level: LevelError}
	} else if wasDegraded {
		c.notice = Notice{Text: "Storage readable again", Level: LevelSuccess}
	}
	if key != prev {
		c.cursor = 0
	}
	c.clampCursor()
}

// Handle processes one event and reports whether the session should end.
// Failures surface as notices; no event ever has a partial effect.
func (c *Controller) Handle(ctx context.Context, ev Event) (quit bool) {
	// Any action dismisses the previous notice.
	c.notice = Notice{}

	switch c.mode {
	case Editing:
		return c.handleEditing(ctx, ev)
	case Configuring:
		return c.handleConfiguring(ev)
	default:
		return c.handleViewing(ctx, ev)
	}
}

func (c *Controller) handleViewing(ctx context.Context, ev Event) bool {
	switch ev := ev.(type) {
	case Quit:
		return true

	case Select:
		c.cursor += ev.Delta
		c.clampCursor()

	case BeginAdd:
		c.mode = Editing
		c.editID = -1
		c.prefill = ""

	case BeginEdit:
		task, ok := c.selected()
		if !ok {
			break
		}
		if task.Status == models.StatusCompleted {
			c.fail(taskstore.ErrTaskCompleted)
			break
		}
		c.mode = Editing
		c.editID = task.ID
		c.prefill = task.Text

	case Delete:
		task, ok := c.selected()
		if !ok {
			break
		}
		removed, err := c.store.Delete(ctx, task.ID)
		if err != nil {
			c.fail(err)
			break
		}
		c.clampCursor()
		c.notice = Notice{Text: "Deleted: " + removed.Text, Level: LevelSuccess}

	case Undo:
		restored, err := c.store.RestoreLastDeleted(ctx)
		if err != nil {
			c.fail(err)
			break
		}
		if i := c.store.Tasks().IndexOf(restored.ID); i >= 0 {
			c.cursor = i
		}
		c.notice = Notice{Text: "Restored: " + restored.Text, Level: LevelSuccess}

	case SetStatus:
		task, ok := c.selected()
		if !ok {
			break
		}
		if err := c.store.SetStatus(ctx, task.ID, ev.Status); err != nil {
			c.fail(err)
		}

	case CycleStatus:
		task, ok := c.selected()
		if !ok {
			break
		}
		if err := c.store.CycleStatus(ctx, task.ID); err != nil {
			c.fail(err)
		}

	case MoveUp:
		c.moveSelected(ctx, -1)

	case MoveDown:
		c.moveSelected(ctx, +1)

	case StartFresh:
		if c.store.Degraded() == nil {
			break
		}
		if err := c.store.StartFresh(ctx); err != nil {
			c.fail(err)
			break
		}
		c.cursor = 0
		c.notice = Notice{Text: "Started fresh; unreadable data overwritten", Level: LevelSuccess}

	case OpenConfig:
		c.mode = Configuring
	}
	return false
}

func (c *Controller) handleEditing(ctx context.Context, ev Event) bool {
	switch ev := ev.(type) {
	case Confirm:
		c.mode = Viewing
		if c.editID < 0 {
			task, err := c.store.Add(ctx, ev.Text)
			if err != nil {
				c.fail(err)
				break
			}
			c.cursor = c.store.Tasks().IndexOf(task.ID)
		} else if err := c.store.Edit(ctx, c.editID, ev.Text); err != nil {
			c.fail(err)
		}
		c.editID = -1
		c.prefill = ""

	case Cancel, Quit:
		c.mode = Viewing
		c.editID = -1
		c.prefill = ""
	}
	return false
}

func (c *Controller) handleConfiguring(ev Event) bool {
	switch ev.(type) {
	case Cancel, Quit:
		c.mode = Viewing
	}
	return false
}

// ConfirmConfig applies a validated configuration produced by the config
// screen: it builds the new backend, swaps it in, and forces a fresh load
// for the active context. Data is never migrated between backends. On
// failure the previous backend and configuration stay active.
func (c *Controller) ConfirmConfig(ctx context.Context, cfg config.Config) {
	c.mode = Viewing

	backend, err := c.factory(ctx, cfg)
	if err != nil {
		c.notice = Notice{
			Text:  "Storage unchanged: " + err.Error(),
			Level: LevelError,
		}
		return
	}

	old, err := c.store.SetBackend(ctx, backend)
	if old != nil {
		old.Close()
	}
	c.cfg = cfg
	c.cursor = 0
	c.clampCursor()
	if err != nil {
		c.notice = Notice{Text: err.Error(), Level: LevelError}
		return
	}
	c.notice = Notice{Text: "Storage switched to " + backend.Name(), Level: LevelSuccess}
}

func (c *Controller) moveSelected(ctx context.Context, delta int) {
	task, ok := c.selected()
	if !ok {
		return
	}
	moved, err := func() (bool, error) {
		if delta < 0 {
			return c.store.MoveUp(ctx, task.ID)
		}
		return c.store.MoveDown(ctx, task.ID)
	}()
	if err != nil {
		c.fail(err)
		return
	}
	if moved {
		c.cursor += delta
		c.clampCursor()
	}
}

func (c *Controller) selected() (models.Task, bool) {
	tasks := c.store.Tasks()
	if len(tasks) == 0 || c.cursor < 0 || c.cursor >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[c.cursor], true
}

func (c *Controller) clampCursor() {
	n := len(c.store.Tasks())
	if c.cursor >= n {
		c.cursor = n - 1
	}
	if c.cursor < 0 {
		c.cursor = 0
	}
}

func (c *Controller) fail(err error) {
	c.notice = Notice{Text: err.Error(), Level: LevelError}
}
