// Package tui renders the Quill session in the terminal. It owns no task
// state: raw key presses become session events, and every frame is drawn
// from a session snapshot.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/quilltask/quill/internal/models"
	"github.com/quilltask/quill/internal/session"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	contextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06B6D4"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	completedStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Strikethrough(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

// contextTickMsg fires the periodic git-context re-resolution.
type contextTickMsg time.Time

// App is the bubbletea model wrapping a session controller.
type App struct {
	ctrl     *session.Controller
	input    textinput.Model
	form     *configForm
	workdir  string
	confPath string
	width    int
	height   int
}

// New creates the TUI over an initialized controller. workdir is where
// git contexts are resolved from; confPath is where configuration changes
// are persisted.
func New(ctrl *session.Controller, workdir, confPath string) *App {
	ti := textinput.New()
	ti.Placeholder = "Task text"
	ti.CharLimit = 256
	ti.Width = 60

	return &App{
		ctrl:     ctrl,
		input:    ti,
		workdir:  workdir,
		confPath: confPath,
	}
}

// Run starts the interactive session.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.tickContext())
}

func (a *App) tickContext() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return contextTickMsg(t)
	})
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6
		return a, nil

	case contextTickMsg:
		// Cheap enough for every tick; the controller debounces by
		// comparing against the previously resolved context.
		a.ctrl.RefreshContext(context.Background(), a.workdir)
		return a, a.tickContext()

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	switch a.ctrl.Snapshot().Mode {
	case session.Editing:
		return a.handleEditingKey(msg)
	case session.Configuring:
		return a.handleConfiguringKey(msg)
	default:
		return a.handleViewingKey(msg)
	}
}

func (a *App) handleViewingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	switch msg.String() {
	case "q":
		if a.ctrl.Handle(ctx, session.Quit{}) {
			return a, tea.Quit
		}
	case "up", "k":
		a.ctrl.Handle(ctx, session.Select{Delta: -1})
	case "down", "j":
		a.ctrl.Handle(ctx, session.Select{Delta: +1})
	case "ctrl+k", "ctrl+up":
		a.ctrl.Handle(ctx, session.MoveUp{})
	case "ctrl+j", "ctrl+down":
		a.ctrl.Handle(ctx, session.MoveDown{})
	case "a":
		a.ctrl.Handle(ctx, session.BeginAdd{})
		a.syncInput()
	case "e":
		a.ctrl.Handle(ctx, session.BeginEdit{})
		a.syncInput()
	case "d":
		a.ctrl.Handle(ctx, session.Delete{})
	case "u":
		a.ctrl.Handle(ctx, session.Undo{})
	case "F":
		a.ctrl.Handle(ctx, session.StartFresh{})
	case " ":
		a.ctrl.Handle(ctx, session.CycleStatus{})
	case "1":
		a.ctrl.Handle(ctx, session.SetStatus{Status: models.StatusNotStarted})
	case "2":
		a.ctrl.Handle(ctx, session.SetStatus{Status: models.StatusInProgress})
	case "3":
		a.ctrl.Handle(ctx, session.SetStatus{Status: models.StatusCompleted})
	case "c":
		a.ctrl.Handle(ctx, session.OpenConfig{})
		a.form = newConfigForm(a.ctrl.Config())
	case "esc":
		a.ctrl.Handle(ctx, session.Cancel{})
	}
	return a, nil
}

// syncInput seeds the text input after the controller entered Editing.
func (a *App) syncInput() {
	snap := a.ctrl.Snapshot()
	if snap.Mode != session.Editing {
		return
	}
	a.input.SetValue(snap.Prefill)
	a.input.CursorEnd()
	a.input.Focus()
}

func (a *App) handleEditingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	switch msg.String() {
	case "enter":
		text := a.input.Value()
		a.input.SetValue("")
		a.input.Blur()
		a.ctrl.Handle(ctx, session.Confirm{Text: text})
		return a, nil
	case "esc":
		a.input.SetValue("")
		a.input.Blur()
		a.ctrl.Handle(ctx, session.Cancel{})
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleConfiguringKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	done, cfg, cancelled := a.form.handleKey(msg)
	if cancelled {
		a.ctrl.Handle(ctx, session.Cancel{})
		a.form = nil
		return a, nil
	}
	if done {
		a.ctrl.ConfirmConfig(ctx, cfg)
		a.form = nil
		// Persist only when the controller actually adopted the config.
		if a.ctrl.Config() == cfg {
			if err := cfg.Save(a.confPath); err != nil {
				a.ctrl.Notify(session.LevelError, "Config not saved: "+err.Error())
			}
		}
	}
	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	snap := a.ctrl.Snapshot()

	var b strings.Builder
	header := titleStyle.Render("Quill")
	header += "  " + contextStyle.Render(snap.Context.Label())
	header += "  " + helpStyle.Render("["+snap.Backend+"]")
	b.WriteString(header + "\n")
	if a.width > 0 {
		b.WriteString(strings.Repeat("─", a.width) + "\n")
	}

	switch snap.Mode {
	case session.Configuring:
		b.WriteString(a.form.view())
	default:
		b.WriteString(a.renderTasks(snap))
	}

	// Notice line
	b.WriteString("\n")
	if snap.Notice.Text != "" {
		style := lipgloss.NewStyle().Foreground(successColor)
		switch snap.Notice.Level {
		case session.LevelError:
			style = lipgloss.NewStyle().Foreground(errorColor)
		case session.LevelInfo:
			style = lipgloss.NewStyle().Foreground(mutedColor)
		}
		b.WriteString(style.Render(snap.Notice.Text))
	}
	b.WriteString("\n")

	if snap.Mode == session.Editing {
		b.WriteString(inputBoxStyle.Render(a.input.View()) + "\n")
	}

	var status string
	switch snap.Mode {
	case session.Editing:
		status = " Enter:save | Esc:cancel"
	case session.Configuring:
		status = " ↑↓:field | Enter:edit/cycle | s:apply | Esc:cancel"
	default:
		status = fmt.Sprintf(" %d tasks | a:add e:edit d:del u:undo space:status c:config q:quit", len(snap.Tasks))
	}
	b.WriteString(statusBarStyle.Width(max(a.width, len(status))).Render(status))

	return b.String()
}

func (a *App) renderTasks(snap session.Snapshot) string {
	if len(snap.Tasks) == 0 {
		return "\n  No tasks in this context. Press a to add one.\n"
	}

	var lines []string
	for i, task := range snap.Tasks {
		icon := statusIcon(task.Status)
		text := task.Text
		if task.Status == models.StatusCompleted {
			text = completedStyle.Render(text)
		}
		if i == snap.Cursor {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s %s", icon, task.Text)))
		} else {
			lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s %s", icon, text)))
		}
	}

	height := a.height - 7
	if height > 0 && len(lines) > height {
		start := snap.Cursor - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func statusIcon(s models.TaskStatus) string {
	switch s {
	case models.StatusInProgress:
		return lipgloss.NewStyle().Foreground(warningColor).Render("◐")
	case models.StatusCompleted:
		return lipgloss.NewStyle().Foreground(successColor).Render("●")
	default:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("○")
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
