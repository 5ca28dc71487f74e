package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/quilltask/quill/internal/config"
)

// configForm is the storage configuration screen. It edits a scratch copy
// of the configuration; nothing takes effect until the user applies it.
type configForm struct {
	cfg     config.Config
	cursor  int
	field   textinput.Model
	editing bool
	errText string
}

func newConfigForm(cfg config.Config) *configForm {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50
	return &configForm{cfg: cfg, field: ti}
}

// rows returns the editable field labels for the selected storage type,
// not counting the type selector itself.
func (f *configForm) rows() []string {
	switch f.cfg.StorageType {
	case config.StorageMongo:
		return []string{"Connection string", "Database", "Collection"}
	default:
		return []string{"Path"}
	}
}

func (f *configForm) fieldValue(row int) string {
	switch f.cfg.StorageType {
	case config.StorageMongo:
		switch row {
		case 0:
			return f.cfg.Mongo.ConnectionString
		case 1:
			return f.cfg.Mongo.Database
		default:
			return f.cfg.Mongo.Collection
		}
	case config.StorageSQLite:
		return f.cfg.SQLite.Path
	default:
		return f.cfg.Local.Path
	}
}

func (f *configForm) setFieldValue(row int, v string) {
	switch f.cfg.StorageType {
	case config.StorageMongo:
		switch row {
		case 0:
			f.cfg.Mongo.ConnectionString = v
		case 1:
			f.cfg.Mongo.Database = v
		default:
			f.cfg.Mongo.Collection = v
		}
	case config.StorageSQLite:
		f.cfg.SQLite.Path = v
	default:
		f.cfg.Local.Path = v
	}
}

func (f *configForm) cycleType() {
	switch f.cfg.StorageType {
	case config.StorageLocal:
		f.cfg.StorageType = config.StorageSQLite
	case config.StorageSQLite:
		f.cfg.StorageType = config.StorageMongo
	default:
		f.cfg.StorageType = config.StorageLocal
	}
	f.cursor = 0
}

// handleKey processes one key press. It reports done=true with the edited
// configuration when the user applies it, or cancelled=true on escape.
func (f *configForm) handleKey(msg tea.KeyMsg) (done bool, cfg config.Config, cancelled bool) {
	if f.editing {
		switch msg.String() {
		case "enter":
			f.setFieldValue(f.cursor-1, strings.TrimSpace(f.field.Value()))
			f.editing = false
			f.field.Blur()
		case "esc":
			f.editing = false
			f.field.Blur()
		default:
			f.field, _ = f.field.Update(msg)
		}
		return false, config.Config{}, false
	}

	switch msg.String() {
	case "esc":
		return false, config.Config{}, true
	case "up", "k":
		if f.cursor > 0 {
			f.cursor--
		}
	case "down", "j":
		if f.cursor < len(f.rows()) {
			f.cursor++
		}
	case "enter":
		if f.cursor == 0 {
			f.cycleType()
			break
		}
		f.editing = true
		f.field.SetValue(f.fieldValue(f.cursor - 1))
		f.field.CursorEnd()
		f.field.Focus()
	case "s":
		if err := f.cfg.Validate(); err != nil {
			f.errText = err.Error()
			break
		}
		return true, f.cfg, false
	}
	return false, config.Config{}, false
}

func (f *configForm) view() string {
	var b strings.Builder
	b.WriteString("\n  Storage configuration\n\n")

	rowStyle := taskItemStyle
	line := fmt.Sprintf("Type: %s", f.cfg.StorageType)
	if f.cursor == 0 {
		b.WriteString(selectedStyle.Render("▶ "+line) + "\n")
	} else {
		b.WriteString(rowStyle.Render("  "+line) + "\n")
	}

	for i, label := range f.rows() {
		line := fmt.Sprintf("%s: %s", label, f.fieldValue(i))
		if f.cursor == i+1 {
			if f.editing {
				b.WriteString(selectedStyle.Render("▶ "+label+":") + " " + inputBoxStyle.Render(f.field.View()) + "\n")
			} else {
				b.WriteString(selectedStyle.Render("▶ "+line) + "\n")
			}
		} else {
			b.WriteString(rowStyle.Render("  "+line) + "\n")
		}
	}

	if f.errText != "" {
		b.WriteString("\n  " + lipgloss.NewStyle().Foreground(errorColor).Render(f.errText) + "\n")
	}
	b.WriteString("\n  " + helpStyle.Render("Switching backends does not migrate existing tasks.") + "\n")
	return b.String()
}
