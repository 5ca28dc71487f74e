package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quilltask/quill/internal/models"
	_ "modernc.org/sqlite"
)

// SQLite persists all contexts in a single database file. Its Save is a
// transactional delete-and-insert over the context filter, so overwrites
// are atomic even against concurrent readers.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the database at path and runs migrations.
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// modernc's driver takes pragmas in _pragma=name(value) form.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		org TEXT NOT NULL,
		repo TEXT NOT NULL,
		branch TEXT NOT NULL,
		id INTEGER NOT NULL,
		pos INTEGER NOT NULL,
		text TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (org, repo, branch, id)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_context ON tasks(org, repo, branch);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Name implements Backend.
func (s *SQLite) Name() string { return "sqlite" }

// Close implements Backend.
func (s *SQLite) Close() error { return s.db.Close() }

// Load implements Backend.
func (s *SQLite) Load(ctx context.Context, key models.Context) (models.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, status, created_at FROM tasks WHERE org = ? AND repo = ? AND branch = ? ORDER BY pos`,
		key.Org, key.Repo, key.Branch,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := models.Collection{}
	for rows.Next() {
		var t models.Task
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Text, &t.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("%w: task %d: bad created_at %q", ErrDecode, t.ID, createdAt)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	if err := validate(tasks); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, s.path, err)
	}
	return tasks, nil
}

// Save implements Backend.
func (s *SQLite) Save(ctx context.Context, key models.Context, tasks models.Collection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tasks WHERE org = ? AND repo = ? AND branch = ?`,
		key.Org, key.Repo, key.Branch,
	); err != nil {
		return fmt.Errorf("clear context: %w", err)
	}

	for pos, t := range tasks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (org, repo, branch, id, pos, text, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			key.Org, key.Repo, key.Branch, t.ID, pos, t.Text, string(t.Status), t.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert task %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
