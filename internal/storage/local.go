package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/quilltask/quill/internal/models"
)

// Local persists one JSON file per context under a root directory.
type Local struct {
	root string
}

// NewLocal creates a Local backend rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: dir}, nil
}

// Name implements Backend.
func (l *Local) Name() string { return "local" }

// Close implements Backend. The local backend holds no resources.
func (l *Local) Close() error { return nil }

// Path returns the file backing the given context:
// <root>/<org>/<repo>/<branch>.json with percent-escaped segments.
func (l *Local) Path(key models.Context) string {
	return filepath.Join(l.root, segment(key.Org), segment(key.Repo), segment(key.Branch)+".json")
}

// segment makes a context field safe as a single path element. Branch
// names may contain separators; empty fields (the sentinel context) map
// to "_".
func segment(s string) string {
	if s == "" {
		return "_"
	}
	return url.PathEscape(s)
}

// Load implements Backend.
func (l *Local) Load(_ context.Context, key models.Context) (models.Collection, error) {
	data, err := os.ReadFile(l.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return models.Collection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}

	var tasks models.Collection
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, l.Path(key), err)
	}
	if err := validate(tasks); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, l.Path(key), err)
	}
	return tasks, nil
}

// Save implements Backend. The collection is written to a uniquely named
// temp file and renamed into place so concurrent readers never observe a
// torn write.
func (l *Local) Save(_ context.Context, key models.Context, tasks models.Collection) error {
	path := l.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create context directory: %w", err)
	}

	if tasks == nil {
		tasks = models.Collection{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tasks: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace tasks: %w", err)
	}
	return nil
}
