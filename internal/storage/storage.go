// Package storage provides pluggable, context-scoped persistence for task
// collections. All backends share full-collection overwrite semantics and
// identical observable behavior for identical logical content.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/quilltask/quill/internal/config"
	"github.com/quilltask/quill/internal/models"
)

// Sentinel errors for storage operations.
var (
	// ErrDecode means existing persisted data could not be parsed. The
	// data is left untouched on disk; callers must surface this instead
	// of overwriting.
	ErrDecode = errors.New("stored data is malformed")

	// ErrConnection means the backend could not be reached. One attempt
	// per session; the session degrades instead of retrying.
	ErrConnection = errors.New("storage connection failed")

	// ErrQuery means a remote read or write failed after connecting.
	ErrQuery = errors.New("storage query failed")
)

// Backend is the capability interface over durable task storage.
// Load returns an empty collection, not an error, when no data exists
// for the context. Save overwrites the whole collection for the context,
// as atomically as the backing store allows.
type Backend interface {
	Name() string
	Load(ctx context.Context, key models.Context) (models.Collection, error)
	Save(ctx context.Context, key models.Context, tasks models.Collection) error
	Close() error
}

// Open constructs the backend selected by cfg. The remote backend connects
// (and pings) eagerly so a bad configuration is reported once, up front.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.StorageType {
	case config.StorageLocal:
		return NewLocal(config.ExpandPath(cfg.Local.Path))
	case config.StorageSQLite:
		return NewSQLite(config.ExpandPath(cfg.SQLite.Path))
	case config.StorageMongo:
		return NewMongo(ctx, cfg.Mongo)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}

// validate rejects collections carrying statuses outside the closed set,
// so malformed persisted data surfaces as a decode problem rather than
// leaking into the task store.
func validate(tasks models.Collection) error {
	for _, t := range tasks {
		if !t.Status.Valid() {
			return fmt.Errorf("task %d has unknown status %q", t.ID, t.Status)
		}
	}
	return nil
}
