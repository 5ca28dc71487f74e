// Package config loads and persists the Quill session configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StorageType selects the storage backend implementation.
type StorageType string

const (
	StorageLocal  StorageType = "local"
	StorageSQLite StorageType = "sqlite"
	StorageMongo  StorageType = "mongo"
)

// ErrInvalid indicates a configuration that must not reach the task store.
var ErrInvalid = errors.New("invalid configuration")

// LocalConfig configures the per-context JSON file backend.
type LocalConfig struct {
	// Path is the root directory holding one JSON file per context.
	Path string `json:"path"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path string `json:"path"`
}

// MongoConfig configures the remote document-store backend.
type MongoConfig struct {
	ConnectionString string `json:"connection_string"`
	Database         string `json:"database"`
	Collection       string `json:"collection"`
}

// Config is the validated session configuration. The task store treats it
// as an opaque value and never mutates it.
type Config struct {
	StorageType StorageType  `json:"storage_type"`
	Local       LocalConfig  `json:"local_config"`
	SQLite      SQLiteConfig `json:"sqlite_config"`
	Mongo       MongoConfig  `json:"mongo_config"`
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	return Config{
		StorageType: StorageLocal,
		Local:       LocalConfig{Path: "~/.quill/tasks"},
		SQLite:      SQLiteConfig{Path: "~/.quill/quill.db"},
		Mongo: MongoConfig{
			ConnectionString: "mongodb://localhost:27017",
			Database:         "quill",
			Collection:       "tasks",
		},
	}
}

// DefaultPath returns the config file location, ~/.quill/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".quill", "config.json"), nil
}

// Load reads the configuration at path, falling back to Default when the
// file does not exist yet.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the configuration atomically, creating parent directories
// as needed.
func (c Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Validate rejects configurations with missing required fields for the
// selected storage type.
func (c Config) Validate() error {
	switch c.StorageType {
	case StorageLocal:
		if strings.TrimSpace(c.Local.Path) == "" {
			return fmt.Errorf("%w: local storage requires a path", ErrInvalid)
		}
	case StorageSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return fmt.Errorf("%w: sqlite storage requires a path", ErrInvalid)
		}
	case StorageMongo:
		if strings.TrimSpace(c.Mongo.ConnectionString) == "" {
			return fmt.Errorf("%w: mongo storage requires a connection string", ErrInvalid)
		}
		if strings.TrimSpace(c.Mongo.Database) == "" || strings.TrimSpace(c.Mongo.Collection) == "" {
			return fmt.Errorf("%w: mongo storage requires database and collection names", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalid, c.StorageType)
	}
	return nil
}

// ExpandPath resolves a leading "~/" against the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
		}
	}
	return path
}
