package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	want := Default()
	want.StorageType = StorageMongo
	want.Mongo.ConnectionString = "mongodb://db.example:27017"
	want.Mongo.Database = "quill_prod"

	if err := want.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("round trip: got %+v, want %+v", got, want)
	}
}

func TestSaveCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "config.json")
	if err := Default().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
}

func TestLoadPartialFileKeepsDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(path, []byte(`{"storage_type": "sqlite"}`), 0o644)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorageType != StorageSQLite {
		t.Errorf("storage type = %q", cfg.StorageType)
	}
	if cfg.Mongo != Default().Mongo {
		t.Errorf("omitted section lost its defaults: %+v", cfg.Mongo)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"sqlite", func(c *Config) { c.StorageType = StorageSQLite }, true},
		{"mongo", func(c *Config) { c.StorageType = StorageMongo }, true},
		{"unknown type", func(c *Config) { c.StorageType = "redis" }, false},
		{"empty type", func(c *Config) { c.StorageType = "" }, false},
		{"local without path", func(c *Config) { c.Local.Path = "  " }, false},
		{"sqlite without path", func(c *Config) {
			c.StorageType = StorageSQLite
			c.SQLite.Path = ""
		}, false},
		{"mongo without connection string", func(c *Config) {
			c.StorageType = StorageMongo
			c.Mongo.ConnectionString = ""
		}, false},
		{"mongo without database", func(c *Config) {
			c.StorageType = StorageMongo
			c.Mongo.Database = ""
		}, false},
		{"mongo without collection", func(c *Config) {
			c.StorageType = StorageMongo
			c.Mongo.Collection = ""
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestSaveRefusesInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.StorageType = "redis"

	if err := cfg.Save(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Save = %v, want ErrInvalid", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("invalid config was written anyway")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	if got := ExpandPath("~/.quill/tasks"); got != filepath.Join(home, ".quill", "tasks") {
		t.Errorf("ExpandPath(~/.quill/tasks) = %q", got)
	}
	if got := ExpandPath("~"); got != home {
		t.Errorf("ExpandPath(~) = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := ExpandPath("relative/path"); got != "relative/path" {
		t.Errorf("relative path changed: %q", got)
	}
	if strings.HasPrefix(ExpandPath("~user/x"), home) {
		t.Error("~user must not expand against the current home")
	}
}
