package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quilltask/quill/internal/models"
)

var testCtx = models.Context{Org: "Acme", Repo: "widgets", Branch: "main"}

func testTasks() models.Collection {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return models.Collection{
		{ID: 0, Text: "write spec", Status: models.StatusNotStarted, CreatedAt: created},
		{ID: 1, Text: "review spec", Status: models.StatusInProgress, CreatedAt: created.Add(time.Minute)},
		{ID: 2, Text: "ship it", Status: models.StatusCompleted, CreatedAt: created.Add(2 * time.Minute)},
	}
}

// sameTasks compares collections field by field, treating timestamps as
// equal when they denote the same instant.
func sameTasks(t *testing.T, got, want models.Collection) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tasks, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.ID != w.ID || g.Text != w.Text || g.Status != w.Status || !g.CreatedAt.Equal(w.CreatedAt) {
			t.Fatalf("task %d: got %+v, want %+v", i, g, w)
		}
	}
}

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return l
}

func TestLocalLoadMissingIsEmpty(t *testing.T) {
	l := newTestLocal(t)

	tasks, err := l.Load(context.Background(), testCtx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty collection, got %d tasks", len(tasks))
	}
}

func TestLocalRoundTrip(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	want := testTasks()

	if err := l.Save(ctx, testCtx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := l.Load(ctx, testCtx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sameTasks(t, got, want)
}

func TestLocalOverwrite(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	if err := l.Save(ctx, testCtx, testTasks()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	want := testTasks()[:1]
	if err := l.Save(ctx, testCtx, want); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := l.Load(ctx, testCtx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sameTasks(t, got, want)
}

func TestLocalContextIsolation(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	other := models.Context{Org: "Acme", Repo: "widgets", Branch: "feature-x"}
	if err := l.Save(ctx, testCtx, testTasks()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := l.Load(ctx, other)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("tasks leaked across contexts: %d", len(got))
	}
}

func TestLocalBranchWithSeparator(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	key := models.Context{Org: "Acme", Repo: "widgets", Branch: "feature/undo-ledger"}
	want := testTasks()
	if err := l.Save(ctx, key, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := l.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sameTasks(t, got, want)
}

func TestLocalSentinelContext(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	want := testTasks()[:1]
	if err := l.Save(ctx, models.None, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := l.Load(ctx, models.None)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sameTasks(t, got, want)
}

func TestLocalDecodeErrorPreservesFile(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	if err := l.Save(ctx, testCtx, testTasks()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	corrupt := []byte("{not json")
	if err := os.WriteFile(l.Path(testCtx), corrupt, 0o644); err != nil {
		t.Fatalf("corrupting file failed: %v", err)
	}

	_, err := l.Load(ctx, testCtx)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}

	// The unreadable data must survive the failed load.
	data, err := os.ReadFile(l.Path(testCtx))
	if err != nil {
		t.Fatalf("reading back failed: %v", err)
	}
	if string(data) != string(corrupt) {
		t.Fatal("decode failure must not modify the stored file")
	}
}

func TestLocalUnknownStatusIsDecodeError(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Dir(l.Path(testCtx)), 0o755); err != nil {
		t.Fatal(err)
	}
	bad := []byte(`[{"id":0,"text":"x","status":"Paused","created_at":"2026-03-14T09:26:53Z"}]`)
	if err := os.WriteFile(l.Path(testCtx), bad, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Load(ctx, testCtx); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for unknown status, got %v", err)
	}
}
