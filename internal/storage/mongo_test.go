package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/quilltask/quill/internal/config"
)

// newTestMongo connects to the server named by QUILL_TEST_MONGO_URI,
// using a collection unique to this test run. Skipped when unset.
func newTestMongo(t *testing.T) *Mongo {
	t.Helper()
	uri := os.Getenv("QUILL_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("QUILL_TEST_MONGO_URI not set")
	}

	m, err := NewMongo(context.Background(), config.MongoConfig{
		ConnectionString: uri,
		Database:         "quill_test",
		Collection:       fmt.Sprintf("tasks_%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("NewMongo failed: %v", err)
	}
	t.Cleanup(func() {
		m.coll.Drop(context.Background())
		m.Close()
	})
	return m
}

func TestMongoRoundTrip(t *testing.T) {
	m := newTestMongo(t)
	ctx := context.Background()
	want := testTasks()

	if err := m.Save(ctx, testCtx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := m.Load(ctx, testCtx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sameTasks(t, got, want)
}

func TestMongoLoadMissingIsEmpty(t *testing.T) {
	m := newTestMongo(t)

	got, err := m.Load(context.Background(), testCtx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty collection, got %d tasks", len(got))
	}
}

func TestMongoConnectionFailure(t *testing.T) {
	if os.Getenv("QUILL_TEST_MONGO_URI") == "" {
		t.Skip("QUILL_TEST_MONGO_URI not set")
	}

	// Nothing listens on port 1; the single connection attempt must
	// surface ErrConnection instead of retrying.
	_, err := NewMongo(context.Background(), config.MongoConfig{
		ConnectionString: "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=500",
		Database:         "quill_test",
		Collection:       "tasks",
	})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}
