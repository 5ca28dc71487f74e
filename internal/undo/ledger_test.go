package undo

import (
	"testing"

	"github.com/quilltask/quill/internal/models"
)

func entry(id int64) models.DeletedEntry {
	return models.DeletedEntry{Task: models.Task{ID: id}, Index: int(id)}
}

func TestPopMostRecent(t *testing.T) {
	var l Ledger

	if _, ok := l.PopMostRecent(); ok {
		t.Fatal("empty ledger should not pop")
	}

	l.Push(entry(1))
	l.Push(entry(2))

	got, ok := l.PopMostRecent()
	if !ok || got.Task.ID != 2 {
		t.Fatalf("expected newest entry 2, got %v (ok=%v)", got.Task.ID, ok)
	}
	got, ok = l.PopMostRecent()
	if !ok || got.Task.ID != 1 {
		t.Fatalf("expected entry 1, got %v (ok=%v)", got.Task.ID, ok)
	}
	if _, ok := l.PopMostRecent(); ok {
		t.Fatal("ledger should be empty")
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	var l Ledger

	for id := int64(1); id <= 4; id++ {
		l.Push(entry(id))
	}
	if l.Len() != Capacity {
		t.Fatalf("expected %d entries, got %d", Capacity, l.Len())
	}

	// The 4th push evicted entry 1; pops return 4, 3, 2.
	for _, want := range []int64{4, 3, 2} {
		got, ok := l.PopMostRecent()
		if !ok || got.Task.ID != want {
			t.Fatalf("expected %d, got %v (ok=%v)", want, got.Task.ID, ok)
		}
	}
	if _, ok := l.PopMostRecent(); ok {
		t.Fatal("entry 1 should have been evicted")
	}
}

func TestPushAfterWrapAround(t *testing.T) {
	var l Ledger

	for id := int64(1); id <= 5; id++ {
		l.Push(entry(id))
	}
	l.PopMostRecent() // 5
	l.Push(entry(6))

	for _, want := range []int64{6, 4, 3} {
		got, _ := l.PopMostRecent()
		if got.Task.ID != want {
			t.Fatalf("expected %d, got %d", want, got.Task.ID)
		}
	}
}

func TestClear(t *testing.T) {
	var l Ledger
	l.Push(entry(1))
	l.Push(entry(2))

	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d", l.Len())
	}
	if _, ok := l.PopMostRecent(); ok {
		t.Fatal("cleared ledger should not pop")
	}
}
