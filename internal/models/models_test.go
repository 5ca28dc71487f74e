package models

import "testing"

func TestStatusCycle(t *testing.T) {
	cases := map[TaskStatus]TaskStatus{
		StatusNotStarted: StatusInProgress,
		StatusInProgress: StatusCompleted,
		StatusCompleted:  StatusNotStarted,
	}
	for from, want := range cases {
		if got := from.Next(); got != want {
			t.Errorf("%s.Next() = %s, want %s", from, got, want)
		}
	}

	// Three steps return to the origin.
	s := StatusInProgress
	if got := s.Next().Next().Next(); got != s {
		t.Errorf("cycling three times gave %s, want %s", got, s)
	}
}

func TestNextID(t *testing.T) {
	if got := (Collection{}).NextID(); got != 0 {
		t.Errorf("empty collection NextID = %d, want 0", got)
	}

	c := Collection{{ID: 0}, {ID: 5}, {ID: 2}}
	if got := c.NextID(); got != 6 {
		t.Errorf("NextID = %d, want 6", got)
	}
}

func TestContextEquality(t *testing.T) {
	a := Context{Org: "Acme", Repo: "widgets", Branch: "main"}
	b := Context{Org: "Acme", Repo: "widgets", Branch: "main"}
	if a != b {
		t.Error("identical contexts should compare equal")
	}

	// Case-sensitive on every field.
	c := Context{Org: "acme", Repo: "widgets", Branch: "main"}
	if a == c {
		t.Error("contexts differing in case should not compare equal")
	}

	if !None.IsNone() || a.IsNone() {
		t.Error("IsNone should hold exactly for the sentinel context")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := Collection{{ID: 1, Text: "one"}}
	clone := c.Clone()
	clone[0].Text = "changed"
	if c[0].Text != "one" {
		t.Error("mutating a clone must not touch the original")
	}
}
