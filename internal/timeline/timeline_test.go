package timeline

import (
	"testing"

	"bugforge/internal/domain"
)

func bugAt(created, updated string) domain.Bug {
	return domain.Bug{
		ID:        "bug-1",
		Title:     "Crash on save",
		Status:    "new",
		Reporter:  "alice",
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func TestSynthesizeFreshBug(t *testing.T) {
	got := Synthesize(bugAt("2026-01-02T10:00:00Z", "2026-01-02T10:00:00Z"), nil)
	if len(got) != 1 {
		t.Fatalf("expected only created event, got %d", len(got))
	}
	if got[0].Type != "created" || got[0].Actor != "alice" {
		t.Fatalf("unexpected created event: %+v", got[0])
	}
}

func TestSynthesizeHeuristicEvents(t *testing.T) {
	b := bugAt("2026-01-02T10:00:00Z", "2026-01-03T09:00:00Z")
	b.Assignee = "bob"
	b.Status = "in-progress"
	got := Synthesize(b, nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(got), got)
	}
	if got[0].Type != "created" {
		t.Fatalf("timeline must open with created, got %s", got[0].Type)
	}
	types := map[string]bool{}
	for _, e := range got {
		types[e.Type] = true
	}
	if !types["assigned"] || !types["status_change"] {
		t.Fatalf("missing heuristic events: %v", types)
	}
}

func TestStoredEventsSuppressHeuristics(t *testing.T) {
	b := bugAt("2026-01-02T10:00:00Z", "2026-01-03T09:00:00Z")
	b.Assignee = "bob"
	stored := []domain.TimelineEntry{{
		BugID: "bug-1",
		Type:  "assigned",
		Title: "Assigned to bob",
		Actor: "carol",
		TS:    "2026-01-02T12:00:00Z",
	}}
	got := Synthesize(b, stored)
	var assigned int
	for _, e := range got {
		if e.Type == "assigned" {
			assigned++
			if e.Actor != "carol" {
				t.Fatalf("stored event replaced by heuristic: %+v", e)
			}
		}
	}
	if assigned != 1 {
		t.Fatalf("expected exactly one assigned event, got %d", assigned)
	}
}

func TestSynthesizeOrdering(t *testing.T) {
	b := bugAt("2026-01-02T10:00:00Z", "2026-01-02T10:00:00Z")
	stored := []domain.TimelineEntry{
		{BugID: "bug-1", Type: "comment", Title: "second", TS: "2026-01-04T00:00:00Z"},
		{BugID: "bug-1", Type: "comment", Title: "first", TS: "2026-01-03T00:00:00Z"},
	}
	got := Synthesize(b, stored)
	for i := 1; i < len(got); i++ {
		if got[i-1].TS > got[i].TS {
			t.Fatalf("timeline not ascending at %d: %s > %s", i, got[i-1].TS, got[i].TS)
		}
	}
	if got[0].Type != "created" {
		t.Fatalf("created must come first, got %s", got[0].Type)
	}
}
