// Package timeline synthesizes a bug's chronological history from its
// current row plus any explicitly recorded events.
package timeline

import (
	"fmt"
	"sort"

	"bugforge/internal/domain"
)

// Synthesize merges the bug row with stored events into one ascending
// timeline. A "created" event always opens the timeline and is derived
// from the row, never stored. When no explicit assignment or status
// event was recorded but the row shows evidence of one, a heuristic
// entry stamped with updated_at fills the gap; recorded events of the
// same type suppress the heuristic.
func Synthesize(bug domain.Bug, stored []domain.TimelineEntry) []domain.TimelineEntry {
	entries := make([]domain.TimelineEntry, 0, len(stored)+3)
	entries = append(entries, domain.TimelineEntry{
		BugID:       bug.ID,
		Type:        "created",
		Title:       "Bug reported",
		Description: bug.Title,
		Actor:       bug.Reporter,
		TS:          bug.CreatedAt,
	})

	hasType := map[string]bool{}
	for _, e := range stored {
		hasType[e.Type] = true
	}
	mutated := bug.UpdatedAt != bug.CreatedAt

	if bug.Assignee != "" && mutated && !hasType["assigned"] {
		entries = append(entries, domain.TimelineEntry{
			BugID:   bug.ID,
			Type:    "assigned",
			Title:   fmt.Sprintf("Assigned to %s", bug.Assignee),
			Details: map[string]string{"assignee": bug.Assignee},
			TS:      bug.UpdatedAt,
		})
	}
	if bug.Status != "new" && mutated && !hasType["status_change"] {
		entries = append(entries, domain.TimelineEntry{
			BugID:   bug.ID,
			Type:    "status_change",
			Title:   fmt.Sprintf("Status changed to %s", bug.Status),
			Details: map[string]string{"to": bug.Status},
			TS:      bug.UpdatedAt,
		})
	}

	entries = append(entries, stored...)

	// RFC3339 timestamps in UTC sort correctly as strings. The sort is
	// stable so same-instant events keep insertion order.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].TS < entries[j].TS })
	return entries
}
