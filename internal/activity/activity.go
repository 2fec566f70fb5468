// Package activity records and lists the audit trail of actor actions.
package activity

import (
	"context"
	"fmt"
	"time"

	"bugforge/internal/domain"
	"bugforge/internal/repo"
	"bugforge/internal/sidelog"
)

// ActionKind is the closed set of recognized action vocabulary. Anything
// else is carried verbatim under KindOther rather than coerced.
type ActionKind int

const (
	KindAssignedToBug ActionKind = iota
	KindAssignedToTestCase
	KindMentionedInComment
	KindOther
)

const (
	labelAssignedToBug      = "assigned to bug"
	labelAssignedToTestCase = "assigned to test case"
	labelMentionedInComment = "mentioned in comment"
)

// Action is what an actor did. Use the constructors; a zero Action is
// KindAssignedToBug and almost certainly not what you meant.
type Action struct {
	Kind  ActionKind
	label string
}

func AssignedToBug() Action      { return Action{Kind: KindAssignedToBug} }
func AssignedToTestCase() Action { return Action{Kind: KindAssignedToTestCase} }
func MentionedInComment() Action { return Action{Kind: KindMentionedInComment} }
func Other(label string) Action  { return Action{Kind: KindOther, label: label} }

// ParseAction maps a stored label back to an Action. Unrecognized labels
// round-trip through Other.
func ParseAction(label string) Action {
	switch label {
	case labelAssignedToBug:
		return AssignedToBug()
	case labelAssignedToTestCase:
		return AssignedToTestCase()
	case labelMentionedInComment:
		return MentionedInComment()
	default:
		return Other(label)
	}
}

func (a Action) String() string {
	switch a.Kind {
	case KindAssignedToBug:
		return labelAssignedToBug
	case KindAssignedToTestCase:
		return labelAssignedToTestCase
	case KindMentionedInComment:
		return labelMentionedInComment
	default:
		return a.label
	}
}

// Logger appends activity entries best-effort: a failed write is recorded
// in Failures and never surfaces to the caller's operation.
type Logger struct {
	Repo     repo.Repo
	Now      func() time.Time
	Failures *sidelog.Log
}

func (l *Logger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

// Log records an action. Details is free text shown alongside the entry.
// For Other actions the raw label is kept in its own column so readers can
// tell a recognized action from a passthrough one.
func (l *Logger) Log(ctx context.Context, actor string, action Action, details string) {
	entry := domain.ActivityEntry{
		Actor:     actor,
		Action:    action.String(),
		Details:   details,
		CreatedAt: l.now().Format(time.RFC3339),
	}
	if action.Kind == KindOther {
		entry.Label = action.label
	}
	if _, err := l.Repo.InsertActivity(ctx, entry); err != nil {
		l.Failures.Record(fmt.Sprintf("activity %s by %s", action, actor), err)
	}
}

// List returns the newest entries, capped at limit (default 100).
func (l *Logger) List(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return l.Repo.ListActivity(ctx, limit)
}

// ListByActor returns the newest entries for one actor, capped at limit
// (default 50).
func (l *Logger) ListByActor(ctx context.Context, actor string, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return l.Repo.ListActivityByActor(ctx, actor, limit)
}
