// Package notify creates notifications for mentions and assignments.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bugforge/internal/domain"
	"bugforge/internal/mention"
	"bugforge/internal/repo"
	"bugforge/internal/sidelog"
)

// Dispatcher fans comment mentions and assignments out to notification
// rows. Every write is best-effort: one failed insert is recorded in
// Failures and does not stop the rest.
type Dispatcher struct {
	Repo           repo.Repo
	Now            func() time.Time
	Failures       *sidelog.Log
	ResolveMembers bool
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// NotifyMentions extracts @tokens from body and creates one notification
// per occurrence. When ResolveMembers is set, tokens matching a project
// team member name are stored under the member's user_ref; unmatched
// tokens are kept as typed.
func (d *Dispatcher) NotifyMentions(ctx context.Context, projectID, actor, commentID, body string) []domain.Notification {
	tokens := mention.Extract(body)
	if len(tokens) == 0 {
		return nil
	}
	created := make([]domain.Notification, 0, len(tokens))
	for _, token := range tokens {
		target := token
		if d.ResolveMembers {
			member, err := d.Repo.FindTeamMemberByName(ctx, projectID, token)
			switch {
			case err == nil:
				target = member.UserRef
			case errors.Is(err, repo.ErrNotFound):
			default:
				d.Failures.Record(fmt.Sprintf("resolve mention @%s", token), err)
			}
		}
		id := commentID
		n := domain.Notification{
			ID:        uuid.NewString(),
			Target:    target,
			CommentID: &id,
			Message:   fmt.Sprintf("You were mentioned in a comment by %s", actor),
			CreatedAt: d.now().Format(time.RFC3339),
		}
		if err := d.Repo.InsertNotification(ctx, n); err != nil {
			d.Failures.Record(fmt.Sprintf("notify mention @%s", token), err)
			continue
		}
		created = append(created, n)
	}
	return created
}

// NotifyAssignment tells target it now owns an item. itemType is "bug" or
// "test case".
func (d *Dispatcher) NotifyAssignment(ctx context.Context, target, actor, itemType, itemTitle string) *domain.Notification {
	if target == "" || target == actor {
		return nil
	}
	n := domain.Notification{
		ID:        uuid.NewString(),
		Target:    target,
		Message:   fmt.Sprintf("You were assigned to %s: %s by %s", itemType, itemTitle, actor),
		CreatedAt: d.now().Format(time.RFC3339),
	}
	if err := d.Repo.InsertNotification(ctx, n); err != nil {
		d.Failures.Record(fmt.Sprintf("notify assignment %s", target), err)
		return nil
	}
	return &n
}
