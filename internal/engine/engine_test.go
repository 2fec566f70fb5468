package engine_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"bugforge/internal/config"
	"bugforge/internal/db"
	"bugforge/internal/engine"
	"bugforge/internal/migrate"
	"bugforge/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("proj-1")
	eng := engine.New(conn, cfg)
	eng = eng.WithNow(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
	ctx := context.Background()
	if _, err := eng.InitProject(ctx, "proj-1", "Test Project", "", "tester"); err != nil {
		t.Fatalf("init project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func TestBugStepsRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	steps := []string{"open settings", "toggle dark mode", "observe crash"}
	bug, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{
		ProjectID: "proj-1",
		Title:     "Crash on toggle",
		Steps:     steps,
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create bug: %v", err)
	}
	got, err := env.Engine.Repo.GetBug(env.Ctx, bug.ID)
	if err != nil {
		t.Fatalf("get bug: %v", err)
	}
	if !reflect.DeepEqual(got.Steps, steps) {
		t.Fatalf("steps = %v, want %v", got.Steps, steps)
	}
	if got.Status != "new" || got.Severity != "medium" || got.Priority != "medium" {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestAdvanceStatusChain(t *testing.T) {
	env := newTestEnv(t)
	bug, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{ProjectID: "proj-1", Title: "advance me", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"assigned", "in-progress", "testing", "resolved", "closed"}
	for _, status := range want {
		bug, err = env.Engine.AdvanceBugStatus(env.Ctx, bug.ID, "tester")
		if err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
		if bug.Status != status {
			t.Fatalf("status = %s, want %s", bug.Status, status)
		}
	}
	_, err = env.Engine.AdvanceBugStatus(env.Ctx, bug.ID, "tester")
	if !errors.Is(err, engine.ErrTerminalStatus) {
		t.Fatalf("expected terminal status error, got %v", err)
	}
	entries, err := env.Engine.BugTimeline(env.Ctx, bug.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	var changes int
	for _, e := range entries {
		if e.Type == "status_change" {
			changes++
		}
	}
	if changes != len(want) {
		t.Fatalf("expected %d status_change entries, got %d", len(want), changes)
	}
}

func TestMentionCreatesNotification(t *testing.T) {
	env := newTestEnv(t)
	bug, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{ProjectID: "proj-1", Title: "mention target", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.CreateComment(env.Ctx, engine.CommentCreateOptions{
		BugID:  bug.ID,
		Author: "alice",
		Body:   "can you look at this @bob?",
	})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	got, err := env.Engine.Repo.ListNotificationsByTarget(env.Ctx, "bob", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].Message != "You were mentioned in a comment by alice" {
		t.Fatalf("unexpected message: %q", got[0].Message)
	}
	if got[0].CommentID == nil {
		t.Fatal("expected comment reference")
	}
}

func TestMultipleMentionsNotifyIndependently(t *testing.T) {
	env := newTestEnv(t)
	bug, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{ProjectID: "proj-1", Title: "fanout", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.CreateComment(env.Ctx, engine.CommentCreateOptions{
		BugID:  bug.ID,
		Author: "alice",
		Body:   "@bob @carol @bob please triage",
	})
	if err != nil {
		t.Fatal(err)
	}
	all, err := env.Engine.Repo.ListNotifications(env.Ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 notifications (duplicates notify independently), got %d", len(all))
	}
}

func TestMentionResolvesToMemberUserRef(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.AddTeamMember(env.Ctx, "proj-1", "bob", "bob@corp", "tester"); err != nil {
		t.Fatal(err)
	}
	bug, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{ProjectID: "proj-1", Title: "resolve", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateComment(env.Ctx, engine.CommentCreateOptions{BugID: bug.ID, Author: "alice", Body: "ping @bob"}); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.Repo.ListNotificationsByTarget(env.Ctx, "bob@corp", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected notification under member user_ref, got %d", len(got))
	}
}

func TestAssignmentNotifiesAndRecordsTimeline(t *testing.T) {
	env := newTestEnv(t)
	bug, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{ProjectID: "proj-1", Title: "assign me", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	assignee := "bob"
	if _, err := env.Engine.UpdateBug(env.Ctx, engine.BugUpdateOptions{ID: bug.ID, Assignee: &assignee, ActorID: "alice"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	notes, err := env.Engine.Repo.ListNotificationsByTarget(env.Ctx, "bob", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 assignment notification, got %d", len(notes))
	}
	if notes[0].Message != "You were assigned to bug: assign me by alice" {
		t.Fatalf("unexpected message: %q", notes[0].Message)
	}
	entries, err := env.Engine.Repo.ListTimelineEntries(env.Ctx, bug.ID)
	if err != nil {
		t.Fatal(err)
	}
	var assigned int
	for _, e := range entries {
		if e.Type == "assigned" {
			assigned++
		}
	}
	if assigned != 1 {
		t.Fatalf("expected stored assigned entry, got %d", assigned)
	}
	log, err := env.Engine.Activity.List(env.Ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, e := range log {
		if e.Action == "assigned to bug" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected 'assigned to bug' activity entry")
	}
}

func TestDeleteCommentCascadesReplies(t *testing.T) {
	env := newTestEnv(t)
	bug, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{ProjectID: "proj-1", Title: "threaded", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := env.Engine.CreateComment(env.Ctx, engine.CommentCreateOptions{BugID: bug.ID, Author: "alice", Body: "root"})
	if err != nil {
		t.Fatal(err)
	}
	rep, err := env.Engine.CreateReply(env.Ctx, engine.ReplyCreateOptions{CommentID: c.ID, Author: "bob", Body: "child"})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteComment(env.Ctx, c.ID); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
	if _, err := env.Engine.Repo.GetReply(env.Ctx, rep.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected reply gone, got %v", err)
	}
}

func TestListBugThread(t *testing.T) {
	env := newTestEnv(t)
	bug, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{ProjectID: "proj-1", Title: "thread", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		c, err := env.Engine.CreateComment(env.Ctx, engine.CommentCreateOptions{BugID: bug.ID, Author: "alice", Body: fmt.Sprintf("comment %d", i)})
		if err != nil {
			t.Fatal(err)
		}
		for j := 0; j < 2; j++ {
			if _, err := env.Engine.CreateReply(env.Ctx, engine.ReplyCreateOptions{CommentID: c.ID, Author: "bob", Body: fmt.Sprintf("reply %d.%d", i, j)}); err != nil {
				t.Fatal(err)
			}
		}
	}
	thread, err := env.Engine.ListBugThread(env.Ctx, bug.ID)
	if err != nil {
		t.Fatalf("list thread: %v", err)
	}
	if len(thread) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(thread))
	}
	for _, tc := range thread {
		if len(tc.Replies) != 2 {
			t.Fatalf("expected 2 replies on %s, got %d", tc.ID, len(tc.Replies))
		}
	}
}

func TestCommentRequiresExactlyOneParent(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateComment(env.Ctx, engine.CommentCreateOptions{Author: "alice", Body: "orphan"}); err == nil {
		t.Fatal("expected error for comment without parent")
	}
	if _, err := env.Engine.CreateComment(env.Ctx, engine.CommentCreateOptions{BugID: "b", TestCaseID: "t", Author: "alice", Body: "both"}); err == nil {
		t.Fatal("expected error for comment with both parents")
	}
}

func TestDeleteNotificationsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	bug, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{ProjectID: "proj-1", Title: "notif", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateComment(env.Ctx, engine.CommentCreateOptions{BugID: bug.ID, Author: "alice", Body: "@bob @carol"}); err != nil {
		t.Fatal(err)
	}
	all, err := env.Engine.Repo.ListNotifications(env.Ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(all))
	}
	// one real id plus one missing: nothing may be deleted
	err = env.Engine.DeleteNotifications(env.Ctx, []string{all[0].ID, "no-such-id"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	remaining, _ := env.Engine.Repo.ListNotifications(env.Ctx, 0)
	if len(remaining) != 2 {
		t.Fatalf("partial delete happened: %d left", len(remaining))
	}
	if err := env.Engine.DeleteNotifications(env.Ctx, []string{all[0].ID, all[1].ID}); err != nil {
		t.Fatalf("delete all: %v", err)
	}
}

func TestRecordTestRun(t *testing.T) {
	env := newTestEnv(t)
	tc, err := env.Engine.CreateTestCase(env.Ctx, engine.TestCaseCreateOptions{
		ProjectID: "proj-1",
		Title:     "login works",
		Steps:     []string{"open login", "submit creds"},
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if tc.Status != "draft" {
		t.Fatalf("expected draft status, got %s", tc.Status)
	}
	got, err := env.Engine.RecordTestRun(env.Ctx, tc.ID, "pass", "tester")
	if err != nil {
		t.Fatalf("record run: %v", err)
	}
	if got.LastResult != "pass" || got.LastRunAt == nil {
		t.Fatalf("run not recorded: %+v", got)
	}
	if _, err := env.Engine.RecordTestRun(env.Ctx, tc.ID, "maybe", "tester"); err == nil {
		t.Fatal("expected invalid result error")
	}
}

func TestSelfAssignmentDoesNotNotify(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{
		ProjectID: "proj-1",
		Title:     "own bug",
		Assignee:  "alice",
		ActorID:   "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	notes, err := env.Engine.Repo.ListNotificationsByTarget(env.Ctx, "alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 0 {
		t.Fatalf("self-assignment must not notify, got %d", len(notes))
	}
}

func TestProjectStatusSummary(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 2; i++ {
		if _, err := env.Engine.CreateBug(env.Ctx, engine.BugCreateOptions{ProjectID: "proj-1", Title: fmt.Sprintf("bug %d", i), ActorID: "tester"}); err != nil {
			t.Fatal(err)
		}
	}
	counts, err := env.Engine.ProjectStatusSummary(env.Ctx, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if counts["new"] != 2 {
		t.Fatalf("expected 2 new bugs, got %d", counts["new"])
	}
	if _, ok := counts["closed"]; !ok {
		t.Fatal("summary must include zeroed statuses")
	}
}
