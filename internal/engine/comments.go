package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bugforge/internal/activity"
	"bugforge/internal/domain"
)

// CommentCreateOptions attach a comment to exactly one of a bug or a
// test case.
type CommentCreateOptions struct {
	ID         string
	BugID      string
	TestCaseID string
	Author     string
	Body       string
}

func (e Engine) CreateComment(ctx context.Context, opts CommentCreateOptions) (domain.Comment, error) {
	if (opts.BugID == "") == (opts.TestCaseID == "") {
		return domain.Comment{}, errors.New("comment needs exactly one of bug or test case")
	}
	if opts.Body == "" {
		return domain.Comment{}, errors.New("body is required")
	}
	if opts.Author == "" {
		return domain.Comment{}, errors.New("author is required")
	}

	var projectID string
	var bug domain.Bug
	if opts.BugID != "" {
		b, err := e.Repo.GetBug(ctx, opts.BugID)
		if err != nil {
			return domain.Comment{}, err
		}
		bug = b
		projectID = b.ProjectID
	} else {
		tc, err := e.Repo.GetTestCase(ctx, opts.TestCaseID)
		if err != nil {
			return domain.Comment{}, err
		}
		projectID = tc.ProjectID
	}

	now := e.timestamp()
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	c := domain.Comment{
		ID:        id,
		Author:    opts.Author,
		Body:      opts.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.BugID != "" {
		c.BugID = &opts.BugID
	} else {
		c.TestCaseID = &opts.TestCaseID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO comments(id,bug_id,test_case_id,author,body,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.BugID, c.TestCaseID, c.Author, c.Body, c.CreatedAt, c.UpdatedAt); err != nil {
		return domain.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	if opts.BugID != "" {
		entry := domain.TimelineEntry{
			BugID:       bug.ID,
			Type:        "comment",
			Title:       fmt.Sprintf("Comment by %s", c.Author),
			Description: c.Body,
			Actor:       c.Author,
			Details:     map[string]string{"comment_id": c.ID},
			TS:          now,
		}
		if err := e.Repo.AppendTimelineEntry(ctx, tx, entry); err != nil {
			return domain.Comment{}, fmt.Errorf("append timeline: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Comment{}, err
	}

	e.fanOutMentions(ctx, projectID, c.Author, c.ID, c.Body)
	return c, nil
}

// fanOutMentions runs the best-effort mention tail shared by comments
// and replies.
func (e Engine) fanOutMentions(ctx context.Context, projectID, author, commentID, body string) {
	created := e.Notify.NotifyMentions(ctx, projectID, author, commentID, body)
	for _, n := range created {
		e.Activity.Log(ctx, author, activity.MentionedInComment(), fmt.Sprintf("@%s in comment %s", n.Target, commentID))
	}
}

func (e Engine) UpdateComment(ctx context.Context, id, body string) (domain.Comment, error) {
	if body == "" {
		return domain.Comment{}, errors.New("body is required")
	}
	c, err := e.Repo.GetComment(ctx, id)
	if err != nil {
		return domain.Comment{}, err
	}
	now := e.timestamp()
	if err := e.Repo.UpdateComment(ctx, id, body, now); err != nil {
		return domain.Comment{}, err
	}
	c.Body = body
	c.UpdatedAt = now
	return c, nil
}

// DeleteComment removes the comment and all of its replies.
func (e Engine) DeleteComment(ctx context.Context, id string) error {
	return e.Repo.DeleteComment(ctx, id)
}

// ReplyCreateOptions are parameters for replying to a comment.
type ReplyCreateOptions struct {
	ID        string
	CommentID string
	Author    string
	Body      string
}

func (e Engine) CreateReply(ctx context.Context, opts ReplyCreateOptions) (domain.Reply, error) {
	if opts.Body == "" {
		return domain.Reply{}, errors.New("body is required")
	}
	if opts.Author == "" {
		return domain.Reply{}, errors.New("author is required")
	}
	parent, err := e.Repo.GetComment(ctx, opts.CommentID)
	if err != nil {
		return domain.Reply{}, err
	}
	projectID, err := e.commentProjectID(ctx, parent)
	if err != nil {
		return domain.Reply{}, err
	}
	now := e.timestamp()
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	rep := domain.Reply{
		ID:        id,
		CommentID: parent.ID,
		Author:    opts.Author,
		Body:      opts.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertReply(ctx, rep); err != nil {
		return domain.Reply{}, fmt.Errorf("insert reply: %w", err)
	}
	e.fanOutMentions(ctx, projectID, rep.Author, parent.ID, rep.Body)
	return rep, nil
}

func (e Engine) UpdateReply(ctx context.Context, id, body string) (domain.Reply, error) {
	if body == "" {
		return domain.Reply{}, errors.New("body is required")
	}
	rep, err := e.Repo.GetReply(ctx, id)
	if err != nil {
		return domain.Reply{}, err
	}
	now := e.timestamp()
	if err := e.Repo.UpdateReply(ctx, id, body, now); err != nil {
		return domain.Reply{}, err
	}
	rep.Body = body
	rep.UpdatedAt = now
	return rep, nil
}

func (e Engine) DeleteReply(ctx context.Context, id string) error {
	return e.Repo.DeleteReply(ctx, id)
}

func (e Engine) commentProjectID(ctx context.Context, c domain.Comment) (string, error) {
	if c.BugID != nil {
		b, err := e.Repo.GetBug(ctx, *c.BugID)
		if err != nil {
			return "", err
		}
		return b.ProjectID, nil
	}
	tc, err := e.Repo.GetTestCase(ctx, *c.TestCaseID)
	if err != nil {
		return "", err
	}
	return tc.ProjectID, nil
}

// ThreadComment is a comment with its replies attached.
type ThreadComment struct {
	domain.Comment
	Replies []domain.Reply `json:"replies,omitempty"`
}

// ListBugThread returns a bug's comments with replies, oldest first.
func (e Engine) ListBugThread(ctx context.Context, bugID string) ([]ThreadComment, error) {
	if _, err := e.Repo.GetBug(ctx, bugID); err != nil {
		return nil, err
	}
	comments, err := e.Repo.ListCommentsByBug(ctx, bugID)
	if err != nil {
		return nil, err
	}
	return e.attachReplies(ctx, comments)
}

// ListTestCaseThread returns a test case's comments with replies.
func (e Engine) ListTestCaseThread(ctx context.Context, testCaseID string) ([]ThreadComment, error) {
	if _, err := e.Repo.GetTestCase(ctx, testCaseID); err != nil {
		return nil, err
	}
	comments, err := e.Repo.ListCommentsByTestCase(ctx, testCaseID)
	if err != nil {
		return nil, err
	}
	return e.attachReplies(ctx, comments)
}

// attachReplies loads reply lists for all comments concurrently; order
// within the result stays the comments' order.
func (e Engine) attachReplies(ctx context.Context, comments []domain.Comment) ([]ThreadComment, error) {
	thread := make([]ThreadComment, len(comments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, c := range comments {
		thread[i].Comment = c
		g.Go(func() error {
			replies, err := e.Repo.ListReplies(gctx, c.ID)
			if err != nil {
				return err
			}
			thread[i].Replies = replies
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return thread, nil
}
