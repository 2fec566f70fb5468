package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bugforge/internal/activity"
	"bugforge/internal/config"
	"bugforge/internal/domain"
	"bugforge/internal/notify"
	"bugforge/internal/repo"
	"bugforge/internal/sidelog"
	"bugforge/internal/timeline"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Notify   *notify.Dispatcher
	Activity *activity.Logger
	Config   *config.Config
	Now      func() time.Time
	Failures *sidelog.Log
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	failures := sidelog.New()
	resolve := true
	if cfg != nil {
		resolve = cfg.ResolveMentions()
	}
	return Engine{
		DB:       db,
		Repo:     r,
		Notify:   &notify.Dispatcher{Repo: r, Failures: failures, ResolveMembers: resolve},
		Activity: &activity.Logger{Repo: r, Failures: failures},
		Config:   cfg,
		Now:      time.Now,
		Failures: failures,
	}
}

// WithNow pins the clock for the engine and its side-effect helpers.
func (e Engine) WithNow(fn func() time.Time) Engine {
	e.Now = fn
	e.Notify.Now = fn
	e.Activity.Now = fn
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// InitProject creates a project plus its default stored config.
func (e Engine) InitProject(ctx context.Context, projectID, name, description, actorID string) (domain.Project, error) {
	if projectID == "" {
		return domain.Project{}, errors.New("project id is required")
	}
	if name == "" {
		name = projectID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p := domain.Project{
		ID:          projectID,
		Name:        name,
		Description: description,
		Status:      "active",
		CreatedAt:   e.timestamp(),
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,description,status,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), p.Status, p.CreatedAt); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.UpsertProjectConfigTx(ctx, tx, p.ID, config.Default(p.ID)); err != nil {
		return domain.Project{}, fmt.Errorf("insert project config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	e.Activity.Log(ctx, actorID, activity.Other("created project"), p.ID)
	return p, nil
}

// ProjectStatusSummary reports open bug counts per status for a project.
func (e Engine) ProjectStatusSummary(ctx context.Context, projectID string) (map[string]int, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	counts, err := e.Repo.CountBugsByStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, s := range domain.BugStatusChain {
		if _, ok := counts[s]; !ok {
			counts[s] = 0
		}
	}
	return counts, nil
}

// BugCreateOptions are parameters for reporting a bug.
type BugCreateOptions struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Severity    string
	Priority    string
	Assignee    string
	Reporter    string
	Steps       []string
	Attachments []string
	ActorID     string
}

func (e Engine) CreateBug(ctx context.Context, opts BugCreateOptions) (domain.Bug, error) {
	if opts.Title == "" {
		return domain.Bug{}, errors.New("title is required")
	}
	if opts.ProjectID == "" {
		return domain.Bug{}, errors.New("project is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Bug{}, err
	}
	if opts.Severity == "" {
		opts.Severity = "medium"
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	now := e.timestamp()
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	b := domain.Bug{
		ID:          id,
		ProjectID:   opts.ProjectID,
		Title:       opts.Title,
		Description: opts.Description,
		Severity:    opts.Severity,
		Priority:    opts.Priority,
		Status:      "new",
		Assignee:    opts.Assignee,
		Reporter:    opts.Reporter,
		Steps:       opts.Steps,
		Attachments: opts.Attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bug{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertBug(ctx, tx, b); err != nil {
		return domain.Bug{}, fmt.Errorf("insert bug: %w", err)
	}
	if b.Assignee != "" {
		entry := domain.TimelineEntry{
			BugID:   b.ID,
			Type:    "assigned",
			Title:   fmt.Sprintf("Assigned to %s", b.Assignee),
			Actor:   opts.ActorID,
			Details: map[string]string{"assignee": b.Assignee},
			TS:      now,
		}
		if err := e.Repo.AppendTimelineEntry(ctx, tx, entry); err != nil {
			return domain.Bug{}, fmt.Errorf("append timeline: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Bug{}, err
	}

	if b.Assignee != "" {
		e.Notify.NotifyAssignment(ctx, b.Assignee, opts.ActorID, "bug", b.Title)
		e.Activity.Log(ctx, opts.ActorID, activity.AssignedToBug(), fmt.Sprintf("%s -> %s", b.ID, b.Assignee))
	}
	return b, nil
}

// BugUpdateOptions carries partial updates; nil fields are left alone.
type BugUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Severity    *string
	Priority    *string
	Status      *string
	Assignee    *string
	Steps       []string
	Attachments []string
	ActorID     string
}

func (e Engine) UpdateBug(ctx context.Context, opts BugUpdateOptions) (domain.Bug, error) {
	b, err := e.Repo.GetBug(ctx, opts.ID)
	if err != nil {
		return domain.Bug{}, err
	}
	prevAssignee, prevStatus := b.Assignee, b.Status
	if opts.Title != nil {
		b.Title = *opts.Title
	}
	if opts.Description != nil {
		b.Description = *opts.Description
	}
	if opts.Severity != nil {
		b.Severity = *opts.Severity
	}
	if opts.Priority != nil {
		b.Priority = *opts.Priority
	}
	if opts.Status != nil {
		b.Status = *opts.Status
	}
	if opts.Assignee != nil {
		b.Assignee = *opts.Assignee
	}
	if opts.Steps != nil {
		b.Steps = opts.Steps
	}
	if opts.Attachments != nil {
		b.Attachments = opts.Attachments
	}
	now := e.timestamp()
	b.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bug{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateBug(ctx, tx, b); err != nil {
		return domain.Bug{}, err
	}
	assigneeChanged := b.Assignee != prevAssignee && b.Assignee != ""
	if assigneeChanged {
		entry := domain.TimelineEntry{
			BugID:   b.ID,
			Type:    "assigned",
			Title:   fmt.Sprintf("Assigned to %s", b.Assignee),
			Actor:   opts.ActorID,
			Details: map[string]string{"assignee": b.Assignee, "previous": prevAssignee},
			TS:      now,
		}
		if err := e.Repo.AppendTimelineEntry(ctx, tx, entry); err != nil {
			return domain.Bug{}, err
		}
	}
	if b.Status != prevStatus {
		entry := domain.TimelineEntry{
			BugID:   b.ID,
			Type:    "status_change",
			Title:   fmt.Sprintf("Status changed to %s", b.Status),
			Actor:   opts.ActorID,
			Details: map[string]string{"from": prevStatus, "to": b.Status},
			TS:      now,
		}
		if err := e.Repo.AppendTimelineEntry(ctx, tx, entry); err != nil {
			return domain.Bug{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Bug{}, err
	}

	if assigneeChanged {
		e.Notify.NotifyAssignment(ctx, b.Assignee, opts.ActorID, "bug", b.Title)
		e.Activity.Log(ctx, opts.ActorID, activity.AssignedToBug(), fmt.Sprintf("%s -> %s", b.ID, b.Assignee))
	}
	return b, nil
}

// ErrTerminalStatus rejects advancing a bug already at the end of its
// status chain.
var ErrTerminalStatus = errors.New("status is terminal")

// AdvanceBugStatus moves a bug one step forward along the status chain.
func (e Engine) AdvanceBugStatus(ctx context.Context, id, actorID string) (domain.Bug, error) {
	b, err := e.Repo.GetBug(ctx, id)
	if err != nil {
		return domain.Bug{}, err
	}
	next, ok := domain.NextBugStatus(b.Status)
	if !ok {
		return domain.Bug{}, fmt.Errorf("bug %s at %q: %w", id, b.Status, ErrTerminalStatus)
	}
	prev := b.Status
	b.Status = next
	now := e.timestamp()
	b.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bug{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateBug(ctx, tx, b); err != nil {
		return domain.Bug{}, err
	}
	entry := domain.TimelineEntry{
		BugID:   b.ID,
		Type:    "status_change",
		Title:   fmt.Sprintf("Status changed to %s", next),
		Actor:   actorID,
		Details: map[string]string{"from": prev, "to": next},
		TS:      now,
	}
	if err := e.Repo.AppendTimelineEntry(ctx, tx, entry); err != nil {
		return domain.Bug{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Bug{}, err
	}
	return b, nil
}

// BugTimeline returns the synthesized history for a bug, ascending.
func (e Engine) BugTimeline(ctx context.Context, id string) ([]domain.TimelineEntry, error) {
	b, err := e.Repo.GetBug(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := e.Repo.ListTimelineEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	return timeline.Synthesize(b, stored), nil
}

func (e Engine) DeleteBug(ctx context.Context, id, actorID string) error {
	if err := e.Repo.DeleteBug(ctx, id); err != nil {
		return err
	}
	e.Activity.Log(ctx, actorID, activity.Other("deleted bug"), id)
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
