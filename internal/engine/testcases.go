package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bugforge/internal/activity"
	"bugforge/internal/domain"
)

// TestCaseCreateOptions are parameters for creating a test case.
type TestCaseCreateOptions struct {
	ID             string
	ProjectID      string
	Title          string
	Description    string
	Steps          []string
	ExpectedResult string
	Priority       string
	Owner          string
	ActorID        string
}

func (e Engine) CreateTestCase(ctx context.Context, opts TestCaseCreateOptions) (domain.TestCase, error) {
	if opts.Title == "" {
		return domain.TestCase{}, errors.New("title is required")
	}
	if opts.ProjectID == "" {
		return domain.TestCase{}, errors.New("project is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.TestCase{}, err
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	now := e.timestamp()
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	tc := domain.TestCase{
		ID:             id,
		ProjectID:      opts.ProjectID,
		Title:          opts.Title,
		Description:    opts.Description,
		Steps:          opts.Steps,
		ExpectedResult: opts.ExpectedResult,
		Priority:       opts.Priority,
		Status:         "draft",
		Owner:          opts.Owner,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.Repo.InsertTestCase(ctx, tc); err != nil {
		return domain.TestCase{}, fmt.Errorf("insert test case: %w", err)
	}
	if tc.Owner != "" {
		e.Notify.NotifyAssignment(ctx, tc.Owner, opts.ActorID, "test case", tc.Title)
		e.Activity.Log(ctx, opts.ActorID, activity.AssignedToTestCase(), fmt.Sprintf("%s -> %s", tc.ID, tc.Owner))
	}
	return tc, nil
}

// TestCaseUpdateOptions carries partial updates; nil fields are left alone.
type TestCaseUpdateOptions struct {
	ID             string
	Title          *string
	Description    *string
	Steps          []string
	ExpectedResult *string
	Priority       *string
	Status         *string
	Owner          *string
	ActorID        string
}

func (e Engine) UpdateTestCase(ctx context.Context, opts TestCaseUpdateOptions) (domain.TestCase, error) {
	tc, err := e.Repo.GetTestCase(ctx, opts.ID)
	if err != nil {
		return domain.TestCase{}, err
	}
	prevOwner := tc.Owner
	if opts.Title != nil {
		tc.Title = *opts.Title
	}
	if opts.Description != nil {
		tc.Description = *opts.Description
	}
	if opts.Steps != nil {
		tc.Steps = opts.Steps
	}
	if opts.ExpectedResult != nil {
		tc.ExpectedResult = *opts.ExpectedResult
	}
	if opts.Priority != nil {
		tc.Priority = *opts.Priority
	}
	if opts.Status != nil {
		tc.Status = *opts.Status
	}
	if opts.Owner != nil {
		tc.Owner = *opts.Owner
	}
	tc.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateTestCase(ctx, tc); err != nil {
		return domain.TestCase{}, err
	}
	if tc.Owner != prevOwner && tc.Owner != "" {
		e.Notify.NotifyAssignment(ctx, tc.Owner, opts.ActorID, "test case", tc.Title)
		e.Activity.Log(ctx, opts.ActorID, activity.AssignedToTestCase(), fmt.Sprintf("%s -> %s", tc.ID, tc.Owner))
	}
	return tc, nil
}

var runResults = map[string]bool{"pass": true, "fail": true, "blocked": true, "skip": true}

// RecordTestRun stamps the latest execution result onto a test case.
func (e Engine) RecordTestRun(ctx context.Context, id, result, actorID string) (domain.TestCase, error) {
	if !runResults[result] {
		return domain.TestCase{}, fmt.Errorf("invalid run result %q", result)
	}
	tc, err := e.Repo.GetTestCase(ctx, id)
	if err != nil {
		return domain.TestCase{}, err
	}
	now := e.timestamp()
	tc.LastRunAt = &now
	tc.LastResult = result
	tc.UpdatedAt = now
	if err := e.Repo.UpdateTestCase(ctx, tc); err != nil {
		return domain.TestCase{}, err
	}
	e.Activity.Log(ctx, actorID, activity.Other("recorded test run"), fmt.Sprintf("%s: %s", tc.ID, result))
	return tc, nil
}

func (e Engine) DeleteTestCase(ctx context.Context, id, actorID string) error {
	if err := e.Repo.DeleteTestCase(ctx, id); err != nil {
		return err
	}
	e.Activity.Log(ctx, actorID, activity.Other("deleted test case"), id)
	return nil
}
