package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bugforge/internal/activity"
	"bugforge/internal/domain"
)

// AddTeamMember registers a member so mention tokens can resolve to
// their user_ref.
func (e Engine) AddTeamMember(ctx context.Context, projectID, name, userRef, actorID string) (domain.TeamMember, error) {
	if name == "" {
		return domain.TeamMember{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.TeamMember{}, err
	}
	if userRef == "" {
		userRef = name
	}
	m := domain.TeamMember{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		UserRef:   userRef,
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.InsertTeamMember(ctx, m); err != nil {
		return domain.TeamMember{}, fmt.Errorf("insert team member: %w", err)
	}
	e.Activity.Log(ctx, actorID, activity.Other("added team member"), fmt.Sprintf("%s (%s)", m.Name, m.UserRef))
	return m, nil
}

func (e Engine) UpdateTeamMember(ctx context.Context, id, name, userRef string) (domain.TeamMember, error) {
	if err := e.Repo.UpdateTeamMember(ctx, id, name, userRef); err != nil {
		return domain.TeamMember{}, err
	}
	return e.Repo.GetTeamMember(ctx, id)
}

func (e Engine) RemoveTeamMember(ctx context.Context, id, actorID string) error {
	if err := e.Repo.DeleteTeamMember(ctx, id); err != nil {
		return err
	}
	e.Activity.Log(ctx, actorID, activity.Other("removed team member"), id)
	return nil
}

// MarkNotificationRead flips the read flag on a notification.
func (e Engine) MarkNotificationRead(ctx context.Context, id string, read bool) (domain.Notification, error) {
	if err := e.Repo.SetNotificationRead(ctx, id, read); err != nil {
		return domain.Notification{}, err
	}
	return e.Repo.GetNotification(ctx, id)
}

// DeleteNotifications deletes the given ids; if any id is missing,
// nothing is deleted.
func (e Engine) DeleteNotifications(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return errors.New("no notification ids given")
	}
	return e.Repo.DeleteNotifications(ctx, ids)
}
