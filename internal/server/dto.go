package server

import (
	"bugforge/internal/config"
	"bugforge/internal/domain"
	"bugforge/internal/engine"
)

// Request payloads

type CreateProjectRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateBugRequest struct {
	ID          *string  `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Severity    *string  `json:"severity,omitempty" enum:"low,medium,high,critical"`
	Priority    *string  `json:"priority,omitempty" enum:"low,medium,high,critical"`
	Assignee    *string  `json:"assignee,omitempty"`
	Reporter    *string  `json:"reporter,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

type UpdateBugRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Severity    *string  `json:"severity,omitempty" enum:"low,medium,high,critical"`
	Priority    *string  `json:"priority,omitempty" enum:"low,medium,high,critical"`
	Status      *string  `json:"status,omitempty" enum:"new,assigned,in-progress,testing,resolved,closed"`
	Assignee    *string  `json:"assignee,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

type CreateTestCaseRequest struct {
	ID             *string  `json:"id,omitempty"`
	Title          string   `json:"title"`
	Description    *string  `json:"description,omitempty"`
	Steps          []string `json:"steps,omitempty"`
	ExpectedResult *string  `json:"expected_result,omitempty"`
	Priority       *string  `json:"priority,omitempty" enum:"low,medium,high,critical"`
	Owner          *string  `json:"owner,omitempty"`
}

type UpdateTestCaseRequest struct {
	Title          *string  `json:"title,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Steps          []string `json:"steps,omitempty"`
	ExpectedResult *string  `json:"expected_result,omitempty"`
	Priority       *string  `json:"priority,omitempty" enum:"low,medium,high,critical"`
	Status         *string  `json:"status,omitempty" enum:"draft,active,deprecated"`
	Owner          *string  `json:"owner,omitempty"`
}

type RecordRunRequest struct {
	Result string `json:"result" enum:"pass,fail,blocked,skip"`
}

type CreateCommentRequest struct {
	Author string `json:"author,omitempty"`
	Body   string `json:"body"`
}

type UpdateCommentRequest struct {
	Body string `json:"body"`
}

type CreateMemberRequest struct {
	Name    string `json:"name"`
	UserRef string `json:"user_ref,omitempty"`
}

type UpdateMemberRequest struct {
	Name    string `json:"name,omitempty"`
	UserRef string `json:"user_ref,omitempty"`
}

type DeleteNotificationsRequest struct {
	IDs []string `json:"ids"`
}

// Response payloads

type ProjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"active,archived"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type paginatedBugs struct {
	Items      []domain.Bug `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type ProjectConfigResponse struct {
	ProjectID string                 `json:"project_id"`
	Mentions  string                 `json:"mentions_resolution"`
	Activity  map[string]int         `json:"activity_limits"`
	Webhooks  []config.WebhookConfig `json:"webhooks,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func configResponse(cfg *config.Config) ProjectConfigResponse {
	return ProjectConfigResponse{
		ProjectID: cfg.Project.ID,
		Mentions:  cfg.Mentions.Resolution,
		Activity: map[string]int{
			"feed_limit":       cfg.FeedLimit(),
			"actor_feed_limit": cfg.ActorFeedLimit(),
		},
		Webhooks: cfg.Webhooks,
	}
}

func nonNilBugs(items []domain.Bug) []domain.Bug {
	if items == nil {
		return []domain.Bug{}
	}
	return items
}

func nonNilTestCases(items []domain.TestCase) []domain.TestCase {
	if items == nil {
		return []domain.TestCase{}
	}
	return items
}

func nonNilThread(items []engine.ThreadComment) []engine.ThreadComment {
	if items == nil {
		return []engine.ThreadComment{}
	}
	return items
}

func nonNilMembers(items []domain.TeamMember) []domain.TeamMember {
	if items == nil {
		return []domain.TeamMember{}
	}
	return items
}

func nonNilNotifications(items []domain.Notification) []domain.Notification {
	if items == nil {
		return []domain.Notification{}
	}
	return items
}

func nonNilActivity(items []domain.ActivityEntry) []domain.ActivityEntry {
	if items == nil {
		return []domain.ActivityEntry{}
	}
	return items
}

func nonNilTimeline(items []domain.TimelineEntry) []domain.TimelineEntry {
	if items == nil {
		return []domain.TimelineEntry{}
	}
	return items
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
