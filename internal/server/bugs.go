package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"bugforge/internal/domain"
	"bugforge/internal/engine"
	"bugforge/internal/repo"
)

func registerBugs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-bug",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/bugs",
		Summary:       "Report bug",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string           `path:"project_id"`
		Body      CreateBugRequest `json:"body"`
	}) (*struct {
		Body domain.Bug `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		reporter := stringOrEmpty(input.Body.Reporter)
		if reporter == "" {
			reporter = actorID
		}
		b, err := e.CreateBug(ctx, engine.BugCreateOptions{
			ID:          stringOrEmpty(input.Body.ID),
			ProjectID:   input.ProjectID,
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			Severity:    stringOrEmpty(input.Body.Severity),
			Priority:    stringOrEmpty(input.Body.Priority),
			Assignee:    stringOrEmpty(input.Body.Assignee),
			Reporter:    reporter,
			Steps:       input.Body.Steps,
			Attachments: input.Body.Attachments,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Bug `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-bugs",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/bugs",
		Summary:     "List bugs",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status"`
		Severity  string `query:"severity"`
		Assignee  string `query:"assignee"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body paginatedBugs `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		bugs, err := e.Repo.ListBugs(ctx, repo.BugFilters{
			ProjectID:       input.ProjectID,
			Status:          input.Status,
			Severity:        input.Severity,
			Assignee:        input.Assignee,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedBugs{Items: []domain.Bug{}}
		if len(bugs) > limit {
			resp.NextCursor = composeCursor(bugs[limit].CreatedAt, bugs[limit].ID)
			bugs = bugs[:limit]
		}
		resp.Items = nonNilBugs(bugs)
		return &struct {
			Body paginatedBugs `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-bug",
		Method:      http.MethodGet,
		Path:        "/bugs/{id}",
		Summary:     "Get bug",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Bug `json:"body"`
	}, error) {
		b, err := e.Repo.GetBug(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Bug `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-bug",
		Method:      http.MethodPatch,
		Path:        "/bugs/{id}",
		Summary:     "Update bug",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Body UpdateBugRequest `json:"body"`
	}) (*struct {
		Body domain.Bug `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.UpdateBug(ctx, engine.BugUpdateOptions{
			ID:          input.ID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Severity:    input.Body.Severity,
			Priority:    input.Body.Priority,
			Status:      input.Body.Status,
			Assignee:    input.Body.Assignee,
			Steps:       input.Body.Steps,
			Attachments: input.Body.Attachments,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Bug `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-bug",
		Method:      http.MethodPost,
		Path:        "/bugs/{id}/advance",
		Summary:     "Advance bug status",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Bug `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.AdvanceBugStatus(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Bug `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bug-timeline",
		Method:      http.MethodGet,
		Path:        "/bugs/{id}/timeline",
		Summary:     "Bug timeline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.TimelineEntry `json:"body"`
	}, error) {
		entries, err := e.BugTimeline(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TimelineEntry `json:"body"`
		}{Body: nonNilTimeline(entries)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-bug",
		Method:      http.MethodDelete,
		Path:        "/bugs/{id}",
		Summary:     "Delete bug",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteBug(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
