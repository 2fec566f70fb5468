package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"bugforge/internal/domain"
	"bugforge/internal/engine"
	"bugforge/internal/repo"
)

func registerTestCases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-test-case",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/test-cases",
		Summary:       "Create test case",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                `path:"project_id"`
		Body      CreateTestCaseRequest `json:"body"`
	}) (*struct {
		Body domain.TestCase `json:"body"`
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
		tc, err := e.CreateTestCase(ctx, engine.TestCaseCreateOptions{
			ID:             stringOrEmpty(input.Body.ID),
			ProjectID:      input.ProjectID,
			Title:          input.Body.Title,
			Description:    stringOrEmpty(input.Body.Description),
			Steps:          input.Body.Steps,
			ExpectedResult: stringOrEmpty(input.Body.ExpectedResult),
			Priority:       stringOrEmpty(input.Body.Priority),
			Owner:          stringOrEmpty(input.Body.Owner),
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TestCase `json:"body"`
		}{Body: tc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-test-cases",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/test-cases",
		Summary:     "List test cases",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status"`
		Owner     string `query:"owner"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.TestCase `json:"body"`
	}, error) {
		items, err := e.Repo.ListTestCases(ctx, repo.TestCaseFilters{
			ProjectID: input.ProjectID,
			Status:    input.Status,
			Owner:     input.Owner,
			Limit:     normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TestCase `json:"body"`
		}{Body: nonNilTestCases(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-test-case",
		Method:      http.MethodGet,
		Path:        "/test-cases/{id}",
		Summary:     "Get test case",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.TestCase `json:"body"`
	}, error) {
		tc, err := e.Repo.GetTestCase(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TestCase `json:"body"`
		}{Body: tc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-test-case",
		Method:      http.MethodPatch,
		Path:        "/test-cases/{id}",
		Summary:     "Update test case",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateTestCaseRequest `json:"body"`
	}) (*struct {
		Body domain.TestCase `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tc, err := e.UpdateTestCase(ctx, engine.TestCaseUpdateOptions{
			ID:             input.ID,
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Steps:          input.Body.Steps,
			ExpectedResult: input.Body.ExpectedResult,
			Priority:       input.Body.Priority,
			Status:         input.Body.Status,
			Owner:          input.Body.Owner,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TestCase `json:"body"`
		}{Body: tc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-test-run",
		Method:      http.MethodPost,
		Path:        "/test-cases/{id}/runs",
		Summary:     "Record test run",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Body RecordRunRequest `json:"body"`
	}) (*struct {
		Body domain.TestCase `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tc, err := e.RecordTestRun(ctx, input.ID, input.Body.Result, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TestCase `json:"body"`
		}{Body: tc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-test-case",
		Method:      http.MethodDelete,
		Path:        "/test-cases/{id}",
		Summary:     "Delete test case",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTestCase(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
