package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"bugforge/internal/domain"
	"bugforge/internal/engine"
)

func registerComments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-bug-comment",
		Method:        http.MethodPost,
		Path:          "/bugs/{bug_id}/comments",
		Summary:       "Comment on bug",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		BugID string               `path:"bug_id"`
		Body  CreateCommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		c, err := createComment(ctx, e, engine.CommentCreateOptions{BugID: input.BugID}, input.Body)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-test-case-comment",
		Method:        http.MethodPost,
		Path:          "/test-cases/{test_case_id}/comments",
		Summary:       "Comment on test case",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TestCaseID string               `path:"test_case_id"`
		Body       CreateCommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		c, err := createComment(ctx, e, engine.CommentCreateOptions{TestCaseID: input.TestCaseID}, input.Body)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-bug-comments",
		Method:      http.MethodGet,
		Path:        "/bugs/{bug_id}/comments",
		Summary:     "Bug comment thread",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BugID string `path:"bug_id"`
	}) (*struct {
		Body []engine.ThreadComment `json:"body"`
	}, error) {
		thread, err := e.ListBugThread(ctx, input.BugID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.ThreadComment `json:"body"`
		}{Body: nonNilThread(thread)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-test-case-comments",
		Method:      http.MethodGet,
		Path:        "/test-cases/{test_case_id}/comments",
		Summary:     "Test case comment thread",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TestCaseID string `path:"test_case_id"`
	}) (*struct {
		Body []engine.ThreadComment `json:"body"`
	}, error) {
		thread, err := e.ListTestCaseThread(ctx, input.TestCaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.ThreadComment `json:"body"`
		}{Body: nonNilThread(thread)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-comment",
		Method:      http.MethodPatch,
		Path:        "/comments/{id}",
		Summary:     "Edit comment",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateCommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.UpdateComment(ctx, input.ID, input.Body.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-comment",
		Method:      http.MethodDelete,
		Path:        "/comments/{id}",
		Summary:     "Delete comment and replies",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteComment(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-reply",
		Method:        http.MethodPost,
		Path:          "/comments/{comment_id}/replies",
		Summary:       "Reply to comment",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CommentID string               `path:"comment_id"`
		Body      CreateCommentRequest `json:"body"`
	}) (*struct {
		Body domain.Reply `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		author, authErr := authorOrActor(ctx, input.Body.Author)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.CreateReply(ctx, engine.ReplyCreateOptions{
			CommentID: input.CommentID,
			Author:    author,
			Body:      input.Body.Body,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Reply `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-reply",
		Method:      http.MethodPatch,
		Path:        "/replies/{id}",
		Summary:     "Edit reply",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateCommentRequest `json:"body"`
	}) (*struct {
		Body domain.Reply `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		rep, err := e.UpdateReply(ctx, input.ID, input.Body.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Reply `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-reply",
		Method:      http.MethodDelete,
		Path:        "/replies/{id}",
		Summary:     "Delete reply",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteReply(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func createComment(ctx context.Context, e engine.Engine, opts engine.CommentCreateOptions, req CreateCommentRequest) (domain.Comment, huma.StatusError) {
	if len(bodyBytes(ctx)) == 0 {
		return domain.Comment{}, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
	}
	author, authErr := authorOrActor(ctx, req.Author)
	if authErr != nil {
		return domain.Comment{}, authErr
	}
	opts.Author = author
	opts.Body = req.Body
	c, err := e.CreateComment(ctx, opts)
	if err != nil {
		return domain.Comment{}, handleError(err)
	}
	return c, nil
}

func authorOrActor(ctx context.Context, author string) (string, huma.StatusError) {
	if author != "" {
		return author, nil
	}
	return actorIDFromContext(ctx)
}
