package bugforgesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Bugforge HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Bug represents the API bug model (partial).
type Bug struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	Severity  string   `json:"severity"`
	Priority  string   `json:"priority"`
	Assignee  string   `json:"assignee,omitempty"`
	Reporter  string   `json:"reporter,omitempty"`
	Steps     []string `json:"steps,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// TestCase represents the API test case model (partial).
type TestCase struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Priority   string  `json:"priority"`
	Owner      string  `json:"owner,omitempty"`
	LastRunAt  *string `json:"last_run_at,omitempty"`
	LastResult string  `json:"last_result,omitempty"`
}

// Comment represents a thread entry on a bug or test case.
type Comment struct {
	ID         string  `json:"id"`
	BugID      *string `json:"bug_id,omitempty"`
	TestCaseID *string `json:"test_case_id,omitempty"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	CreatedAt  string  `json:"created_at"`
	Replies    []Reply `json:"replies,omitempty"`
}

// Reply represents a nested reply under a comment.
type Reply struct {
	ID        string `json:"id"`
	CommentID string `json:"comment_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// Notification represents a mention or assignment alert.
type Notification struct {
	ID        string  `json:"id"`
	Target    string  `json:"target"`
	CommentID *string `json:"comment_id,omitempty"`
	Message   string  `json:"message"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at"`
}

// TimelineEntry is one event in a bug's history.
type TimelineEntry struct {
	Type    string            `json:"type"`
	Title   string            `json:"title"`
	Actor   string            `json:"actor,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	TS      string            `json:"ts"`
}

// ActivityEntry is one record from the project activity feed.
type ActivityEntry struct {
	ID        int64  `json:"id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedBugs wraps bug listings with cursors.
type PaginatedBugs struct {
	Items      []Bug  `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// CreateBug reports a bug.
func (c *Client) CreateBug(ctx context.Context, title string, fields map[string]any) (Bug, error) {
	body := map[string]any{"title": title}
	for k, v := range fields {
		body[k] = v
	}
	var resp Bug
	err := c.do(ctx, http.MethodPost, c.projectPath("bugs"), body, &resp)
	return resp, err
}

// Bugs returns recent bugs.
func (c *Client) Bugs(ctx context.Context, limit int) ([]Bug, error) {
	page, err := c.BugsPage(ctx, limit, "")
	return page.Items, err
}

// BugsPage returns a paginated bug listing.
func (c *Client) BugsPage(ctx context.Context, limit int, cursor string) (PaginatedBugs, error) {
	endpoint := c.projectPath("bugs")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedBugs
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetBug fetches a bug by id.
func (c *Client) GetBug(ctx context.Context, id string) (Bug, error) {
	var resp Bug
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/bugs/%s", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// AdvanceBug moves a bug to the next status in the chain.
func (c *Client) AdvanceBug(ctx context.Context, id string) (Bug, error) {
	var resp Bug
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/bugs/%s/advance", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// BugTimeline returns the full history of a bug.
func (c *Client) BugTimeline(ctx context.Context, id string) ([]TimelineEntry, error) {
	var resp []TimelineEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/bugs/%s/timeline", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// CreateTestCase creates a test case.
func (c *Client) CreateTestCase(ctx context.Context, title string, fields map[string]any) (TestCase, error) {
	body := map[string]any{"title": title}
	for k, v := range fields {
		body[k] = v
	}
	var resp TestCase
	err := c.do(ctx, http.MethodPost, c.projectPath("test-cases"), body, &resp)
	return resp, err
}

// RecordRun records a test run result (pass, fail, blocked, skip).
func (c *Client) RecordRun(ctx context.Context, testCaseID, result string) (TestCase, error) {
	body := map[string]any{"result": result}
	var resp TestCase
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/test-cases/%s/runs", url.PathEscape(testCaseID)), body, &resp)
	return resp, err
}

// CommentOnBug adds a comment to a bug's thread.
func (c *Client) CommentOnBug(ctx context.Context, bugID, author, body string) (Comment, error) {
	var resp Comment
	payload := map[string]any{"author": author, "body": body}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/bugs/%s/comments", url.PathEscape(bugID)), payload, &resp)
	return resp, err
}

// Reply adds a reply under an existing comment.
func (c *Client) Reply(ctx context.Context, commentID, author, body string) (Reply, error) {
	var resp Reply
	payload := map[string]any{"author": author, "body": body}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/comments/%s/replies", url.PathEscape(commentID)), payload, &resp)
	return resp, err
}

// BugThread returns the comment thread on a bug, replies nested.
func (c *Client) BugThread(ctx context.Context, bugID string) ([]Comment, error) {
	var resp []Comment
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/bugs/%s/comments", url.PathEscape(bugID)), nil, &resp)
	return resp, err
}

// Notifications returns notifications for a target, optionally unread only.
func (c *Client) Notifications(ctx context.Context, target string, unreadOnly bool) ([]Notification, error) {
	endpoint := "v0/notifications"
	q := url.Values{}
	if target != "" {
		q.Set("target", target)
	}
	if unreadOnly {
		q.Set("unread", "true")
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Notification
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// MarkRead marks a notification read.
func (c *Client) MarkRead(ctx context.Context, id string) (Notification, error) {
	var resp Notification
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/notifications/%s/read", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// Activity returns the recent activity feed.
func (c *Client) Activity(ctx context.Context, actor string, limit int) ([]ActivityEntry, error) {
	endpoint := "v0/activity"
	q := url.Values{}
	if actor != "" {
		q.Set("actor", actor)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []ActivityEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
