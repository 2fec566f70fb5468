package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"bugforge/internal/config"
	"bugforge/internal/db"
	"bugforge/internal/domain"
	"bugforge/internal/engine"
	"bugforge/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("bugforge")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if _, err := e.InitProject(context.Background(), cfg.Project.ID, "Bugforge", "", "tester"); err != nil {
		t.Fatalf("init project: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestBugLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createRes, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/bugforge/bugs", map[string]any{
		"title": "Crash on save",
		"steps": []string{"open editor", "hit save"},
	}, nil)
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create bug status %d: %s", createRes.StatusCode, string(data))
	}
	var created domain.Bug
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal bug: %v", err)
	}
	if created.Status != "new" {
		t.Fatalf("expected status new, got %s", created.Status)
	}

	advRes, advBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/bugs/"+created.ID+"/advance", nil, nil)
	if advRes.StatusCode != http.StatusOK {
		t.Fatalf("advance status %d: %s", advRes.StatusCode, string(advBody))
	}
	var advanced domain.Bug
	_ = json.Unmarshal(advBody, &advanced)
	if advanced.Status != "assigned" {
		t.Fatalf("expected assigned, got %s", advanced.Status)
	}

	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/bugs/"+created.ID, nil, nil)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get bug status %d: %s", getRes.StatusCode, string(getBody))
	}
	var fetched domain.Bug
	_ = json.Unmarshal(getBody, &fetched)
	if len(fetched.Steps) != 2 || fetched.Steps[0] != "open editor" {
		t.Fatalf("steps not round-tripped: %v", fetched.Steps)
	}

	tlRes, tlBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/bugs/"+created.ID+"/timeline", nil, nil)
	if tlRes.StatusCode != http.StatusOK {
		t.Fatalf("timeline status %d: %s", tlRes.StatusCode, string(tlBody))
	}
	var entries []domain.TimelineEntry
	if err := json.Unmarshal(tlBody, &entries); err != nil {
		t.Fatalf("unmarshal timeline: %v", err)
	}
	if len(entries) < 2 || entries[0].Type != "created" {
		t.Fatalf("unexpected timeline: %+v", entries)
	}
}

func TestAdvanceTerminalConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/bugforge/bugs", map[string]any{
		"title": "walk the chain",
	}, nil)
	var bug domain.Bug
	_ = json.Unmarshal(data, &bug)

	for i := 0; i < 5; i++ {
		res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/bugs/"+bug.ID+"/advance", nil, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("advance %d status %d: %s", i, res.StatusCode, string(body))
		}
	}
	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/bugs/"+bug.ID+"/advance", nil, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict at closed, got %d: %s", res.StatusCode, string(body))
	}
}

func TestCommentMentionFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/bugforge/bugs", map[string]any{
		"title": "mention me",
	}, nil)
	var bug domain.Bug
	_ = json.Unmarshal(data, &bug)

	comRes, comBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/bugs/"+bug.ID+"/comments", map[string]any{
		"author": "alice",
		"body":   "needs eyes from @bob",
	}, nil)
	if comRes.StatusCode != http.StatusCreated {
		t.Fatalf("create comment status %d: %s", comRes.StatusCode, string(comBody))
	}

	noteRes, noteBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/notifications?target=bob", nil, nil)
	if noteRes.StatusCode != http.StatusOK {
		t.Fatalf("list notifications status %d: %s", noteRes.StatusCode, string(noteBody))
	}
	var notes []domain.Notification
	if err := json.Unmarshal(noteBody, &notes); err != nil {
		t.Fatalf("unmarshal notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d: %s", len(notes), string(noteBody))
	}
	if notes[0].Message != "You were mentioned in a comment by alice" {
		t.Fatalf("unexpected message: %q", notes[0].Message)
	}

	readRes, readBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/notifications/"+notes[0].ID+"/read", nil, nil)
	if readRes.StatusCode != http.StatusOK {
		t.Fatalf("mark read status %d: %s", readRes.StatusCode, string(readBody))
	}
	var read domain.Notification
	_ = json.Unmarshal(readBody, &read)
	if !read.Read {
		t.Fatal("expected notification marked read")
	}
}

func TestCommentThread(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/bugforge/bugs", map[string]any{
		"title": "thread me",
	}, nil)
	var bug domain.Bug
	_ = json.Unmarshal(data, &bug)

	_, comBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/bugs/"+bug.ID+"/comments", map[string]any{
		"author": "alice",
		"body":   "first",
	}, nil)
	var comment domain.Comment
	_ = json.Unmarshal(comBody, &comment)

	repRes, repBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/comments/"+comment.ID+"/replies", map[string]any{
		"author": "bob",
		"body":   "agreed",
	}, nil)
	if repRes.StatusCode != http.StatusCreated {
		t.Fatalf("create reply status %d: %s", repRes.StatusCode, string(repBody))
	}

	thRes, thBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/bugs/"+bug.ID+"/comments", nil, nil)
	if thRes.StatusCode != http.StatusOK {
		t.Fatalf("thread status %d: %s", thRes.StatusCode, string(thBody))
	}
	var thread []struct {
		domain.Comment
		Replies []domain.Reply `json:"replies"`
	}
	if err := json.Unmarshal(thBody, &thread); err != nil {
		t.Fatalf("unmarshal thread: %v", err)
	}
	if len(thread) != 1 || len(thread[0].Replies) != 1 {
		t.Fatalf("unexpected thread shape: %s", string(thBody))
	}
}

func TestActivityFeed(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/bugforge/bugs", map[string]any{
		"title":    "assigned at birth",
		"assignee": "bob",
	}, map[string]string{"X-Actor-Id": "alice"})

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/activity", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activity status %d: %s", res.StatusCode, string(body))
	}
	var entries []domain.ActivityEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("unmarshal activity: %v", err)
	}
	var found bool
	for _, e := range entries {
		if e.Action == "assigned to bug" && e.Actor == "alice" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 'assigned to bug' entry, got %s", string(body))
	}
}

func TestProjectStatusEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/bugforge/bugs", map[string]any{"title": "b1"}, nil)
	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/bugforge/status", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(body))
	}
	var resp struct {
		ProjectID string         `json:"project_id"`
		BugCounts map[string]int `json:"bug_counts"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if resp.BugCounts["new"] != 1 {
		t.Fatalf("expected 1 new bug, got %d", resp.BugCounts["new"])
	}
}

func TestHealthNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(body))
	}
}
