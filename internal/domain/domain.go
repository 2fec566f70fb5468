package domain

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"active,archived"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Bug struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Severity    string   `json:"severity" enum:"low,medium,high,critical"`
	Priority    string   `json:"priority" enum:"low,medium,high,critical"`
	Status      string   `json:"status" enum:"new,assigned,in-progress,testing,resolved,closed"`
	Assignee    string   `json:"assignee,omitempty"`
	Reporter    string   `json:"reporter,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

// BugStatusChain is the forward progression offered by the advance operation.
// Direct updates may still jump between states.
var BugStatusChain = []string{"new", "assigned", "in-progress", "testing", "resolved", "closed"}

// NextBugStatus returns the next status in the chain, or false when the
// status is terminal or unknown.
func NextBugStatus(status string) (string, bool) {
	for i, s := range BugStatusChain {
		if s == status && i+1 < len(BugStatusChain) {
			return BugStatusChain[i+1], true
		}
	}
	return "", false
}

type TestCase struct {
	ID             string   `json:"id"`
	ProjectID      string   `json:"project_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Steps          []string `json:"steps,omitempty"`
	ExpectedResult string   `json:"expected_result,omitempty"`
	Priority       string   `json:"priority" enum:"low,medium,high,critical"`
	Status         string   `json:"status" enum:"draft,active,deprecated"`
	Owner          string   `json:"owner,omitempty"`
	LastRunAt      *string  `json:"last_run_at,omitempty" format:"date-time"`
	LastResult     string   `json:"last_result,omitempty"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
}

// Comment attaches to exactly one of a bug or a test case.
type Comment struct {
	ID         string  `json:"id"`
	BugID      *string `json:"bug_id,omitempty"`
	TestCaseID *string `json:"test_case_id,omitempty"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	UpdatedAt  string  `json:"updated_at" format:"date-time"`
}

// Reply is a single-level response to a comment; replies never nest.
type Reply struct {
	ID        string `json:"id"`
	CommentID string `json:"comment_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type TeamMember struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	UserRef   string `json:"user_ref"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Notification struct {
	ID        string  `json:"id"`
	Target    string  `json:"target"`
	CommentID *string `json:"comment_id,omitempty"`
	Message   string  `json:"message"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type ActivityEntry struct {
	ID        int64  `json:"id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Label     string `json:"label,omitempty"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// TimelineEntry is an explicit, persisted bug history event. Synthetic
// events derived from the bug row itself are never stored.
type TimelineEntry struct {
	ID          int64             `json:"id"`
	BugID       string            `json:"bug_id"`
	Type        string            `json:"type" enum:"created,assigned,status_change,comment"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Actor       string            `json:"actor,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
	TS          string            `json:"ts" format:"date-time"`
}
