// Package jira is a small read-only client for the Jira REST API v2,
// focused on listing the epics of a project and the requirement issues
// linked to an epic. Instances differ in how they model epics (issue
// type names, epic-name custom fields, epic links vs. parents), so the
// queries run in variants and the first one that yields results wins.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Epic-name custom fields seen across Jira instances, in probe order.
var epicNameFields = []string{"customfield_10011", "customfield_10014", "customfield_10004"}

// Client talks to a single Jira instance with basic auth (user + API
// token).
type Client struct {
	baseURL string
	user    string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a client for the given base URL, e.g.
// "https://yourcompany.atlassian.net".
func NewClient(baseURL, user, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira request %s failed with status %d", e.URL, e.StatusCode)
}

// User is the authenticated account, as reported by /myself.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// Issue is a Jira issue with the fields chronicler cares about. Custom
// fields are kept raw so instance-specific fields stay reachable.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields carries the standard fields plus every customfield_* as
// raw JSON.
type IssueFields struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Status      struct {
		Name string `json:"name"`
	} `json:"status"`
	IssueType struct {
		Name string `json:"name"`
	} `json:"issuetype"`
	Custom map[string]json.RawMessage `json:"-"`
}

func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type alias IssueFields
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	a.Custom = make(map[string]json.RawMessage)
	for key, raw := range all {
		if strings.HasPrefix(key, "customfield_") {
			a.Custom[key] = raw
		}
	}
	*f = IssueFields(a)
	return nil
}

// StringField returns a customfield value if it is a JSON string.
func (f *IssueFields) StringField(name string) string {
	raw, ok := f.Custom[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Epic is a project epic (or the group/initiative issue standing in for
// one).
type Epic struct {
	Key     string
	Name    string
	Summary string
	Status  string
	Type    string
}

// Requirement is an issue linked under an epic.
type Requirement struct {
	Key     string
	Summary string
	Status  string
	Type    string
}

// Myself verifies the credentials and returns the authenticated user.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "/rest/api/2/myself", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

type searchResult struct {
	Total  int     `json:"total"`
	Issues []Issue `json:"issues"`
}

// Search runs a JQL query and returns the matching issues.
func (c *Client) Search(ctx context.Context, jql string, maxResults int) ([]Issue, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", fmt.Sprintf("%d", maxResults))
	var result searchResult
	if err := c.get(ctx, "/rest/api/2/search", q, &result); err != nil {
		return nil, err
	}
	return result.Issues, nil
}

// ProjectEpics lists the epics of a project. Issue type names vary by
// instance, so typed queries are tried first; when none of them match,
// every project issue is fetched and filtered by type name.
func (c *Client) ProjectEpics(ctx context.Context, projectKey string) ([]Epic, error) {
	variants := []string{
		fmt.Sprintf(`project = %s AND issuetype = "Group" ORDER BY created DESC`, projectKey),
		fmt.Sprintf(`project = %s AND issuetype = "Epic" ORDER BY created DESC`, projectKey),
		fmt.Sprintf(`project = %s AND issuetype in ("Epic", "Group") ORDER BY created DESC`, projectKey),
	}
	issues, err := c.firstNonEmpty(ctx, variants)
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		c.log.Debug("typed epic queries empty, filtering all project issues",
			zap.String("project", projectKey))
		all, err := c.Search(ctx,
			fmt.Sprintf(`project = %s ORDER BY created DESC`, projectKey), 100)
		if err != nil {
			return nil, err
		}
		for _, issue := range all {
			if isEpicLike(issue.Fields.IssueType.Name) {
				issues = append(issues, issue)
			}
		}
	}
	epics := make([]Epic, 0, len(issues))
	for _, issue := range issues {
		epics = append(epics, Epic{
			Key:     issue.Key,
			Name:    epicName(issue),
			Summary: issue.Fields.Summary,
			Status:  issue.Fields.Status.Name,
			Type:    issue.Fields.IssueType.Name,
		})
	}
	return epics, nil
}

// EpicRequirements lists the issues attached to an epic, preferring the
// classic "Epic Link" field and falling back to parent linkage. When the
// link queries come back empty, a last pass filters requirement-typed
// issues out of the epic's project.
func (c *Client) EpicRequirements(ctx context.Context, epicKey string) ([]Requirement, error) {
	variants := []string{
		fmt.Sprintf(`"Epic Link" = %s ORDER BY created ASC`, epicKey),
		fmt.Sprintf(`parent = %s ORDER BY created ASC`, epicKey),
	}
	issues, err := c.firstNonEmpty(ctx, variants)
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		project, _, found := strings.Cut(epicKey, "-")
		if found {
			all, err := c.Search(ctx,
				fmt.Sprintf(`project = %s ORDER BY created ASC`, project), 100)
			if err != nil {
				return nil, err
			}
			for _, issue := range all {
				if strings.Contains(strings.ToLower(issue.Fields.IssueType.Name), "requirement") {
					issues = append(issues, issue)
				}
			}
		}
	}
	reqs := make([]Requirement, 0, len(issues))
	for _, issue := range issues {
		reqs = append(reqs, Requirement{
			Key:     issue.Key,
			Summary: issue.Fields.Summary,
			Status:  issue.Fields.Status.Name,
			Type:    issue.Fields.IssueType.Name,
		})
	}
	return reqs, nil
}

// firstNonEmpty runs each query until one returns issues. A failing
// variant is logged and skipped; an error is returned only when every
// variant fails.
func (c *Client) firstNonEmpty(ctx context.Context, variants []string) ([]Issue, error) {
	var lastErr error
	failures := 0
	for _, jql := range variants {
		issues, err := c.Search(ctx, jql, 100)
		if err != nil {
			c.log.Debug("query variant failed", zap.String("jql", jql), zap.Error(err))
			lastErr = err
			failures++
			continue
		}
		if len(issues) > 0 {
			return issues, nil
		}
	}
	if failures == len(variants) && lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func isEpicLike(typeName string) bool {
	lower := strings.ToLower(typeName)
	return strings.Contains(lower, "epic") ||
		strings.Contains(lower, "group") ||
		strings.Contains(lower, "initiative")
}

// epicName resolves the display name of an epic from the instance's
// epic-name custom field, falling back to the summary.
func epicName(issue Issue) string {
	for _, field := range epicNameFields {
		if name := issue.Fields.StringField(field); name != "" {
			return name
		}
	}
	return issue.Fields.Summary
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jira request %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("jira response %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, URL: u, Body: string(body)}
	}
	return json.Unmarshal(body, out)
}
