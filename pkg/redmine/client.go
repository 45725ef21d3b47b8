// Package redmine talks to Redmine's REST API. Corporate deployments
// hide Redmine behind gateways that mangle or reject perfectly valid
// requests, so besides a regular client the package carries a prober
// that walks through authentication methods, header spellings, and
// alternative endpoints until one of them reaches the actual API.
package redmine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AuthMode selects how credentials are attached to a request.
type AuthMode int

const (
	// AuthNone sends no credentials at all.
	AuthNone AuthMode = iota
	// AuthAPIKeyParam appends the API key as a ?key= query parameter.
	AuthAPIKeyParam
	// AuthAPIKeyHeader sends the API key in a header (HeaderName).
	AuthAPIKeyHeader
	// AuthBasic uses HTTP basic auth with username and password.
	AuthBasic
)

func (m AuthMode) String() string {
	switch m {
	case AuthNone:
		return "none"
	case AuthAPIKeyParam:
		return "api-key-param"
	case AuthAPIKeyHeader:
		return "api-key-header"
	case AuthBasic:
		return "basic"
	default:
		return "unknown"
	}
}

const (
	defaultUserAgent = "chronicler-redmine-client/1.0"
	pageLimit        = 100
)

// Client is a Redmine REST client bound to one base URL and one way of
// authenticating.
type Client struct {
	baseURL    string
	mode       AuthMode
	apiKey     string
	headerName string
	user       string
	password   string
	userAgent  string
	hostHeader string
	http       *http.Client
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey selects API-key auth. header chooses between query
// parameter (empty string) and a named header.
func WithAPIKey(key, header string) Option {
	return func(c *Client) {
		c.apiKey = key
		if header == "" {
			c.mode = AuthAPIKeyParam
		} else {
			c.mode = AuthAPIKeyHeader
			c.headerName = header
		}
	}
}

// WithBasicAuth selects username/password auth.
func WithBasicAuth(user, password string) Option {
	return func(c *Client) {
		c.mode = AuthBasic
		c.user = user
		c.password = password
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHostHeader forces a Host header, for requests aimed straight at an
// IP address behind a name-based virtual host.
func WithHostHeader(host string) Option {
	return func(c *Client) { c.hostHeader = host }
}

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

// NewClient creates a Redmine client. Without auth options the client
// sends unauthenticated requests.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		mode:      AuthNone,
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is returned for non-2xx responses that are not gateway
// interceptions.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("redmine request %s failed with status %d", e.URL, e.StatusCode)
}

// GatewayError indicates that something other than Redmine answered:
// a NetScaler/Citrix gateway or an HTML login form.
type GatewayError struct {
	URL      string
	Evidence string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway intercepted request to %s (%s)", e.URL, e.Evidence)
}

// User is a Redmine account.
type User struct {
	ID        int    `json:"id"`
	Login     string `json:"login"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Mail      string `json:"mail"`
}

// CustomField is a Redmine issue custom field.
type CustomField struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// StringValue returns the custom field value as a string. Multi-value
// fields are joined with ", ".
func (f CustomField) StringValue() string {
	var s string
	if err := json.Unmarshal(f.Value, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(f.Value, &list); err == nil {
		return strings.Join(list, ", ")
	}
	return strings.Trim(string(f.Value), `"`)
}

type namedRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Issue is a Redmine issue.
type Issue struct {
	ID           int           `json:"id"`
	Subject      string        `json:"subject"`
	Description  string        `json:"description"`
	Project      namedRef      `json:"project"`
	Status       namedRef      `json:"status"`
	Tracker      namedRef      `json:"tracker"`
	Priority     namedRef      `json:"priority"`
	AssignedTo   namedRef      `json:"assigned_to"`
	CustomFields []CustomField `json:"custom_fields"`
	CreatedOn    string        `json:"created_on"`
	UpdatedOn    string        `json:"updated_on"`
}

// CustomFieldValue returns the string value of the named custom field.
func (i *Issue) CustomFieldValue(name string) string {
	for _, f := range i.CustomFields {
		if f.Name == name {
			return f.StringValue()
		}
	}
	return ""
}

// CurrentUser fetches the account behind the credentials.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.getJSON(ctx, "/users/current.json", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

type issuesPage struct {
	Issues     []Issue `json:"issues"`
	TotalCount int     `json:"total_count"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
}

// Issues fetches a single page of issues. params are passed through as
// Redmine filters (project_id, status_id, ...).
func (c *Client) Issues(ctx context.Context, params url.Values, offset, limit int) ([]Issue, int, error) {
	q := url.Values{}
	for key, vals := range params {
		q[key] = vals
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	var page issuesPage
	if err := c.getJSON(ctx, "/issues.json", q, &page); err != nil {
		return nil, 0, err
	}
	return page.Issues, page.TotalCount, nil
}

// AllIssues pages through /issues.json until total_count is exhausted.
func (c *Client) AllIssues(ctx context.Context, params url.Values) ([]Issue, error) {
	var all []Issue
	offset := 0
	for {
		issues, total, err := c.Issues(ctx, params, offset, pageLimit)
		if err != nil {
			return nil, err
		}
		all = append(all, issues...)
		offset += len(issues)
		if offset >= total || len(issues) == 0 {
			break
		}
		c.log.Debug("fetching next issue page",
			zap.Int("offset", offset), zap.Int("total", total))
	}
	return all, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, _, err := c.getRaw(ctx, path, query)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// getRaw performs a GET with the configured auth and returns body and
// status. Non-2xx responses become APIError; 2xx responses that carry a
// gateway page instead of JSON become GatewayError.
func (c *Client) getRaw(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	u := c.baseURL + path
	q := url.Values{}
	for key, vals := range query {
		q[key] = vals
	}
	if c.mode == AuthAPIKeyParam {
		q.Set("key", c.apiKey)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	switch c.mode {
	case AuthAPIKeyHeader:
		if strings.EqualFold(c.headerName, "Authorization") {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		} else {
			req.Header.Set(c.headerName, c.apiKey)
		}
	case AuthBasic:
		req.SetBasicAuth(c.user, c.password)
	}
	if c.hostHeader != "" {
		req.Host = c.hostHeader
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("redmine request %s: %w", u, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("redmine response %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, URL: u, Body: string(body)}
	}
	if evidence := gatewayEvidence(body); evidence != "" {
		return body, resp.StatusCode, &GatewayError{URL: u, Evidence: evidence}
	}
	return body, resp.StatusCode, nil
}
