package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// BodyKind classifies what a successful HTTP response actually contained.
type BodyKind string

const (
	// KindJSON means the body parsed as JSON, i.e. the real API answered.
	KindJSON BodyKind = "json"
	// KindGateway means a gateway or login page intercepted the request.
	KindGateway BodyKind = "gateway"
	// KindHTML means some other HTML page answered.
	KindHTML BodyKind = "html"
	// KindOther covers everything else.
	KindOther BodyKind = "other"
)

// API-key header spellings tried during probing, in order.
var apiKeyHeaders = []string{
	"X-Redmine-API-Key",
	"X-API-Key",
	"Authorization",
	"API-Key",
}

// User agents tried against picky gateways: the plain client identity, a
// desktop browser, and curl.
var probeUserAgents = []string{
	defaultUserAgent,
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	"curl/8.5.0",
}

// gatewayMarkers are substrings that betray a gateway or login page
// answering in Redmine's place.
var gatewayMarkers = []string{
	"netscaler",
	"citrix",
	"/vpn/index.html",
	"access gateway",
	"<form",
	"login",
	"anmelden",
	"single sign-on",
}

// gatewayEvidence returns the marker found in an HTML body, or "" when
// the body does not look like a gateway interception.
func gatewayEvidence(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return ""
	}
	lower := strings.ToLower(string(trimmed))
	for _, marker := range gatewayMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}

// classifyBody decides what kind of response a probe got back.
func classifyBody(body []byte) BodyKind {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return KindOther
	}
	if json.Valid(trimmed) {
		return KindJSON
	}
	if trimmed[0] == '<' {
		if gatewayEvidence(trimmed) != "" {
			return KindGateway
		}
		return KindHTML
	}
	return KindOther
}

// ProbeResult records one attempt to reach the API.
type ProbeResult struct {
	Method     string
	URL        string
	StatusCode int
	Kind       BodyKind
	OK         bool
	Err        error
}

// Credentials feeds the prober everything that might work.
type Credentials struct {
	APIKey   string
	User     string
	Password string
}

// Prober tries authentication methods, header spellings, alternative
// endpoints, and user agents against a Redmine deployment and reports
// what each attempt got back.
type Prober struct {
	baseURL   string
	directURL string
	creds     Credentials
	opts      []Option
	log       *zap.Logger

	// ProjectID, when set, scopes the probe queries to one project.
	ProjectID string
}

// NewProber creates a prober for baseURL. directURL, when non-empty, is
// an additional endpoint (typically an IP address) probed with the
// original host forced into the Host header.
func NewProber(baseURL, directURL string, creds Credentials, log *zap.Logger, opts ...Option) *Prober {
	if log == nil {
		log = zap.NewNop()
	}
	return &Prober{
		baseURL:   strings.TrimRight(baseURL, "/"),
		directURL: strings.TrimRight(directURL, "/"),
		creds:     creds,
		opts:      opts,
		log:       log,
	}
}

type probeAttempt struct {
	method string
	url    string
	opts   []Option
}

// attempts builds the ordered attempt list: API key as query parameter,
// each API-key header spelling, basic auth, no auth at all, then the
// same unauthenticated request against alternative URLs and user agents,
// and finally the direct endpoint with a forced Host header.
func (p *Prober) attempts() []probeAttempt {
	var list []probeAttempt
	if p.creds.APIKey != "" {
		list = append(list, probeAttempt{
			method: "api-key-param",
			url:    p.baseURL,
			opts:   []Option{WithAPIKey(p.creds.APIKey, "")},
		})
		for _, header := range apiKeyHeaders {
			list = append(list, probeAttempt{
				method: "api-key-header " + header,
				url:    p.baseURL,
				opts:   []Option{WithAPIKey(p.creds.APIKey, header)},
			})
		}
	}
	if p.creds.User != "" && p.creds.Password != "" {
		list = append(list, probeAttempt{
			method: "basic-auth",
			url:    p.baseURL,
			opts:   []Option{WithBasicAuth(p.creds.User, p.creds.Password)},
		})
	}
	list = append(list, probeAttempt{method: "no-auth", url: p.baseURL})

	for _, alt := range alternativeURLs(p.baseURL) {
		for _, ua := range probeUserAgents {
			list = append(list, probeAttempt{
				method: "alt-url ua=" + shortUA(ua),
				url:    alt,
				opts:   []Option{WithUserAgent(ua)},
			})
		}
	}

	if p.directURL != "" && p.directURL != p.baseURL {
		hostOpts := []Option{}
		if host := hostOf(p.baseURL); host != "" {
			hostOpts = append(hostOpts, WithHostHeader(host))
		}
		if p.creds.APIKey != "" {
			list = append(list, probeAttempt{
				method: "direct-url api-key-param",
				url:    p.directURL,
				opts:   append([]Option{WithAPIKey(p.creds.APIKey, "")}, hostOpts...),
			})
		}
		list = append(list, probeAttempt{
			method: "direct-url no-auth",
			url:    p.directURL,
			opts:   hostOpts,
		})
	}
	return list
}

// Run walks all attempts against /issues.json. It never stops early;
// the point is the complete picture of what the deployment lets
// through. An attempt is OK when the body is JSON carrying an "issues"
// key, i.e. the real API and not something pretending to be it.
func (p *Prober) Run(ctx context.Context) []ProbeResult {
	attempts := p.attempts()
	results := make([]ProbeResult, 0, len(attempts))
	for _, attempt := range attempts {
		results = append(results, p.runAttempt(ctx, attempt))
	}
	return results
}

// FirstWorking runs the probe and returns a client configured like the
// first attempt that reached the API, or nil when nothing got through.
func (p *Prober) FirstWorking(ctx context.Context) (*Client, []ProbeResult) {
	attempts := p.attempts()
	results := make([]ProbeResult, 0, len(attempts))
	for _, attempt := range attempts {
		result := p.runAttempt(ctx, attempt)
		results = append(results, result)
		if result.OK {
			return NewClient(attempt.url, append(attempt.opts, p.opts...)...), results
		}
	}
	return nil, results
}

func (p *Prober) runAttempt(ctx context.Context, attempt probeAttempt) ProbeResult {
	client := NewClient(attempt.url, append(attempt.opts, p.opts...)...)
	query := url.Values{}
	query.Set("limit", "1")
	if p.ProjectID != "" {
		query.Set("project_id", p.ProjectID)
	}
	body, status, err := client.getRaw(ctx, "/issues.json", query)
	kind := classifyBody(body)
	result := ProbeResult{
		Method:     attempt.method,
		URL:        attempt.url,
		StatusCode: status,
		Kind:       kind,
		OK:         err == nil && kind == KindJSON && hasIssuesKey(body),
		Err:        err,
	}
	p.log.Debug("probe attempt",
		zap.String("method", result.Method),
		zap.String("url", result.URL),
		zap.Int("status", result.StatusCode),
		zap.String("kind", string(result.Kind)),
		zap.Bool("ok", result.OK),
		zap.Error(err))
	return result
}

func hasIssuesKey(body []byte) bool {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false
	}
	_, ok := parsed["issues"]
	return ok
}

// GatewayKind names what answered when the base URL was fetched.
type GatewayKind string

const (
	// GatewayNone means no interception was detected.
	GatewayNone GatewayKind = "none"
	// GatewayNetScaler means a NetScaler/Citrix gateway answered.
	GatewayNetScaler GatewayKind = "netscaler"
	// GatewayRedmineLogin means Redmine's own login form answered.
	GatewayRedmineLogin GatewayKind = "redmine-login"
)

// DetectGateway fetches the base URL and reports what kind of page sits
// in front of the API.
func (p *Prober) DetectGateway(ctx context.Context) (GatewayKind, error) {
	client := NewClient(p.baseURL, p.opts...)
	body, _, err := client.getRaw(ctx, "/", nil)
	if err != nil {
		var gwErr *GatewayError
		if !errors.As(err, &gwErr) {
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				return GatewayNone, err
			}
		}
	}
	lower := strings.ToLower(string(body))
	switch {
	case strings.Contains(lower, "netscaler") || strings.Contains(lower, "citrix") ||
		strings.Contains(lower, "/vpn/index.html"):
		return GatewayNetScaler, nil
	case strings.Contains(lower, "redmine") && strings.Contains(lower, "login"):
		return GatewayRedmineLogin, nil
	default:
		return GatewayNone, nil
	}
}

// alternativeURLs derives endpoint variations worth probing: explicit
// ports, plain HTTP, and a /redmine path prefix.
func alternativeURLs(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	host := u.Hostname()
	var alts []string
	seen := map[string]bool{baseURL: true}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			alts = append(alts, s)
		}
	}
	add(fmt.Sprintf("https://%s:443", host))
	add(fmt.Sprintf("https://%s:3000", host))
	add(fmt.Sprintf("http://%s", host))
	add(fmt.Sprintf("https://%s/redmine", host))
	return alts
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func shortUA(ua string) string {
	if i := strings.IndexAny(ua, " ("); i > 0 {
		return ua[:i]
	}
	return ua
}
