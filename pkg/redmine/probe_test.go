package redmine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want BodyKind
	}{
		{"json object", `{"user":{"id":1}}`, KindJSON},
		{"json array", `[1,2]`, KindJSON},
		{"netscaler page", `<html><title>Citrix Gateway</title></html>`, KindGateway},
		{"login form", `<html><form method="post">Anmelden</form></html>`, KindGateway},
		{"plain html", `<html><body>Hello</body></html>`, KindHTML},
		{"empty", ``, KindOther},
		{"text", `plain text`, KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyBody([]byte(tt.body)))
		})
	}
}

func TestProberAttemptOrder(t *testing.T) {
	p := NewProber("https://redmine.example.com", "https://10.0.0.5",
		Credentials{APIKey: "k", User: "u", Password: "pw"}, nil)
	attempts := p.attempts()

	var methods []string
	for _, a := range attempts {
		methods = append(methods, a.method)
	}
	require.GreaterOrEqual(t, len(methods), 8)
	assert.Equal(t, "api-key-param", methods[0])
	assert.Equal(t, "api-key-header X-Redmine-API-Key", methods[1])
	assert.Equal(t, "api-key-header X-API-Key", methods[2])
	assert.Equal(t, "api-key-header Authorization", methods[3])
	assert.Equal(t, "api-key-header API-Key", methods[4])
	assert.Equal(t, "basic-auth", methods[5])
	assert.Equal(t, "no-auth", methods[6])
	assert.Equal(t, "direct-url no-auth", methods[len(methods)-1])
}

func TestProberSkipsCredentialsItDoesNotHave(t *testing.T) {
	p := NewProber("https://redmine.example.com", "", Credentials{}, nil)
	for _, a := range p.attempts() {
		assert.NotContains(t, a.method, "api-key")
		assert.NotEqual(t, "basic-auth", a.method)
	}
}

const emptyIssuesJSON = `{"issues":[],"total_count":0,"offset":0,"limit":1}`

func TestFirstWorkingPrefersEarlierMethod(t *testing.T) {
	// The server accepts only the X-API-Key header; the key-parameter
	// attempt before it gets a gateway page.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k-123" {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html>NetScaler Gateway <form></form></html>`)
			return
		}
		if r.URL.Path == "/users/current.json" {
			fmt.Fprint(w, currentUserJSON)
			return
		}
		fmt.Fprint(w, emptyIssuesJSON)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, "", Credentials{APIKey: "k-123"}, nil)
	client, results := p.FirstWorking(context.Background())
	require.NotNil(t, client)

	// Attempts stop at the first working method.
	last := results[len(results)-1]
	assert.True(t, last.OK)
	assert.Equal(t, "api-key-header X-API-Key", last.Method)
	assert.Equal(t, KindJSON, last.Kind)
	for _, r := range results[:len(results)-1] {
		assert.False(t, r.OK)
		assert.Equal(t, KindGateway, r.Kind)
	}

	// The returned client really is usable.
	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alex", user.Login)
}

func TestRunNeverStopsEarly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/issues.json", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("project_id"))
		fmt.Fprint(w, emptyIssuesJSON)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, "", Credentials{APIKey: "k"}, nil)
	p.ProjectID = "7"
	results := p.Run(context.Background())
	assert.Equal(t, len(p.attempts()), len(results))
	assert.True(t, results[0].OK)
	assert.True(t, results[len(results)-1].OK || results[len(results)-1].Err != nil)
}

func TestProbeRejectsJSONWithoutIssuesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"something":"else"}`)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, "", Credentials{APIKey: "k"}, nil)
	client, results := p.FirstWorking(context.Background())
	assert.Nil(t, client)
	for _, r := range results {
		assert.False(t, r.OK)
	}
}

func TestDetectGateway(t *testing.T) {
	tests := []struct {
		name string
		body string
		want GatewayKind
	}{
		{"netscaler", `<html><title>NetScaler AAA</title></html>`, GatewayNetScaler},
		{"citrix vpn", `<html><a href="/vpn/index.html">weiter</a></html>`, GatewayNetScaler},
		{"redmine login", `<html><title>Redmine</title><form action="/login"></form></html>`, GatewayRedmineLogin},
		{"plain api", `{"issues":[]}`, GatewayNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			p := NewProber(srv.URL, "", Credentials{}, nil)
			kind, err := p.DetectGateway(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestAlternativeURLs(t *testing.T) {
	alts := alternativeURLs("https://redmine.example.com")
	assert.Contains(t, alts, "https://redmine.example.com:443")
	assert.Contains(t, alts, "https://redmine.example.com:3000")
	assert.Contains(t, alts, "http://redmine.example.com")
	assert.Contains(t, alts, "https://redmine.example.com/redmine")
	assert.NotContains(t, alts, "https://redmine.example.com")
}

func TestDirectURLForcesHostHeader(t *testing.T) {
	var gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		fmt.Fprint(w, currentUserJSON)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHostHeader("redmine.example.com"))
	_, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "redmine.example.com", gotHost)
}
