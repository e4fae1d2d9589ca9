package manifest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v74/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/depgraph/pkg/workspace"
)

func newTestGitHubSource(t *testing.T, handler http.Handler) *GitHubSource {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL

	return newGitHubSourceWithClient(client, GitHubConfig{RateLimit: 360000, Burst: 100})
}

func writeContent(w http.ResponseWriter, name, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"type":     "file",
		"name":     name,
		"path":     name,
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
	})
}

func TestGitHubSource_FetchPackageJSON(t *testing.T) {
	var gotRef string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/contents/package.json", func(w http.ResponseWriter, r *http.Request) {
		gotRef = r.URL.Query().Get("ref")
		writeContent(w, "package.json", `{"name":"@acme/api","version":"1.0.0","dependencies":{"@acme/shared":"1.0.0"}}`)
	})

	src := newTestGitHubSource(t, mux)
	m, err := src.Fetch(context.Background(), workspace.Repository{Owner: "acme", Name: "api", DefaultBranch: "main"})
	require.NoError(t, err)

	assert.Equal(t, "main", gotRef)
	assert.Equal(t, "@acme/api", m.Name)
	require.Len(t, m.Dependencies, 1)
	assert.Equal(t, "@acme/shared", m.Dependencies[0].Name)
}

func TestGitHubSource_FallsBackToGoMod(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/svc/contents/package.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/repos/acme/svc/contents/go.mod", func(w http.ResponseWriter, r *http.Request) {
		writeContent(w, "go.mod", "module github.com/acme/svc\n\nrequire github.com/acme/shared v1.0.0\n")
	})

	src := newTestGitHubSource(t, mux)
	m, err := src.Fetch(context.Background(), workspace.Repository{Owner: "acme", Name: "svc"})
	require.NoError(t, err)

	assert.Equal(t, "github.com/acme/svc", m.Name)
	assert.Equal(t, PackageManagerGoMod, m.PackageManager)
}

func TestGitHubSource_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	src := newTestGitHubSource(t, mux)
	_, err := src.Fetch(context.Background(), workspace.Repository{Owner: "acme", Name: "empty"})
	assert.True(t, errors.Is(err, ErrManifestNotFound))
}

func TestGitHubSource_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})

	src := newTestGitHubSource(t, mux)
	_, err := src.Fetch(context.Background(), workspace.Repository{Owner: "acme", Name: "api"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrManifestNotFound))
}

func TestGitHubSource_RequiresOwner(t *testing.T) {
	src := newTestGitHubSource(t, http.NotFoundHandler())
	_, err := src.Fetch(context.Background(), workspace.Repository{Name: "api"})
	assert.Error(t, err)
}

func TestNewGitHubSource_EnterpriseURL(t *testing.T) {
	src, err := NewGitHubSource(GitHubConfig{Token: "t", BaseURL: "https://ghe.example.com/api/v3/"})
	require.NoError(t, err)
	assert.Equal(t, "ghe.example.com", src.client.BaseURL.Host)
}
