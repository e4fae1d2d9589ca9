package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest("GET", "/workspaces/ws-1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "ws-1"})

	val, err := ParsePathString(req, "id")
	require.NoError(t, err)
	assert.Equal(t, "ws-1", val)

	_, err = ParsePathString(req, "missing")
	assert.Error(t, err)
}

func TestParsePathStringOrError(t *testing.T) {
	req := httptest.NewRequest("GET", "/workspaces/", nil)
	w := httptest.NewRecorder()

	_, ok := ParsePathStringOrError(w, req, "id")

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryInt(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    int
		wantErr bool
	}{
		{"present", "/x?depth=5", 5, false},
		{"default", "/x", 3, false},
		{"invalid", "/x?depth=deep", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			got, err := ParseQueryInt(req, "depth", 3)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?dev=true&peer=nope", nil)

	dev, err := ParseQueryBool(req, "dev", false)
	require.NoError(t, err)
	assert.True(t, dev)

	transitive, err := ParseQueryBool(req, "transitive", true)
	require.NoError(t, err)
	assert.True(t, transitive)

	_, err = ParseQueryBool(req, "peer", false)
	assert.Error(t, err)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?format=cytoscape", nil)

	assert.Equal(t, "cytoscape", ParseQueryString(req, "format", "vis"))
	assert.Equal(t, "vis", ParseQueryString(req, "other", "vis"))
}

func TestRequireQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?node=a", nil)

	w := httptest.NewRecorder()
	val, ok := RequireQuery(w, req, "node")
	assert.True(t, ok)
	assert.Equal(t, "a", val)

	w = httptest.NewRecorder()
	_, ok = RequireQuery(w, req, "from")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "from")
}
