package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkspaceYAML = `
workspaces:
  - id: platform
    name: Platform
    repositories:
      - owner: acme
        name: api
        default_branch: main
      - owner: acme
        name: shared
  - id: tools
    repositories:
      - name: cli
`

func writeWorkspaceFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileStore_GetWorkspace(t *testing.T) {
	store, err := NewFileStore(writeWorkspaceFile(t, testWorkspaceYAML), nil)
	require.NoError(t, err)

	ws, err := store.GetWorkspace(context.Background(), "platform")
	require.NoError(t, err)
	assert.Equal(t, "Platform", ws.Name)
	require.Len(t, ws.Repositories, 2)
	assert.Equal(t, "acme/api", ws.Repositories[0].FullName())
	assert.Equal(t, "main", ws.Repositories[0].DefaultBranch)
	assert.Equal(t, "", ws.Repositories[1].DefaultBranch)

	tools, err := store.GetWorkspace(context.Background(), "tools")
	require.NoError(t, err)
	assert.Equal(t, "cli", tools.Repositories[0].FullName())
}

func TestFileStore_GetWorkspace_NotFound(t *testing.T) {
	store, err := NewFileStore(writeWorkspaceFile(t, testWorkspaceYAML), nil)
	require.NoError(t, err)

	_, err = store.GetWorkspace(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrWorkspaceNotFound))
}

func TestFileStore_ReturnsCopy(t *testing.T) {
	store, err := NewFileStore(writeWorkspaceFile(t, testWorkspaceYAML), nil)
	require.NoError(t, err)

	ws, err := store.GetWorkspace(context.Background(), "platform")
	require.NoError(t, err)
	ws.Repositories[0].Name = "changed"

	again, err := store.GetWorkspace(context.Background(), "platform")
	require.NoError(t, err)
	assert.Equal(t, "api", again.Repositories[0].Name)
}

func TestFileStore_ListWorkspaceIDs(t *testing.T) {
	store, err := NewFileStore(writeWorkspaceFile(t, testWorkspaceYAML), nil)
	require.NoError(t, err)

	ids, err := store.ListWorkspaceIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"platform", "tools"}, ids)
}

func TestNewFileStore_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed yaml", content: "workspaces: [\n"},
		{name: "missing id", content: "workspaces:\n  - name: x\n"},
		{name: "duplicate id", content: "workspaces:\n  - id: a\n  - id: a\n"},
		{name: "repository without name", content: "workspaces:\n  - id: a\n    repositories:\n      - owner: acme\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileStore(writeWorkspaceFile(t, tt.content), nil)
			assert.Error(t, err)
		})
	}
}

func TestNewFileStore_MissingFile(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestFileStore_Reload_KeepsPreviousOnError(t *testing.T) {
	path := writeWorkspaceFile(t, testWorkspaceYAML)
	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("workspaces: [\n"), 0o644))
	assert.Error(t, store.Reload())

	_, err = store.GetWorkspace(context.Background(), "platform")
	assert.NoError(t, err)
}

func TestFileStore_Watch(t *testing.T) {
	path := writeWorkspaceFile(t, testWorkspaceYAML)
	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := testWorkspaceYAML + "  - id: added\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		_, err := store.GetWorkspace(context.Background(), "added")
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
