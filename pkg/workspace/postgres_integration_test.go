//go:build integration

package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("depgraph"),
		postgres.WithUsername("depgraph"),
		postgres.WithPassword("depgraph"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenPostgres(ctx, url, 4)
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	require.NoError(t, store.Migrate(ctx))

	_, err = db.ExecContext(ctx, `INSERT INTO workspaces (id, name) VALUES ('platform', 'Platform')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO workspace_repositories (workspace_id, position, owner, name, default_branch)
		VALUES ('platform', 1, 'acme', 'shared', 'main'), ('platform', 0, 'acme', 'api', 'main')`)
	require.NoError(t, err)

	ws, err := store.GetWorkspace(ctx, "platform")
	require.NoError(t, err)
	require.Len(t, ws.Repositories, 2)
	assert.Equal(t, "acme/api", ws.Repositories[0].FullName())
	assert.Equal(t, "acme/shared", ws.Repositories[1].FullName())

	_, err = store.GetWorkspace(ctx, "missing")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}
