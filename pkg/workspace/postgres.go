package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Schema creates the tables read by PostgresStore
const Schema = `
CREATE TABLE IF NOT EXISTS workspaces (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS workspace_repositories (
	workspace_id   TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL DEFAULT 0,
	owner          TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL,
	default_branch TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (workspace_id, owner, name)
);
`

// PostgresStore reads workspaces from PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens and pings a PostgreSQL connection
func OpenPostgres(ctx context.Context, url string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate creates the workspace tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create workspace tables: %w", err)
	}
	return nil
}

// GetWorkspace loads a workspace and its repositories
func (s *PostgresStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	ws := &Workspace{ID: id}

	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM workspaces WHERE id = $1`, id,
	).Scan(&ws.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, name, default_branch
		FROM workspace_repositories
		WHERE workspace_id = $1
		ORDER BY position, owner, name`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load repositories of %s: %w", id, err)
	}
	defer rows.Close()

	ws.Repositories = make([]Repository, 0)
	for rows.Next() {
		var repo Repository
		if err := rows.Scan(&repo.Owner, &repo.Name, &repo.DefaultBranch); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		ws.Repositories = append(ws.Repositories, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate repositories: %w", err)
	}

	return ws, nil
}

// ListWorkspaceIDs returns every workspace id ordered by id
func (s *PostgresStore) ListWorkspaceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
