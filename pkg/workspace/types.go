package workspace

import (
	"context"
	"errors"
)

// ErrWorkspaceNotFound is returned when a store has no workspace with the requested id
var ErrWorkspaceNotFound = errors.New("workspace not found")

// Repository identifies one repository of a workspace
type Repository struct {
	Owner         string `json:"owner" yaml:"owner"`
	Name          string `json:"name" yaml:"name"`
	DefaultBranch string `json:"default_branch,omitempty" yaml:"default_branch"`
}

// FullName returns owner/name, or just the name for owner-less repositories
func (r Repository) FullName() string {
	if r.Owner == "" {
		return r.Name
	}
	return r.Owner + "/" + r.Name
}

// Workspace is a named set of repositories
type Workspace struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name,omitempty" yaml:"name"`
	Repositories []Repository `json:"repositories" yaml:"repositories"`
}

// Store supplies workspace definitions
type Store interface {
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
}
