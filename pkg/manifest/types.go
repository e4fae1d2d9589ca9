package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/depgraph/pkg/workspace"
)

var (
	// ErrManifestNotFound is returned when a repository has no supported manifest file
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrUnsupportedManifest is returned for manifest files this package cannot parse
	ErrUnsupportedManifest = errors.New("unsupported manifest format")
)

// Kind classifies a declared dependency
type Kind string

const (
	KindDirect Kind = "direct"
	KindDev    Kind = "dev"
	KindPeer   Kind = "peer"
)

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindDirect, KindDev, KindPeer:
		return true
	}
	return false
}

// ParseKind converts a string into a Kind. An empty string means direct.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindDirect, nil
	}
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown dependency kind %q", s)
	}
	return k, nil
}

// Package manager tags recorded on manifests
const (
	PackageManagerNPM   = "npm"
	PackageManagerGoMod = "gomod"
)

// Dependency is one declared dependency
type Dependency struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Kind    Kind   `json:"kind" yaml:"kind"`
}

// Manifest is the parsed manifest of one repository
type Manifest struct {
	// Name of the package published by the repository. Empty when the
	// manifest does not declare one.
	Name           string       `json:"name,omitempty" yaml:"name"`
	Version        string       `json:"version,omitempty" yaml:"version"`
	PackageManager string       `json:"package_manager,omitempty" yaml:"package_manager"`
	Dependencies   []Dependency `json:"dependencies" yaml:"dependencies"`
}

// Source fetches the manifest of a repository
type Source interface {
	Fetch(ctx context.Context, repo workspace.Repository) (*Manifest, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc func(ctx context.Context, repo workspace.Repository) (*Manifest, error)

// Fetch calls f
func (f SourceFunc) Fetch(ctx context.Context, repo workspace.Repository) (*Manifest, error) {
	return f(ctx, repo)
}

func cacheKey(repo workspace.Repository) string {
	return repo.FullName() + "@" + repo.DefaultBranch
}
