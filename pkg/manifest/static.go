package manifest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/depgraph/pkg/workspace"
)

// StaticSource serves manifests held in memory, keyed by repository full name
type StaticSource struct {
	manifests map[string]*Manifest
	mu        sync.RWMutex
}

// NewStaticSource creates an empty StaticSource
func NewStaticSource() *StaticSource {
	return &StaticSource{manifests: make(map[string]*Manifest)}
}

// Add registers the manifest for a repository full name (owner/name)
func (s *StaticSource) Add(fullName string, m *Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[fullName] = m
}

// Fetch returns the registered manifest
func (s *StaticSource) Fetch(ctx context.Context, repo workspace.Repository) (*Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.manifests[repo.FullName()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, repo.FullName())
	}
	return m, nil
}

type staticDocument struct {
	Manifests map[string]*Manifest `yaml:"manifests"`
}

// LoadStaticFile reads a YAML document of the form
//
//	manifests:
//	  acme/api:
//	    name: "@acme/api"
//	    version: 1.0.0
//	    package_manager: npm
//	    dependencies:
//	      - {name: "@acme/shared", version: 1.0.0, kind: direct}
func LoadStaticFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return ParseStatic(data)
}

// ParseStatic parses the YAML document accepted by LoadStaticFile
func ParseStatic(data []byte) (*StaticSource, error) {
	var doc staticDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid manifest file: %w", err)
	}

	src := NewStaticSource()
	for repo, m := range doc.Manifests {
		if m == nil {
			m = &Manifest{}
		}
		for i := range m.Dependencies {
			kind, err := ParseKind(string(m.Dependencies[i].Kind))
			if err != nil {
				return nil, fmt.Errorf("%s: dependency %s: %w", repo, m.Dependencies[i].Name, err)
			}
			m.Dependencies[i].Kind = kind
		}
		src.Add(repo, m)
	}
	return src, nil
}
