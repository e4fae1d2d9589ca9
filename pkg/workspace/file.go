package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk layout of a workspace file
type fileDocument struct {
	Workspaces []Workspace `yaml:"workspaces"`
}

// FileStore serves workspaces defined in a YAML file
type FileStore struct {
	path       string
	workspaces map[string]*Workspace
	order      []string
	mu         sync.RWMutex
	log        *logrus.Logger
}

// NewFileStore loads the workspace file at path
func NewFileStore(path string, log *logrus.Logger) (*FileStore, error) {
	if log == nil {
		log = logrus.New()
	}

	s := &FileStore{
		path: path,
		log:  log,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// GetWorkspace returns a copy of the workspace with the given id
func (s *FileStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}

	out := *ws
	out.Repositories = append([]Repository(nil), ws.Repositories...)
	return &out, nil
}

// ListWorkspaceIDs lists the ids of every workspace in the file, in file order
func (s *FileStore) ListWorkspaceIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.order...), nil
}

// Reload re-reads the workspace file. On error the previous contents are kept.
func (s *FileStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read workspace file: %w", err)
	}

	workspaces, order, err := parseWorkspaceFile(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.workspaces = workspaces
	s.order = order
	s.mu.Unlock()

	s.log.Debugf("Loaded %d workspaces from %s", len(workspaces), s.path)
	return nil
}

// Watch reloads the file whenever it changes until ctx is cancelled.
// The parent directory is watched so editors that replace the file are handled.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warnf("Failed to reload workspace file %s: %v", s.path, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warnf("Workspace file watcher error: %v", err)
		}
	}
}

func parseWorkspaceFile(data []byte) (map[string]*Workspace, []string, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid workspace file: %w", err)
	}

	workspaces := make(map[string]*Workspace, len(doc.Workspaces))
	order := make([]string, 0, len(doc.Workspaces))
	for i := range doc.Workspaces {
		ws := doc.Workspaces[i]
		if ws.ID == "" {
			return nil, nil, fmt.Errorf("workspace at index %d has no id", i)
		}
		if _, dup := workspaces[ws.ID]; dup {
			return nil, nil, fmt.Errorf("duplicate workspace id: %s", ws.ID)
		}
		for j, repo := range ws.Repositories {
			if repo.Name == "" {
				return nil, nil, fmt.Errorf("workspace %s: repository at index %d has no name", ws.ID, j)
			}
		}
		workspaces[ws.ID] = &ws
		order = append(order, ws.ID)
	}
	return workspaces, order, nil
}
