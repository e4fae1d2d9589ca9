package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/platinummonkey/depgraph/pkg/workspace"
)

// FilesystemSource reads manifests from local checkouts under Root.
// A repository acme/api is expected at <Root>/acme/api, an owner-less one at <Root>/<name>.
type FilesystemSource struct {
	Root string
}

// NewFilesystemSource creates a Source rooted at dir
func NewFilesystemSource(dir string) *FilesystemSource {
	return &FilesystemSource{Root: dir}
}

// Fetch returns the first supported manifest found in the checkout
func (s *FilesystemSource) Fetch(ctx context.Context, repo workspace.Repository) (*Manifest, error) {
	dir := filepath.Join(s.Root, filepath.FromSlash(repo.FullName()))

	for _, file := range ManifestFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(dir, file))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s of %s: %w", file, repo.FullName(), err)
		}
		return Parse(file, data)
	}

	return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, dir)
}
