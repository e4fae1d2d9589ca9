package manifest

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"golang.org/x/mod/modfile"
)

// ManifestFiles lists the file names probed in each repository, in order
var ManifestFiles = []string{"package.json", "go.mod"}

// Parse dispatches on the base name of filename
func Parse(filename string, data []byte) (*Manifest, error) {
	switch path.Base(filename) {
	case "package.json":
		return ParsePackageJSON(data)
	case "go.mod":
		return ParseGoMod(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedManifest, filename)
	}
}

type packageJSON struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
}

// ParsePackageJSON parses an npm package.json. Dependencies are emitted per
// section (direct, dev, peer), sorted by name within each section.
func ParsePackageJSON(data []byte) (*Manifest, error) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("invalid package.json: %w", err)
	}

	m := &Manifest{
		Name:           pkg.Name,
		Version:        pkg.Version,
		PackageManager: PackageManagerNPM,
		Dependencies:   make([]Dependency, 0, len(pkg.Dependencies)+len(pkg.DevDependencies)+len(pkg.PeerDependencies)),
	}
	m.Dependencies = appendSection(m.Dependencies, pkg.Dependencies, KindDirect)
	m.Dependencies = appendSection(m.Dependencies, pkg.DevDependencies, KindDev)
	m.Dependencies = appendSection(m.Dependencies, pkg.PeerDependencies, KindPeer)
	return m, nil
}

func appendSection(deps []Dependency, section map[string]string, kind Kind) []Dependency {
	names := make([]string, 0, len(section))
	for name := range section {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		deps = append(deps, Dependency{Name: name, Version: section[name], Kind: kind})
	}
	return deps
}

// ParseGoMod parses a go.mod file. Requirements marked // indirect are skipped
// since they are not declared by the module itself.
func ParseGoMod(data []byte) (*Manifest, error) {
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid go.mod: %w", err)
	}
	if f.Module == nil {
		return nil, fmt.Errorf("invalid go.mod: missing module directive")
	}

	m := &Manifest{
		Name:           f.Module.Mod.Path,
		PackageManager: PackageManagerGoMod,
		Dependencies:   make([]Dependency, 0, len(f.Require)),
	}
	for _, req := range f.Require {
		if req.Indirect {
			continue
		}
		m.Dependencies = append(m.Dependencies, Dependency{
			Name:    req.Mod.Path,
			Version: req.Mod.Version,
			Kind:    KindDirect,
		})
	}
	return m, nil
}
