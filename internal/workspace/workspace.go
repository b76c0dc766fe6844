// Package workspace discovers the packages of a multi-package workspace and
// builds their dependency graph.
package workspace

import (
	"fmt"
	"io/fs"
	"path"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/chalin/build/internal/logging"
)

// ManifestName is the per-package manifest file declaring identity and
// dependencies.
const ManifestName = "package.yaml"

// Manifest mirrors a package.yaml file. Dev dependencies participate in the
// graph like regular ones; they are how two packages may legitimately end up
// depending on each other.
type Manifest struct {
	Name            string   `json:"name"`
	Dependencies    []string `json:"dependencies,omitempty"`
	DevDependencies []string `json:"dev_dependencies,omitempty"`
}

// Node is a package in the workspace graph. Immutable after Scan returns.
type Node struct {
	Name         string
	Path         string
	Dependencies []string
}

// Scan walks the workspace filesystem and parses every package manifest it
// finds. The result maps package names to nodes.
func Scan(fsys fs.FS, log *logging.Logger) (map[string]*Node, error) {
	index := make(map[string]*Node)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != ManifestName {
			return nil
		}

		bs, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read manifest %s: %w", p, err)
		}

		var m Manifest
		if err := yaml.UnmarshalWithOptions(bs, &m, yaml.Strict()); err != nil {
			return fmt.Errorf("failed to parse manifest %s: %w", p, err)
		}
		if m.Name == "" {
			return fmt.Errorf("manifest %s declares no package name", p)
		}
		if prev, ok := index[m.Name]; ok {
			return fmt.Errorf("package %q declared by both %s and %s", m.Name, prev.Path, path.Dir(p))
		}

		deps := make([]string, 0, len(m.Dependencies)+len(m.DevDependencies))
		for _, dep := range slices.Concat(m.Dependencies, m.DevDependencies) {
			if !slices.Contains(deps, dep) {
				deps = append(deps, dep)
			}
		}

		index[m.Name] = &Node{
			Name:         m.Name,
			Path:         path.Dir(p),
			Dependencies: deps,
		}
		log.Debugf("discovered package %q at %s", m.Name, path.Dir(p))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return index, nil
}
