// Package loader produces one merged build configuration per package, in the
// fixed package graph order.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/chalin/build/internal/config"
	"github.com/chalin/build/internal/logging"
	"github.com/chalin/build/internal/metrics"
	"github.com/chalin/build/internal/util"
	"github.com/chalin/build/internal/workspace"
)

// ConfigName is the optional per-package build configuration file.
const ConfigName = "build.yaml"

const defaultWorkers = 16

// Load resolves a configuration for every node, in node order:
//
//   - a workspace override for the package name wins outright and the
//     package's own file is never read,
//   - otherwise the package's build.yaml is parsed if present,
//   - otherwise a default configuration is synthesized.
//
// File reads are latency bound, so they fan out across a bounded worker
// group and join before any result is observed; the output order is the node
// order regardless of which read finishes first. Loading is all-or-nothing:
// any parse failure fails the whole load, because a missing builder in one
// package can silently change apply scopes in others.
func Load(ctx context.Context, fsys fs.FS, nodes []*workspace.Node, overrides map[string]*config.Config, workers int, log *logging.Logger) ([]*config.Config, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	configs := make([]*config.Config, len(nodes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, node := range nodes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if override, ok := overrides[node.Name]; ok {
				// Overrides replace the package's declared configuration
				// wholesale; there is no field-by-field merge.
				if err := override.Normalize(node.Name, node.Dependencies); err != nil {
					return err
				}
				log.Debugf("package %q: using workspace override", node.Name)
				configs[i] = override
				return nil
			}

			filename := path.Join(node.Path, ConfigName)
			bs, err := fs.ReadFile(fsys, filename)
			if errors.Is(err, fs.ErrNotExist) {
				configs[i] = config.Default(node.Name, node.Dependencies)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read build configuration for package %q: %w", node.Name, err)
			}

			c, err := config.Parse(bs, node.Name, node.Dependencies)
			if err != nil {
				var parseErr *config.ParseError
				if errors.As(err, &parseErr) {
					parseErr.File = filename
				}
				return err
			}

			metrics.ConfigFilesLoaded.Inc()
			log.Debugf("package %q: parsed %s", node.Name, filename)
			configs[i] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := validate(nodes, configs); err != nil {
		return nil, err
	}

	return configs, nil
}

// validate runs the single-threaded post-join passes: cross-package key
// references must point at packages in the graph, and each of the three key
// namespaces (builders, post-process builders, targets) is write-once across
// the whole workspace.
func validate(nodes []*workspace.Node, configs []*config.Config) error {
	inGraph := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		inGraph[node.Name] = true
	}

	builders := make(map[string]string)    // key -> declaring package
	postProcess := make(map[string]string) // separate namespace from builders
	targets := make(map[string]string)

	for i, c := range configs {
		owner := nodes[i].Name

		for _, key := range c.BuilderKeys() {
			if err := claim(builders, key, owner, inGraph); err != nil {
				return err
			}
			for _, after := range c.Builders[key].RunsAfter {
				if pkg, _ := config.SplitKey(after); !inGraph[pkg] {
					return &config.ParseError{Package: owner, Key: key, Err: fmt.Errorf("runs_after %q references unknown package %q", after, pkg)}
				}
			}
		}
		for _, key := range c.PostProcessBuilderKeys() {
			if err := claim(postProcess, key, owner, inGraph); err != nil {
				return err
			}
		}
		for _, key := range c.TargetKeys() {
			if err := claim(targets, key, owner, inGraph); err != nil {
				return err
			}
			for _, usageKey := range util.SortedKeys(c.Targets[key].Builders) {
				if pkg, _ := config.SplitKey(usageKey); !inGraph[pkg] {
					return &config.ParseError{Package: owner, Key: key, Err: fmt.Errorf("builder usage %q references unknown package %q", usageKey, pkg)}
				}
			}
		}
	}

	return nil
}

func claim(namespace map[string]string, key, owner string, inGraph map[string]bool) error {
	if pkg, _ := config.SplitKey(key); !inGraph[pkg] {
		return &config.ParseError{Package: owner, Key: key, Err: fmt.Errorf("key references unknown package %q", pkg)}
	}
	if prev, ok := namespace[key]; ok {
		return &config.DuplicateKeyError{Key: key, Packages: []string{prev, owner}}
	}
	namespace[key] = owner
	return nil
}
