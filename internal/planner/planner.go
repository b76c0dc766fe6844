// Package planner expands ordered builder definitions into fully resolved
// applications, the terminal consumer-facing output.
package planner

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chalin/build/internal/config"
	"github.com/chalin/build/internal/workspace"
)

// Application is a single planned builder run. Every field is resolved; the
// consumer needs no further configuration lookups.
type Application struct {
	Package          string           `json:"package"`
	Name             string           `json:"name"`
	Key              string           `json:"key"`
	Import           string           `json:"import"`
	BuilderFactories []string         `json:"builder_factories,omitempty"`
	AppliesTo        []string         `json:"applies_to,omitempty"`
	GenerateFor      *config.InputSet `json:"generate_for,omitempty"`
	Optional         bool             `json:"optional,omitempty"`
	HideOutput       bool             `json:"hide_output,omitempty"`
}

// Registry maps a builder's logical import to the factory names it exports.
// A nil registry disables reference resolution.
type Registry map[string][]string

// ResolveError reports a builder whose import or factory reference cannot be
// resolved against the registry.
type ResolveError struct {
	Key     string
	Import  string
	Factory string
}

func (e *ResolveError) Error() string {
	if e.Factory != "" {
		return fmt.Sprintf("builder %q: factory %q not found in %q", e.Key, e.Factory, e.Import)
	}
	return fmt.Sprintf("builder %q: import %q not found", e.Key, e.Import)
}

// Planner resolves apply scopes against a fixed package graph.
type Planner struct {
	root       string
	order      []string            // package names in graph order
	dependents map[string][]string // package -> transitive dependents, graph order
	registry   Registry
}

func New(root string, nodes []*workspace.Node, registry Registry) *Planner {
	p := &Planner{
		root:       root,
		order:      make([]string, len(nodes)),
		dependents: make(map[string][]string, len(nodes)),
		registry:   registry,
	}

	// nodes arrive leaf-first, so by the time a package is processed the
	// transitive dependency sets of its dependencies are complete. Cyclic
	// components converge because members list each other as direct deps.
	transitive := make(map[string]map[string]bool, len(nodes))
	for _, node := range nodes {
		deps := make(map[string]bool)
		for _, dep := range node.Dependencies {
			deps[dep] = true
			for d := range transitive[dep] {
				deps[d] = true
			}
		}
		transitive[node.Name] = deps
	}
	// Within a cycle a single pass undercounts; close the sets.
	for changed := true; changed; {
		changed = false
		for _, node := range nodes {
			deps := transitive[node.Name]
			for dep := range deps {
				for d := range transitive[dep] {
					if !deps[d] && d != node.Name {
						deps[d] = true
						changed = true
					}
				}
			}
		}
	}

	for i, node := range nodes {
		p.order[i] = node.Name
	}
	for _, node := range nodes {
		for _, other := range nodes {
			if other.Name != node.Name && transitive[other.Name][node.Name] {
				p.dependents[node.Name] = append(p.dependents[node.Name], other.Name)
			}
		}
	}

	return p
}

// Plan maps each ordered definition to an application. Reference resolution
// failures and unknown auto-apply values do not mask each other: they are
// collected across all builders and returned together, and no partial result
// is returned alongside them.
func (p *Planner) Plan(ordered []*config.Builder) ([]Application, error) {
	apps := make([]Application, 0, len(ordered))
	var errs []error

	for _, b := range ordered {
		appliesTo, err := p.appliesTo(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := p.resolve(b); err != nil {
			errs = append(errs, err)
			continue
		}

		app := Application{
			Package:          b.Package,
			Name:             b.Name,
			Key:              b.Key,
			Import:           b.Import,
			BuilderFactories: slices.Clone(b.BuilderFactories),
			AppliesTo:        appliesTo,
			Optional:         b.IsOptional,
			HideOutput:       b.BuildTo == config.BuildToCache,
		}
		if b.Defaults != nil {
			app.GenerateFor = b.Defaults.GenerateFor
		}
		apps = append(apps, app)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return apps, nil
}

func (p *Planner) appliesTo(b *config.Builder) ([]string, error) {
	switch b.AutoApply {
	case "", config.AutoApplyNone:
		// Explicit per-target opt-in only.
		return nil, nil
	case config.AutoApplyDependents:
		return slices.Clone(p.dependents[b.Package]), nil
	case config.AutoApplyAllPackages:
		return slices.Clone(p.order), nil
	case config.AutoApplyRootPackage:
		return []string{p.root}, nil
	default:
		return nil, &config.UnknownAutoApplyError{Key: b.Key, Value: b.AutoApply}
	}
}

func (p *Planner) resolve(b *config.Builder) error {
	if p.registry == nil {
		return nil
	}

	factories, ok := p.registry[b.Import]
	if !ok {
		return &ResolveError{Key: b.Key, Import: b.Import}
	}
	for _, factory := range b.BuilderFactories {
		if !slices.Contains(factories, factory) {
			return &ResolveError{Key: b.Key, Import: b.Import, Factory: factory}
		}
	}
	return nil
}
