package plan

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/chalin/build/internal/config"
	"github.com/chalin/build/internal/loader"
	"github.com/chalin/build/internal/logging"
	"github.com/chalin/build/internal/metrics"
	"github.com/chalin/build/internal/order"
	"github.com/chalin/build/internal/planner"
	"github.com/chalin/build/internal/workspace"
)

// Application re-exports the planner's resolved output unit.
type Application = planner.Application

// Registry re-exports the factory registry consulted during planning.
type Registry = planner.Registry

// Override is a full replacement configuration for a named package. When an
// override exists the package's own build.yaml is ignored entirely. Builder,
// Target and InputSet are aliased so that consumers can construct overrides
// without reaching into internal packages.
type (
	Override = config.Config
	Builder  = config.Builder
	Target   = config.Target
	Defaults = config.Defaults
	InputSet = config.InputSet
)

// Plan is the ordered, fully resolved application sequence. Builders always
// precede PostProcess in consumer-facing order.
type Plan struct {
	Root        string        `json:"root"`
	Packages    []string      `json:"packages"`
	Builders    []Application `json:"builders,omitempty"`
	PostProcess []Application `json:"post_process,omitempty"`
}

// YAML serializes the plan. Output is byte-identical across runs on
// identical inputs.
func (p *Plan) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}

func (p *Plan) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Planner computes build plans for a workspace rooted at a named package.
type Planner struct {
	fsys      fs.FS
	root      string
	overrides map[string]*Override
	registry  Registry
	workers   int
	log       *logging.Logger
}

func New(fsys fs.FS, root string) *Planner {
	return &Planner{
		fsys: fsys,
		root: root,
		log:  logging.Discard(),
	}
}

func (p *Planner) WithOverrides(overrides map[string]*Override) *Planner {
	p.overrides = overrides
	return p
}

func (p *Planner) WithRegistry(registry Registry) *Planner {
	p.registry = registry
	return p
}

func (p *Planner) WithWorkers(n int) *Planner {
	p.workers = n
	return p
}

func (p *Planner) WithLogger(log *logging.Logger) *Planner {
	p.log = log
	return p
}

// Plan runs workspace scan, graph flattening, config loading, ordering and
// application planning. It returns either a complete plan or an Errors value
// enumerating every configuration error found; never both, never a partial
// plan.
func (p *Planner) Plan(ctx context.Context) (*Plan, error) {
	start := time.Now()

	result, err := p.plan(ctx)
	if err != nil {
		metrics.PlanFailed.WithLabelValues(p.root, errorType(err)).Inc()
		return nil, intoErrors(err)
	}

	metrics.PlanSucceeded(p.root, start)
	return result, nil
}

func (p *Planner) plan(ctx context.Context) (*Plan, error) {
	index, err := workspace.Scan(p.fsys, p.log)
	if err != nil {
		return nil, err
	}

	nodes, err := workspace.Graph(p.root, index)
	if err != nil {
		return nil, err
	}
	p.log.Debugf("package graph for %q: %d packages", p.root, len(nodes))

	configs, err := loader.Load(ctx, p.fsys, nodes, p.overrides, p.workers, p.log)
	if err != nil {
		return nil, err
	}

	// Flatten definitions in graph order; within a package, keys are sorted.
	var builders, postProcess []*config.Builder
	for _, c := range configs {
		for _, key := range c.BuilderKeys() {
			builders = append(builders, c.Builders[key])
		}
		for _, key := range c.PostProcessBuilderKeys() {
			postProcess = append(postProcess, c.PostProcessBuilders[key])
		}
	}

	orderedBuilders, err := order.Sort(builders)
	if err != nil {
		return nil, err
	}
	orderedPostProcess, err := order.Sort(postProcess)
	if err != nil {
		return nil, err
	}

	pl := planner.New(p.root, nodes, p.registry)

	// Planning errors from the two phases are collected together so a bad
	// builder in one phase does not mask errors in the other.
	builderApps, builderErr := pl.Plan(orderedBuilders)
	postProcessApps, postProcessErr := pl.Plan(orderedPostProcess)
	if builderErr != nil || postProcessErr != nil {
		return nil, errors.Join(builderErr, postProcessErr)
	}

	packages := make([]string, len(nodes))
	for i, node := range nodes {
		packages[i] = node.Name
	}

	return &Plan{
		Root:        p.root,
		Packages:    packages,
		Builders:    builderApps,
		PostProcess: postProcessApps,
	}, nil
}
