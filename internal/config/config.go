package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"

	"github.com/chalin/build/internal/util"
)

// Per-package build configuration data structures. A package declares its
// builders, post-process builders and targets in a build.yaml file; workspace
// overrides supply the same structure programmatically.

const (
	// DefaultKey is the target key that expands to the owning package's own
	// name, i.e. "$default" inside package p means "p:p".
	DefaultKey = "$default"

	AutoApplyNone        = "none"
	AutoApplyDependents  = "dependents"
	AutoApplyAllPackages = "all_packages"
	AutoApplyRootPackage = "root_package"

	BuildToSource = "source"
	BuildToCache  = "cache"
)

// Config is the merged per-package build configuration. Builder and target
// keys are canonical "package:name" strings after Normalize has run.
type Config struct {
	Package             string              `json:"-"`
	Builders            map[string]*Builder `json:"builders,omitempty"`
	PostProcessBuilders map[string]*Builder `json:"post_process_builders,omitempty"`
	Targets             map[string]*Target  `json:"targets,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Builder declares a single code generation unit. The same shape serves both
// regular and post-process builders; the two live in separate key namespaces
// inside Config so ordering constraints cannot cross the kinds.
type Builder struct {
	Package string `json:"-"`
	Name    string `json:"-"`
	Key     string `json:"-"`

	Import           string    `json:"import"`
	BuilderFactories []string  `json:"builder_factories"`
	AutoApply        string    `json:"auto_apply,omitempty"`
	BuildTo          string    `json:"build_to,omitempty" enum:"source,cache"`
	IsOptional       bool      `json:"is_optional,omitempty"`
	RunsAfter        []string  `json:"runs_after,omitempty"`
	Defaults         *Defaults `json:"defaults,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Defaults carries the default generation scope applied when a target does
// not override it.
type Defaults struct {
	GenerateFor *InputSet `json:"generate_for,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Target is a named grouping of sources within a package. Every package
// resolves to at least one target; the default target is named after the
// package itself.
type Target struct {
	Package string `json:"-"`
	Name    string `json:"-"`
	Key     string `json:"-"`

	Dependencies []string                      `json:"dependencies,omitempty"`
	Sources      InputSet                      `json:"sources,omitzero"`
	Builders     map[string]TargetBuilderUsage `json:"builders,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// TargetBuilderUsage is a per-target override for a builder: explicit opt-in
// for optional builders, opt-out for default-applied ones, and a narrower
// generation scope.
type TargetBuilderUsage struct {
	Enabled     *bool     `json:"enabled,omitempty"`
	GenerateFor *InputSet `json:"generate_for,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// InputSet is a pair of include/exclude glob pattern lists. Nil pattern
// lists match everything.
type InputSet struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`

	include []glob.Glob // pre-compiled patterns for matching
	exclude []glob.Glob
}

func NewInputSet(include, exclude []string) (*InputSet, error) {
	s := &InputSet{Include: include, Exclude: exclude}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *InputSet) UnmarshalYAML(bs []byte) error {
	type rawInputSet InputSet // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawInputSet

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode input set: %w", err)
	}

	*s = InputSet(raw)
	return s.compile()
}

func (s *InputSet) compile() error {
	s.include = s.include[:0]
	s.exclude = s.exclude[:0]
	for _, pattern := range s.Include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("failed to compile include pattern %q: %w", pattern, err)
		}
		s.include = append(s.include, g)
	}
	for _, pattern := range s.Exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("failed to compile exclude pattern %q: %w", pattern, err)
		}
		s.exclude = append(s.exclude, g)
	}
	return nil
}

// Matches checks a workspace-relative path against the set. An unset include
// list admits every path; excludes are applied after includes.
func (s *InputSet) Matches(path string) bool {
	if s == nil {
		return true
	}
	if len(s.include) > 0 {
		ok := false
		for _, g := range s.include {
			if g.Match(path) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, g := range s.exclude {
		if g.Match(path) {
			return false
		}
	}
	return true
}

func (s *InputSet) Equal(other *InputSet) bool {
	return util.FastEqual(s, other, func(s, other *InputSet) bool {
		return util.SetEqual(s.Include, other.Include, func(s string) string { return s }, func(a, b string) bool { return a == b }) &&
			util.SetEqual(s.Exclude, other.Exclude, func(s string) string { return s }, func(a, b string) bool { return a == b })
	})
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Config. This
// lets builders and targets be declared as mappings where the keys are the
// builder/target names; the keys are injected into the value structs here.
func (c *Config) UnmarshalYAML(bs []byte) error {
	type rawConfig Config // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawConfig

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode build configuration: %w", err)
	}

	*c = Config(raw)
	return c.unmarshal()
}

func (c *Config) unmarshal() error {
	for name, b := range c.Builders {
		if b == nil {
			b = &Builder{}
			c.Builders[name] = b
		}
		b.Name = name
	}
	for name, b := range c.PostProcessBuilders {
		if b == nil {
			b = &Builder{}
			c.PostProcessBuilders[name] = b
		}
		b.Name = name
	}
	for name, t := range c.Targets {
		if t == nil {
			t = &Target{}
			c.Targets[name] = t
		}
		t.Name = name
	}
	return nil
}

// ParseFile reads and parses a package's build configuration file.
func ParseFile(filename, pkg string, deps []string) (*Config, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read build configuration %s: %w", filename, err)
	}
	return Parse(bs, pkg, deps)
}

// Parse validates bs against the embedded schema, unmarshals it and
// normalizes all keys against the owning package. Unrecognized keys fail
// validation; a typo must never silently produce an unintended plan.
func Parse(bs []byte, pkg string, deps []string) (*Config, error) {
	if err := Validate(bs); err != nil {
		return nil, &ParseError{Package: pkg, Err: err}
	}

	var c Config
	if err := yaml.Unmarshal(bs, &c); err != nil {
		return nil, &ParseError{Package: pkg, Err: err}
	}

	if err := c.Normalize(pkg, deps); err != nil {
		return nil, err
	}

	return &c, nil
}

// Default synthesizes the configuration used when a package declares none: no
// builders and a single catch-all target named after the package, depending
// on the package's own dependencies.
func Default(pkg string, deps []string) *Config {
	key := Key(pkg, pkg)
	return &Config{
		Package: pkg,
		Targets: map[string]*Target{
			key: {
				Package:      pkg,
				Name:         pkg,
				Key:          key,
				Dependencies: normalizeDeps(deps),
			},
		},
	}
}

// Key builds the canonical "package:name" form.
func Key(pkg, name string) string {
	return pkg + ":" + name
}

// SplitKey is the inverse of Key. It expects a normalized key.
func SplitKey(key string) (pkg, name string) {
	pkg, name, _ = strings.Cut(key, ":")
	return pkg, name
}

// NormalizeKey canonicalizes a builder or target key declared inside pkg's
// own configuration. A bare name expands to "pkg:name", "$default" expands to
// the package's own name, and a key already containing a colon is kept as-is
// (the referenced package is validated against the graph later).
func NormalizeKey(pkg, key string) (string, error) {
	switch strings.Count(key, ":") {
	case 0:
		if key == DefaultKey || key == "" {
			return Key(pkg, pkg), nil
		}
		return Key(pkg, key), nil
	case 1:
		p, name, _ := strings.Cut(key, ":")
		if p == "" || name == "" {
			return "", &ParseError{Package: pkg, Key: key, Err: fmt.Errorf("malformed key %q", key)}
		}
		if name == DefaultKey {
			name = p
		}
		return Key(p, name), nil
	default:
		return "", &ParseError{Package: pkg, Key: key, Err: fmt.Errorf("malformed key %q", key)}
	}
}

// Normalize canonicalizes every builder and target key against the owning
// package, records package/name/key on each value, and guarantees the default
// target exists. deps are the package's direct dependency names, used when
// the default target has to be synthesized.
func (c *Config) Normalize(pkg string, deps []string) error {
	c.Package = pkg

	builders, err := normalizeBuilders(pkg, c.Builders)
	if err != nil {
		return err
	}
	c.Builders = builders

	postProcess, err := normalizeBuilders(pkg, c.PostProcessBuilders)
	if err != nil {
		return err
	}
	c.PostProcessBuilders = postProcess

	targets := make(map[string]*Target, len(c.Targets))
	for _, rawKey := range util.SortedKeys(c.Targets) {
		t := c.Targets[rawKey]
		key, err := NormalizeKey(pkg, rawKey)
		if err != nil {
			return err
		}
		if _, ok := targets[key]; ok {
			return &DuplicateKeyError{Key: key, Packages: []string{pkg, pkg}}
		}
		t.Package, t.Name = SplitKey(key)
		t.Key = key
		t.Dependencies = normalizeDeps(t.Dependencies)
		if err := t.Sources.compile(); err != nil {
			return &ParseError{Package: pkg, Key: key, Err: err}
		}
		usages, err := normalizeUsages(pkg, t.Builders)
		if err != nil {
			return err
		}
		t.Builders = usages
		targets[key] = t
	}

	defaultKey := Key(pkg, pkg)
	if len(targets) == 0 {
		targets[defaultKey] = &Target{
			Package:      pkg,
			Name:         pkg,
			Key:          defaultKey,
			Dependencies: normalizeDeps(deps),
		}
	} else if _, ok := targets[defaultKey]; !ok {
		return &ParseError{Package: pkg, Key: defaultKey, Err: fmt.Errorf("no target normalizes to the default target %q", defaultKey)}
	}
	c.Targets = targets

	return nil
}

func normalizeBuilders(pkg string, raw map[string]*Builder) (map[string]*Builder, error) {
	builders := make(map[string]*Builder, len(raw))
	for _, rawKey := range util.SortedKeys(raw) {
		b := raw[rawKey]
		key, err := NormalizeKey(pkg, rawKey)
		if err != nil {
			return nil, err
		}
		if _, ok := builders[key]; ok {
			return nil, &DuplicateKeyError{Key: key, Packages: []string{pkg, pkg}}
		}
		b.Package, b.Name = SplitKey(key)
		b.Key = key
		if b.BuildTo != "" && b.BuildTo != BuildToSource && b.BuildTo != BuildToCache {
			return nil, &ParseError{Package: pkg, Key: key, Err: fmt.Errorf("unknown build_to value %q", b.BuildTo)}
		}
		for i, after := range b.RunsAfter {
			normalized, err := NormalizeKey(pkg, after)
			if err != nil {
				return nil, err
			}
			b.RunsAfter[i] = normalized
		}
		if b.Defaults != nil && b.Defaults.GenerateFor != nil {
			if err := b.Defaults.GenerateFor.compile(); err != nil {
				return nil, &ParseError{Package: pkg, Key: key, Err: err}
			}
		}
		builders[key] = b
	}
	return builders, nil
}

func normalizeUsages(pkg string, raw map[string]TargetBuilderUsage) (map[string]TargetBuilderUsage, error) {
	if raw == nil {
		return nil, nil
	}
	usages := make(map[string]TargetBuilderUsage, len(raw))
	for _, rawKey := range util.SortedKeys(raw) {
		key, err := NormalizeKey(pkg, rawKey)
		if err != nil {
			return nil, err
		}
		u := raw[rawKey]
		if u.GenerateFor != nil {
			if err := u.GenerateFor.compile(); err != nil {
				return nil, &ParseError{Package: pkg, Key: key, Err: err}
			}
		}
		usages[key] = u
	}
	return usages, nil
}

// normalizeDeps canonicalizes target dependency references. A bare package
// name means that package's default target.
func normalizeDeps(deps []string) []string {
	out := make([]string, 0, len(deps))
	for _, dep := range deps {
		if strings.Contains(dep, ":") {
			out = append(out, dep)
			continue
		}
		out = append(out, Key(dep, dep))
	}
	return out
}

// BuilderKeys returns the package's regular builder keys in declaration-
// independent sorted order.
func (c *Config) BuilderKeys() []string {
	return util.SortedKeys(c.Builders)
}

func (c *Config) PostProcessBuilderKeys() []string {
	return util.SortedKeys(c.PostProcessBuilders)
}

func (c *Config) TargetKeys() []string {
	return util.SortedKeys(c.Targets)
}

// OrderKey and OrderAfter let the orderer consume builders without knowing
// the rest of the declaration.

func (b *Builder) OrderKey() string {
	return b.Key
}

func (b *Builder) OrderAfter() []string {
	return b.RunsAfter
}

func (b *Builder) Equal(other *Builder) bool {
	return util.FastEqual(b, other, func(b, other *Builder) bool {
		return b.Key == other.Key &&
			b.Import == other.Import &&
			util.SetEqual(b.BuilderFactories, other.BuilderFactories, func(s string) string { return s }, func(a, b string) bool { return a == b }) &&
			b.AutoApply == other.AutoApply &&
			b.BuildTo == other.BuildTo &&
			b.IsOptional == other.IsOptional &&
			util.SetEqual(b.RunsAfter, other.RunsAfter, func(s string) string { return s }, func(a, b string) bool { return a == b }) &&
			b.defaultsEqual(other)
	})
}

func (b *Builder) defaultsEqual(other *Builder) bool {
	return util.FastEqual(b.Defaults, other.Defaults, func(a, b *Defaults) bool {
		return a.GenerateFor.Equal(b.GenerateFor)
	})
}

func (t *Target) Equal(other *Target) bool {
	return util.FastEqual(t, other, func(t, other *Target) bool {
		if t.Key != other.Key ||
			!util.SetEqual(t.Dependencies, other.Dependencies, func(s string) string { return s }, func(a, b string) bool { return a == b }) ||
			!t.Sources.Equal(&other.Sources) {
			return false
		}
		if len(t.Builders) != len(other.Builders) {
			return false
		}
		for key, u := range t.Builders {
			o, ok := other.Builders[key]
			if !ok || !u.Equal(o) {
				return false
			}
		}
		return true
	})
}

func (u TargetBuilderUsage) Equal(other TargetBuilderUsage) bool {
	return util.PtrEqual(u.Enabled, other.Enabled) && u.GenerateFor.Equal(other.GenerateFor)
}

func (c *Config) Equal(other *Config) bool {
	return util.FastEqual(c, other, func(c, other *Config) bool {
		if c.Package != other.Package {
			return false
		}
		if len(c.Builders) != len(other.Builders) || len(c.PostProcessBuilders) != len(other.PostProcessBuilders) || len(c.Targets) != len(other.Targets) {
			return false
		}
		for key, b := range c.Builders {
			if !b.Equal(other.Builders[key]) {
				return false
			}
		}
		for key, b := range c.PostProcessBuilders {
			if !b.Equal(other.PostProcessBuilders[key]) {
				return false
			}
		}
		for key, t := range c.Targets {
			if !t.Equal(other.Targets[key]) {
				return false
			}
		}
		return true
	})
}
