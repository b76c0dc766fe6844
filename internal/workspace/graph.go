package workspace

import (
	"fmt"
	"slices"
)

// MissingPackageError reports a declared dependency that does not resolve to
// a package in the workspace.
type MissingPackageError struct {
	Package    string
	Dependency string
}

func (e *MissingPackageError) Error() string {
	return fmt.Sprintf("package %q depends on %q which is not part of the workspace", e.Package, e.Dependency)
}

// Graph flattens the dependency graph reachable from root into a single
// leaf-first processing order: a package always appears after every package
// it depends on, except inside a dependency cycle, whose members form one
// contiguous block. Cycles are legal (dev dependencies routinely create
// them), so the graph is grouped into strongly connected components rather
// than rejected.
func Graph(root string, index map[string]*Node) ([]*Node, error) {
	if _, ok := index[root]; !ok {
		return nil, &MissingPackageError{Package: root, Dependency: root}
	}

	t := &tarjan{
		index:   index,
		number:  make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	if err := t.visit(root); err != nil {
		return nil, err
	}

	return t.sorted, nil
}

// tarjan computes strongly connected components seeded at the root node.
// Components are emitted leaf-first: a component is appended to sorted only
// once every component it depends on has been appended.
type tarjan struct {
	index   map[string]*Node
	number  map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []*Node
	counter int
	sorted  []*Node
}

func (t *tarjan) visit(name string) error {
	node := t.index[name]
	t.number[name] = t.counter
	t.lowlink[name] = t.counter
	t.counter++
	t.stack = append(t.stack, node)
	t.onStack[name] = true

	for _, dep := range node.Dependencies {
		if _, ok := t.index[dep]; !ok {
			return &MissingPackageError{Package: name, Dependency: dep}
		}
		if _, seen := t.number[dep]; !seen {
			if err := t.visit(dep); err != nil {
				return err
			}
			t.lowlink[name] = min(t.lowlink[name], t.lowlink[dep])
		} else if t.onStack[dep] {
			t.lowlink[name] = min(t.lowlink[name], t.number[dep])
		}
	}

	if t.lowlink[name] == t.number[name] {
		// name is the root of a component; pop its members off the stack.
		var component []*Node
		for {
			n := len(t.stack) - 1
			member := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[member.Name] = false
			component = append(component, member)
			if member.Name == name {
				break
			}
		}
		// Popping reverses discovery order within the component; restore it.
		slices.Reverse(component)
		t.sorted = append(t.sorted, component...)
	}

	return nil
}
