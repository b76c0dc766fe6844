package workspace_test

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/chalin/build/internal/logging"
	"github.com/chalin/build/internal/workspace"
)

func TestGraphOrder(t *testing.T) {

	cases := []struct {
		note     string
		root     string
		packages map[string][]string // name -> dependencies
		exp      []string
		expError string
	}{
		{
			note: "single package",
			root: "a",
			packages: map[string][]string{
				"a": nil,
			},
			exp: []string{"a"},
		},
		{
			note: "chain is leaf first",
			root: "c",
			packages: map[string][]string{
				"a": nil,
				"b": {"a"},
				"c": {"a", "b"},
			},
			exp: []string{"a", "b", "c"},
		},
		{
			note: "diamond",
			root: "d",
			packages: map[string][]string{
				"a": nil,
				"b": {"a"},
				"c": {"a"},
				"d": {"b", "c"},
			},
			exp: []string{"a", "b", "c", "d"},
		},
		{
			note: "unreachable packages are excluded",
			root: "b",
			packages: map[string][]string{
				"a": nil,
				"b": {"a"},
				"z": {"a"},
			},
			exp: []string{"a", "b"},
		},
		{
			note: "cycle forms a contiguous block",
			root: "r",
			packages: map[string][]string{
				"x": {"y"},
				"y": {"x"},
				"r": {"x"},
			},
			exp: []string{"x", "y", "r"},
		},
		{
			note: "missing dependency",
			root: "b",
			packages: map[string][]string{
				"b": {"nope"},
			},
			expError: `package "b" depends on "nope"`,
		},
		{
			note:     "missing root",
			root:     "ghost",
			packages: map[string][]string{},
			expError: `package "ghost"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			index := make(map[string]*workspace.Node, len(tc.packages))
			for name, deps := range tc.packages {
				index[name] = &workspace.Node{Name: name, Path: name, Dependencies: deps}
			}

			nodes, err := workspace.Graph(tc.root, index)
			if tc.expError != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tc.expError)
				}
				var missing *workspace.MissingPackageError
				if !errors.As(err, &missing) {
					t.Fatalf("expected MissingPackageError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			got := make([]string, len(nodes))
			for i, node := range nodes {
				got[i] = node.Name
			}
			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Fatalf("unexpected order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGraphLeafFirstProperty(t *testing.T) {
	// Every acyclic package must appear strictly after all of its
	// dependencies.
	index := map[string]*workspace.Node{
		"a": {Name: "a"},
		"b": {Name: "b", Dependencies: []string{"a"}},
		"c": {Name: "c", Dependencies: []string{"a", "b"}},
		"d": {Name: "d", Dependencies: []string{"c", "a"}},
		"e": {Name: "e", Dependencies: []string{"d", "b"}},
	}

	nodes, err := workspace.Graph("e", index)
	if err != nil {
		t.Fatal(err)
	}

	position := make(map[string]int, len(nodes))
	for i, node := range nodes {
		position[node.Name] = i
	}

	for _, node := range nodes {
		for _, dep := range node.Dependencies {
			if position[dep] >= position[node.Name] {
				t.Fatalf("package %q at %d does not follow its dependency %q at %d", node.Name, position[node.Name], dep, position[dep])
			}
		}
	}
}

func TestScan(t *testing.T) {
	fsys := fstest.MapFS{
		"a/package.yaml": &fstest.MapFile{Data: []byte("name: a\n")},
		"b/package.yaml": &fstest.MapFile{Data: []byte("name: b\ndependencies: [a]\ndev_dependencies: [a, c]\n")},
		"c/package.yaml": &fstest.MapFile{Data: []byte("name: c\ndependencies: [a]\n")},
		"c/README.md":    &fstest.MapFile{Data: []byte("not a manifest")},
	}

	index, err := workspace.Scan(fsys, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}

	if len(index) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(index))
	}
	if index["b"].Path != "b" {
		t.Fatalf("expected path b, got %q", index["b"].Path)
	}
	// Dev dependencies merge into the edge list without duplicates.
	if diff := cmp.Diff([]string{"a", "c"}, index["b"].Dependencies); diff != "" {
		t.Fatalf("unexpected dependencies (-want +got):\n%s", diff)
	}
}

func TestScanRejectsUnknownManifestKeys(t *testing.T) {
	fsys := fstest.MapFS{
		"a/package.yaml": &fstest.MapFile{Data: []byte("name: a\ndependencys: [b]\n")},
	}

	if _, err := workspace.Scan(fsys, logging.Discard()); err == nil {
		t.Fatal("expected misspelled manifest key to be rejected")
	}
}

func TestScanRejectsDuplicatePackageNames(t *testing.T) {
	fsys := fstest.MapFS{
		"one/package.yaml": &fstest.MapFile{Data: []byte("name: a\n")},
		"two/package.yaml": &fstest.MapFile{Data: []byte("name: a\n")},
	}

	if _, err := workspace.Scan(fsys, logging.Discard()); err == nil {
		t.Fatal("expected duplicate package name to be rejected")
	}
}
