package plan_test

import (
	"bytes"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/chalin/build/pkg/plan"
)

func workspaceFS() fstest.MapFS {
	return fstest.MapFS{
		"a/package.yaml": &fstest.MapFile{Data: []byte("name: a\n")},
		"b/package.yaml": &fstest.MapFile{Data: []byte("name: b\ndependencies: [a]\n")},
		"c/package.yaml": &fstest.MapFile{Data: []byte("name: c\ndependencies: [a, b]\n")},
		"b/build.yaml": &fstest.MapFile{Data: []byte(`
builders:
  gen:
    import: b/gen
    builder_factories: [newGen]
    auto_apply: dependents
    build_to: cache
post_process_builders:
  cleanup:
    import: b/cleanup
    builder_factories: [newCleanup]
    auto_apply: all_packages
`)},
	}
}

func TestPlan(t *testing.T) {
	result, err := plan.New(workspaceFS(), "c").Plan(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, result.Packages); diff != "" {
		t.Fatalf("unexpected package order (-want +got):\n%s", diff)
	}

	if len(result.Builders) != 1 {
		t.Fatalf("expected 1 builder application, got %d", len(result.Builders))
	}
	app := result.Builders[0]
	if app.Key != "b:gen" {
		t.Fatalf("expected b:gen, got %q", app.Key)
	}
	// dependents of b is exactly {c}: a does not depend on b, and b never
	// applies to itself.
	if diff := cmp.Diff([]string{"c"}, app.AppliesTo); diff != "" {
		t.Fatalf("unexpected apply scope (-want +got):\n%s", diff)
	}
	if !app.HideOutput {
		t.Fatal("expected cache output to be hidden")
	}

	// Post-process applications are a separate, later phase.
	if len(result.PostProcess) != 1 {
		t.Fatalf("expected 1 post-process application, got %d", len(result.PostProcess))
	}
	if result.PostProcess[0].Key != "b:cleanup" {
		t.Fatalf("expected b:cleanup, got %q", result.PostProcess[0].Key)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, result.PostProcess[0].AppliesTo); diff != "" {
		t.Fatalf("unexpected post-process scope (-want +got):\n%s", diff)
	}
}

func TestPlanDeterminism(t *testing.T) {
	var first []byte
	for i := range 5 {
		result, err := plan.New(workspaceFS(), "c").Plan(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		bs, err := result.YAML()
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			first = bs
			continue
		}
		if !bytes.Equal(first, bs) {
			t.Fatalf("plan output changed between runs:\n%s\n---\n%s", first, bs)
		}
	}
}

func TestPlanOverride(t *testing.T) {
	override := &plan.Override{
		Builders: map[string]*plan.Builder{
			"replacement": {Import: "b/replacement", BuilderFactories: []string{"newReplacement"}},
		},
	}

	result, err := plan.New(workspaceFS(), "c").
		WithOverrides(map[string]*plan.Override{"b": override}).
		Plan(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Builders) != 1 || result.Builders[0].Key != "b:replacement" {
		t.Fatalf("expected only the override builder, got %+v", result.Builders)
	}
	// b's own post_process_builders section is gone too: no field-level merge.
	if len(result.PostProcess) != 0 {
		t.Fatalf("expected no post-process applications, got %+v", result.PostProcess)
	}
}

func TestPlanRunsAfterOrdering(t *testing.T) {
	fsys := workspaceFS()
	fsys["a/build.yaml"] = &fstest.MapFile{Data: []byte(`
builders:
  gen:
    import: a/gen
    builder_factories: [newGen]
    runs_after: ["b:gen"]
`)}

	result, err := plan.New(fsys, "c").Plan(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	got := make([]string, len(result.Builders))
	for i, app := range result.Builders {
		got[i] = app.Key
	}
	// a:gen would come first by package order, but it runs after b:gen.
	if diff := cmp.Diff([]string{"b:gen", "a:gen"}, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestPlanErrors(t *testing.T) {

	cases := []struct {
		note    string
		mutate  func(fstest.MapFS)
		expText string
	}{
		{
			note: "unknown auto_apply",
			mutate: func(fsys fstest.MapFS) {
				fsys["b/build.yaml"] = &fstest.MapFile{Data: []byte(`
builders:
  gen:
    import: b/gen
    builder_factories: [newGen]
    auto_apply: sometimes
`)}
			},
			expText: "unknown auto_apply",
		},
		{
			note: "builder cycle",
			mutate: func(fsys fstest.MapFS) {
				fsys["a/build.yaml"] = &fstest.MapFile{Data: []byte(`
builders:
  one:
    import: a/gen
    builder_factories: [f]
    runs_after: [two]
  two:
    import: a/gen
    builder_factories: [g]
    runs_after: [one]
`)}
			},
			expText: "cyclic runs_after",
		},
		{
			note: "unparseable config",
			mutate: func(fsys fstest.MapFS) {
				fsys["c/build.yaml"] = &fstest.MapFile{Data: []byte("surprise: true\n")}
			},
			expText: "invalid build configuration",
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			fsys := workspaceFS()
			tc.mutate(fsys)

			_, err := plan.New(fsys, "c").Plan(t.Context())
			if err == nil {
				t.Fatal("expected planning to fail")
			}

			var errs plan.Errors
			if !errors.As(err, &errs) {
				t.Fatalf("expected plan.Errors, got %T: %v", err, err)
			}
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			found := false
			for _, e := range errs {
				if e != nil && containsText(e.Error(), tc.expText) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected an error containing %q, got: %v", tc.expText, err)
			}
		})
	}
}

func containsText(s, sub string) bool {
	return bytes.Contains([]byte(s), []byte(sub))
}

func TestPlanCycleDoesNotFailPlanning(t *testing.T) {
	// Package-level cycles flatten into a contiguous block; only builder-level
	// runs_after cycles are fatal.
	fsys := fstest.MapFS{
		"x/package.yaml": &fstest.MapFile{Data: []byte("name: x\ndependencies: [y]\n")},
		"y/package.yaml": &fstest.MapFile{Data: []byte("name: y\ndev_dependencies: [x]\n")},
	}

	result, err := plan.New(fsys, "x").Plan(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Packages) != 2 {
		t.Fatalf("expected both cycle members, got %v", result.Packages)
	}
}
