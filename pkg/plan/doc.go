// Package plan computes a deterministic, dependency-respecting sequence of
// builder applications for a multi-package workspace.
//
// The workspace is an fs.FS containing one package.yaml manifest per package
// and, optionally, one build.yaml per package declaring builders, post-process
// builders and targets. Planning proceeds in four stages: the package graph
// reachable from the root is flattened leaf-first (dependency cycles are
// grouped, not rejected), per-package configurations are loaded concurrently
// and merged with workspace overrides, builder definitions are totally
// ordered honoring runs_after constraints, and each definition is expanded
// into a fully resolved application.
//
// # Basic Usage
//
//	p := plan.New(os.DirFS(workspaceDir), "app")
//	result, err := p.Plan(ctx)
//	if err != nil {
//	    var errs plan.Errors
//	    if errors.As(err, &errs) {
//	        for _, e := range errs {
//	            log.Println(e)
//	        }
//	    }
//	    return err
//	}
//	bs, _ := result.YAML()
//	os.Stdout.Write(bs)
//
// # Overrides
//
// A workspace override completely replaces the named package's own
// configuration file; there is no field-level merging:
//
//	p = p.WithOverrides(map[string]*plan.Override{
//	    "lib": {
//	        Builders: map[string]*plan.Builder{
//	            "gen": {Import: "lib/gen", BuilderFactories: []string{"newGen"}},
//	        },
//	    },
//	})
//
// # Determinism
//
// Planning the same workspace twice yields byte-identical serialized plans.
// Configuration reads fan out concurrently, but results are recombined in
// package graph order before anything downstream observes them.
//
// # Failure Surface
//
// Plan returns either a complete plan or an Errors aggregate; there is no
// best-effort partial plan. Parse errors, duplicate keys, unknown auto_apply
// values and builder ordering cycles all abort planning; unresolved builder
// imports and factories are collected across all builders first so one
// misconfigured builder does not hide the rest.
package plan
