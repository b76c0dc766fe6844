// Package order computes the total application order over builder
// definitions.
package order

import (
	"fmt"
	"slices"
	"strings"
)

// Orderable is the slice of a builder definition the orderer needs: its
// canonical key and the keys of the builders it must run after.
type Orderable interface {
	OrderKey() string
	OrderAfter() []string
}

// CycleError reports runs_after edges that form a cycle among builders. A
// builder cycle is a hard configuration error; it is never broken silently.
type CycleError struct {
	Keys []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic runs_after ordering among builders: %s", strings.Join(e.Keys, " -> "))
}

// UnknownBuilderError reports a runs_after reference to a builder that is
// not declared anywhere in the workspace.
type UnknownBuilderError struct {
	Key       string
	RunsAfter string
}

func (e *UnknownBuilderError) Error() string {
	return fmt.Sprintf("builder %q runs after %q which is not declared", e.Key, e.RunsAfter)
}

// Sort totally orders defs so that every runs_after dependency precedes its
// dependent. The sort is stable: defs arrive in package graph order and stay
// in that order except where an edge forces a dependency earlier. Regular
// and post-process builders are sorted in separate calls; their namespaces
// never mix.
func Sort[T Orderable](defs []T) ([]T, error) {
	byKey := make(map[string]int, len(defs))
	for i, def := range defs {
		byKey[def.OrderKey()] = i
	}

	const (
		unvisited = iota
		inProgress
		done
	)

	state := make([]int, len(defs))
	sorted := make([]T, 0, len(defs))
	var trail []string

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case inProgress:
			return cycleError(trail, defs[i].OrderKey())
		}
		state[i] = inProgress
		trail = append(trail, defs[i].OrderKey())

		for _, after := range defs[i].OrderAfter() {
			j, ok := byKey[after]
			if !ok {
				return &UnknownBuilderError{Key: defs[i].OrderKey(), RunsAfter: after}
			}
			if err := visit(j); err != nil {
				return err
			}
		}

		trail = trail[:len(trail)-1]
		state[i] = done
		sorted = append(sorted, defs[i])
		return nil
	}

	for i := range defs {
		if err := visit(i); err != nil {
			return nil, err
		}
	}

	return sorted, nil
}

// cycleError extracts the cycle members from the visit trail, rotated so the
// smallest key comes first to keep the error message deterministic.
func cycleError(trail []string, repeated string) error {
	start := slices.Index(trail, repeated)
	cycle := slices.Clone(trail[start:])

	smallest := 0
	for i, key := range cycle {
		if key < cycle[smallest] {
			smallest = i
		}
	}
	rotated := append(slices.Clone(cycle[smallest:]), cycle[:smallest]...)

	return &CycleError{Keys: rotated}
}
