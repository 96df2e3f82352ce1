// Package resolver runs the dependency resolution pass over a loaded
// manifest set before any shared library is opened: version compatibility,
// missing/cyclic dependency detection, and a topologically sound load
// order. It is a standalone pre-load pass, kept separate from the runtime
// plugin registry that tracks enabled/initialized state once plugins are
// loaded.
package resolver

import (
	"fmt"
	"sort"

	"github.com/kunihir0/gini-sub000/pluginsystem"
	"github.com/kunihir0/gini-sub000/pluginsystem/manifest"
	"github.com/kunihir0/gini-sub000/pluginsystem/semver"
)

// Result is the outcome of a successful resolve. ManifestIDs lists every
// manifest id in a load order where each manifest comes after its required
// dependencies; ids, and each manifest's dependencies, are walked in
// ascending id order.
type Result struct {
	ManifestIDs []string
}

type color int

const (
	white color = iota
	gray
	black
)

// Resolve runs cycle detection (required edges only) and per-manifest
// version validation over the given manifest set. It does not mutate or
// load anything.
func Resolve(manifests map[string]*manifest.Manifest) (*Result, error) {
	ids := make([]string, 0, len(manifests))
	for id := range manifests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	colors := make(map[string]color, len(manifests))
	var path []string
	order := make([]string, 0, len(manifests))

	var visit func(id string) error
	visit = func(id string) error {
		switch colors[id] {
		case black:
			return nil
		case gray:
			cyclePath := append(append([]string(nil), path...), id)
			return &pluginsystem.CyclicDependencyError{Path: cyclePath}
		}
		colors[id] = gray
		path = append(path, id)

		m := manifests[id]
		if m != nil {
			deps := append([]manifest.RawDependency(nil), m.Dependencies...)
			sort.Slice(deps, func(i, j int) bool { return deps[i].ID < deps[j].ID })
			for _, dep := range deps {
				if !dep.Required {
					continue
				}
				if _, ok := manifests[dep.ID]; !ok {
					continue // missing dependency is a validation-pass error, not a cycle
				}
				if err := visit(dep.ID); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		colors[id] = black
		order = append(order, id)
		return nil
	}

	for _, id := range ids {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range ids {
		if err := validateOne(manifests, id); err != nil {
			return nil, err
		}
	}

	return &Result{ManifestIDs: order}, nil
}

func validateOne(manifests map[string]*manifest.Manifest, id string) error {
	m := manifests[id]
	if _, err := semver.Parse(m.Version); err != nil {
		return fmt.Errorf("manifest %s: %w", id, err)
	}
	for _, dep := range m.Dependencies {
		target, ok := manifests[dep.ID]
		if dep.Required && !ok {
			return &pluginsystem.MissingPluginError{TargetID: dep.ID}
		}
		if !ok || dep.VersionRange == "" {
			continue
		}
		rng, err := semver.ParseRange(dep.VersionRange)
		if err != nil {
			return fmt.Errorf("manifest %s: dependency %s: %w", id, dep.ID, err)
		}
		actual, err := semver.Parse(target.Version)
		if err != nil {
			return fmt.Errorf("manifest %s: dependency %s: %w", id, dep.ID, err)
		}
		if !rng.Admits(actual) {
			return &pluginsystem.IncompatibleVersionError{
				Plugin: id, Dep: dep.ID, Required: dep.VersionRange, Actual: target.Version,
			}
		}
	}
	return nil
}
