package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunihir0/gini-sub000/pluginsystem"
	"github.com/kunihir0/gini-sub000/pluginsystem/manifest"
)

func m(id, version string, deps ...manifest.RawDependency) *manifest.Manifest {
	return &manifest.Manifest{ID: id, Name: id, Version: version, Dependencies: deps}
}

func TestResolveLinearOK(t *testing.T) {
	manifests := map[string]*manifest.Manifest{
		"a": m("a", "1.0.0"),
		"b": m("b", "1.0.0", manifest.RawDependency{ID: "a", Required: true}),
	}
	_, err := Resolve(manifests)
	require.NoError(t, err)
}

func TestResolveDetectsCycle(t *testing.T) {
	manifests := map[string]*manifest.Manifest{
		"a": m("a", "1.0.0", manifest.RawDependency{ID: "b", Required: true}),
		"b": m("b", "1.0.0", manifest.RawDependency{ID: "c", Required: true}),
		"c": m("c", "1.0.0", manifest.RawDependency{ID: "a", Required: true}),
	}
	_, err := Resolve(manifests)
	require.Error(t, err)
	var cycle *pluginsystem.CyclicDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, cycle.Path, "a")
	assert.Contains(t, cycle.Path, "b")
	assert.Contains(t, cycle.Path, "c")
}

func TestResolveMissingDependency(t *testing.T) {
	manifests := map[string]*manifest.Manifest{
		"a": m("a", "1.0.0", manifest.RawDependency{ID: "ghost", Required: true}),
	}
	_, err := Resolve(manifests)
	require.Error(t, err)
	var missing *pluginsystem.MissingPluginError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ghost", missing.TargetID)
}

func TestResolveVersionMismatch(t *testing.T) {
	manifests := map[string]*manifest.Manifest{
		"a": m("a", "1.0.0"),
		"b": m("b", "1.0.0", manifest.RawDependency{ID: "a", Required: true, VersionRange: "^2.0"}),
	}
	_, err := Resolve(manifests)
	require.Error(t, err)
	var incompat *pluginsystem.IncompatibleVersionError
	require.ErrorAs(t, err, &incompat)
	assert.Equal(t, "b", incompat.Plugin)
	assert.Equal(t, "a", incompat.Dep)
}

func TestResolveOptionalDependencyNotRequiredForCycleOrMissing(t *testing.T) {
	manifests := map[string]*manifest.Manifest{
		"a": m("a", "1.0.0", manifest.RawDependency{ID: "ghost", Required: false}),
	}
	_, err := Resolve(manifests)
	require.NoError(t, err)
}
