package pluginsystem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunihir0/gini-sub000/pluginsystem"
)

func TestConflictManagerResolveAndDisableList(t *testing.T) {
	m := pluginsystem.NewConflictManager()
	idx := m.AddConflict(pluginsystem.NewConflict("a", "b", pluginsystem.NewConflictType(pluginsystem.MutuallyExclusive), "a vs b"))

	assert.True(t, m.HasConflictBetween("a", "b"))
	assert.True(t, m.HasConflictBetween("b", "a"))
	assert.False(t, m.AllCriticalConflictsResolved())

	require.NoError(t, m.ResolveConflict(idx, pluginsystem.NewResolutionStrategy(pluginsystem.DisableSecond)))
	assert.True(t, m.AllCriticalConflictsResolved())
	assert.Equal(t, []string{"b"}, m.PluginsToDisable())
}

func TestConflictTypeCriticality(t *testing.T) {
	assert.True(t, pluginsystem.NewConflictType(pluginsystem.MutuallyExclusive).Critical())
	assert.True(t, pluginsystem.NewConflictType(pluginsystem.ExplicitlyIncompatible).Critical())
	assert.False(t, pluginsystem.NewConflictType(pluginsystem.PartialOverlap).Critical())
	assert.False(t, pluginsystem.CustomConflict("weird").Critical())
}

func TestDetectConflictsMutuallyExclusive(t *testing.T) {
	reg := newTestRegistry()
	a := newTestPlugin("a", mustPriority("core:60"), nil, nil)
	b := newTestPlugin("b", mustPriority("core:60"), nil, nil)
	a.conflicts = []string{"b"}
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))

	reg.Conflicts().DetectConflicts(reg)
	assert.True(t, reg.Conflicts().HasConflictBetween("a", "b"))
	critical := reg.Conflicts().CriticalUnresolvedConflicts()
	require.Len(t, critical, 1)
	assert.Equal(t, "MutuallyExclusive", critical[0].Type.String())
}
