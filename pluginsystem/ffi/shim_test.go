package ffi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunihir0/gini-sub000/pluginsystem"
)

func fakeVTable() *VTable {
	return &VTable{
		Instance: 0,
		Destroy:  func(Instance) {},
		Name:     func(Instance) (string, FfiResult) { return "demo", Ok },
		Version:  func(Instance) (string, FfiResult) { return "1.0.0", Ok },
		IsCore:   func(Instance) bool { return false },
		Priority: func(Instance) (WirePriority, FfiResult) { return WirePriority{Category: 2, Value: 60}, Ok },
		CompatibleAPIVersions: func(Instance) ([]string, FfiResult) {
			return []string{"^1.0.0"}, Ok
		},
		Dependencies: func(Instance) ([]WireDependency, FfiResult) {
			return []WireDependency{{Name: "base", Required: true}}, Ok
		},
		RequiredStages: func(Instance) ([]WireStageRequirement, FfiResult) {
			return nil, Ok
		},
		ConflictsWith: func(Instance) ([]string, FfiResult) { return nil, Ok },
		IncompatibleWith: func(Instance) ([]WireDependency, FfiResult) {
			return nil, Ok
		},
		Init:           func(Instance, any) FfiResult { return Ok },
		PreflightCheck: func(Instance, any) FfiResult { return Ok },
		RegisterStages: func(Instance, any) FfiResult { return Ok },
		Shutdown:       func(Instance) FfiResult { return Ok },
	}
}

func TestShimCachesMetadataAtLoadTime(t *testing.T) {
	s, err := newShim("demo", "/fake/path", fakeVTable())
	require.NoError(t, err)
	assert.Equal(t, "demo", s.Name())
	assert.Equal(t, "1.0.0", s.Version())
	assert.Equal(t, pluginsystem.BandCore, s.Priority().Band)
	assert.Equal(t, uint8(60), s.Priority().Value)
	require.Len(t, s.Dependencies(), 1)
	assert.Equal(t, "base", s.Dependencies()[0].TargetID)
	require.Len(t, s.CompatibleAPIVersions(), 1)
}

func TestShimLifecycleForwarding(t *testing.T) {
	s, err := newShim("demo", "/fake/path", fakeVTable())
	require.NoError(t, err)
	ctx := context.Background()
	assert.NoError(t, s.Init(ctx, nil))
	assert.NoError(t, s.PreflightCheck(ctx, nil))
	assert.NoError(t, s.RegisterStages(ctx, nil))
	assert.NoError(t, s.Shutdown(ctx))
}

func TestShimPanicIsolation(t *testing.T) {
	vt := fakeVTable()
	vt.Init = func(Instance, any) FfiResult { panic("boom") }
	s, err := newShim("demo", "/fake/path", vt)
	require.NoError(t, err)

	err = s.Init(context.Background(), nil)
	require.Error(t, err)
	var ffiErr *FfiError
	require.ErrorAs(t, err, &ffiErr)
	assert.Equal(t, "init", ffiErr.Operation)
}

func TestShimNonOkResultBecomesFfiError(t *testing.T) {
	vt := fakeVTable()
	vt.Shutdown = func(Instance) FfiResult { return Err }
	s, err := newShim("demo", "/fake/path", vt)
	require.NoError(t, err)

	err = s.Shutdown(context.Background())
	require.Error(t, err)
	var ffiErr *FfiError
	require.ErrorAs(t, err, &ffiErr)
	assert.Equal(t, "shutdown", ffiErr.Operation)
}

func TestWirePriorityClamps(t *testing.T) {
	band, value := WirePriority{Category: 0, Value: 250}.ToPriority()
	assert.Equal(t, 0, band)
	assert.Equal(t, uint8(10), value)

	band, value = WirePriority{Category: 5, Value: 0}.ToPriority()
	assert.Equal(t, 5, band)
	assert.Equal(t, uint8(201), value)
}
