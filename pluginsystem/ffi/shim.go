package ffi

import (
	"context"
	"fmt"

	"github.com/kunihir0/gini-sub000/internal/pluginlog"
	"github.com/kunihir0/gini-sub000/pluginsystem"
	"github.com/kunihir0/gini-sub000/pluginsystem/semver"
)

// Shim wraps a loaded VTable and implements pluginsystem.Plugin. All
// advertised metadata is cached into plain Go fields at load time, so
// subsequent Plugin interface calls never re-cross the VTable boundary
// except for the four lifecycle calls (Init, PreflightCheck,
// RegisterStages, Shutdown).
type Shim struct {
	vt   *VTable
	path string

	id                string
	name              string
	version           string
	isCore            bool
	priority          pluginsystem.Priority
	apiVersions       []semver.Range
	dependencies      []pluginsystem.Dependency
	requiredStages    []pluginsystem.StageRequirement
	conflictsWith     []string
	incompatibleWith  []pluginsystem.Dependency
}

func newShim(pluginID, path string, vt *VTable) (s *Shim, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &LoadingError{PluginID: pluginID, Path: path, Cause: fmt.Errorf("panic while caching metadata: %v", r)}
		}
	}()

	name, res := vt.Name(vt.Instance)
	if res != Ok {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: &FfiError{PluginID: pluginID, Operation: "name", Message: res.String()}}
	}
	if vt.FreeName != nil {
		defer vt.FreeName(name)
	}

	version, res := vt.Version(vt.Instance)
	if res != Ok {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: &FfiError{PluginID: pluginID, Operation: "version", Message: res.String()}}
	}
	if vt.FreeVersion != nil {
		defer vt.FreeVersion(version)
	}

	wirePriority, res := vt.Priority(vt.Instance)
	if res != Ok {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: &FfiError{PluginID: pluginID, Operation: "priority", Message: res.String()}}
	}
	bandIdx, value := wirePriority.ToPriority()

	apiStrs, res := vt.CompatibleAPIVersions(vt.Instance)
	if res != Ok {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: &FfiError{PluginID: pluginID, Operation: "compatible_api_versions", Message: res.String()}}
	}
	if vt.FreeCompatibleAPIVersions != nil {
		defer vt.FreeCompatibleAPIVersions(apiStrs)
	}
	var apiVersions []semver.Range
	for _, c := range apiStrs {
		r, parseErr := semver.ParseRange(c)
		if parseErr != nil {
			pluginlog.FFI().Warn().Str("plugin", pluginID).Str("constraint", c).Err(parseErr).Msg("skipping unparseable compatible_api_versions entry")
			continue
		}
		apiVersions = append(apiVersions, r)
	}

	wireDeps, res := vt.Dependencies(vt.Instance)
	if res != Ok {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: &FfiError{PluginID: pluginID, Operation: "dependencies", Message: res.String()}}
	}
	if vt.FreeDependencies != nil {
		defer vt.FreeDependencies(wireDeps)
	}
	dependencies := convertDependencies(pluginID, wireDeps)

	wireStages, res := vt.RequiredStages(vt.Instance)
	if res != Ok {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: &FfiError{PluginID: pluginID, Operation: "required_stages", Message: res.String()}}
	}
	if vt.FreeRequiredStages != nil {
		defer vt.FreeRequiredStages(wireStages)
	}
	var requiredStages []pluginsystem.StageRequirement
	for _, ws := range wireStages {
		requiredStages = append(requiredStages, pluginsystem.StageRequirement{
			StageID: ws.StageID, Required: ws.Required, Provided: ws.Provided,
		})
	}

	conflictsWith, res := vt.ConflictsWith(vt.Instance)
	if res != Ok {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: &FfiError{PluginID: pluginID, Operation: "conflicts_with", Message: res.String()}}
	}
	if vt.FreeConflictsWith != nil {
		defer vt.FreeConflictsWith(conflictsWith)
	}

	wireIncompat, res := vt.IncompatibleWith(vt.Instance)
	if res != Ok {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: &FfiError{PluginID: pluginID, Operation: "incompatible_with", Message: res.String()}}
	}
	if vt.FreeIncompatibleWith != nil {
		defer vt.FreeIncompatibleWith(wireIncompat)
	}
	incompatibleWith := convertDependencies(pluginID, wireIncompat)

	return &Shim{
		vt:               vt,
		path:             path,
		id:               pluginID,
		name:             name,
		version:          version,
		isCore:           vt.IsCore(vt.Instance),
		priority:         pluginsystem.Priority{Band: pluginsystem.PriorityBand(bandIdx), Value: value},
		apiVersions:      apiVersions,
		dependencies:     dependencies,
		requiredStages:   requiredStages,
		conflictsWith:    conflictsWith,
		incompatibleWith: incompatibleWith,
	}, nil
}

func convertDependencies(pluginID string, wire []WireDependency) []pluginsystem.Dependency {
	var out []pluginsystem.Dependency
	for _, w := range wire {
		if w.VersionConstraint == "" {
			out = append(out, pluginsystem.Dependency{TargetID: w.Name, Required: w.Required})
			continue
		}
		r, err := semver.ParseRange(w.VersionConstraint)
		if err != nil {
			pluginlog.FFI().Warn().Str("plugin", pluginID).Str("dependency", w.Name).Err(err).Msg("skipping unparseable dependency version constraint")
			out = append(out, pluginsystem.Dependency{TargetID: w.Name, Required: w.Required})
			continue
		}
		out = append(out, pluginsystem.Dependency{TargetID: w.Name, Range: &r, Required: w.Required})
	}
	return out
}

func (s *Shim) ID() string                                    { return s.id }
func (s *Shim) Name() string                                  { return s.name }
func (s *Shim) Version() string                               { return s.version }
func (s *Shim) IsCore() bool                                  { return s.isCore }
func (s *Shim) Priority() pluginsystem.Priority                { return s.priority }
func (s *Shim) CompatibleAPIVersions() []semver.Range          { return s.apiVersions }
func (s *Shim) Dependencies() []pluginsystem.Dependency        { return s.dependencies }
func (s *Shim) RequiredStages() []pluginsystem.StageRequirement { return s.requiredStages }
func (s *Shim) ConflictsWith() []string                        { return s.conflictsWith }
func (s *Shim) IncompatibleWith() []pluginsystem.Dependency     { return s.incompatibleWith }

// Init forwards to the VTable's Init function inside a panic boundary.
func (s *Shim) Init(ctx context.Context, app pluginsystem.HostApplication) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FfiError{PluginID: s.id, Operation: "init", Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	res := s.vt.Init(s.vt.Instance, app)
	if res != Ok {
		return &FfiError{PluginID: s.id, Operation: "init", Message: res.String()}
	}
	return nil
}

// PreflightCheck is required to be callable from an async-flavored host
// API, but the VTable's preflight function is synchronous FFI. The shim
// bridges this by running the call on its own goroutine and waiting on a
// buffered channel; ctx cancellation is honored by returning early without
// waiting for the blocking call to return — the call itself cannot be
// killed, so cancellation does not roll back in-flight FFI work.
func (s *Shim) PreflightCheck(ctx context.Context, hctx *pluginsystem.HostContext) error {
	done := make(chan error, 1)
	go func() {
		done <- s.callPreflight(hctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *Shim) callPreflight(hctx *pluginsystem.HostContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FfiError{PluginID: s.id, Operation: "preflight_check", Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	var ctxArg any
	if hctx != nil {
		ctxArg = hctx.Data
	}
	res := s.vt.PreflightCheck(s.vt.Instance, ctxArg)
	if res != Ok {
		return &FfiError{PluginID: s.id, Operation: "preflight_check", Message: res.String()}
	}
	return nil
}

// RegisterStages forwards to the VTable's register_stages function.
func (s *Shim) RegisterStages(ctx context.Context, stageRegistry pluginsystem.StageRegisterer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FfiError{PluginID: s.id, Operation: "register_stages", Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	res := s.vt.RegisterStages(s.vt.Instance, stageRegistry)
	if res != Ok {
		return &FfiError{PluginID: s.id, Operation: "register_stages", Message: res.String()}
	}
	return nil
}

// Shutdown calls the VTable's shutdown then destroy, in that order:
// instance destroy happens before the library would be released. Go's
// plugin package has no release step to order Destroy against; Destroy
// still runs so a plugin's own teardown logic executes.
func (s *Shim) Shutdown(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FfiError{PluginID: s.id, Operation: "shutdown", Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	res := s.vt.Shutdown(s.vt.Instance)
	if s.vt.Destroy != nil {
		s.vt.Destroy(s.vt.Instance)
	}
	if res != Ok {
		return &FfiError{PluginID: s.id, Operation: "shutdown", Message: res.String()}
	}
	return nil
}

var _ pluginsystem.Plugin = (*Shim)(nil)
