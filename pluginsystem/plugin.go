package pluginsystem

import (
	"context"

	"github.com/kunihir0/gini-sub000/pluginsystem/semver"
)

// Plugin is the capability set every loaded plugin presents to the host,
// whether implemented natively in Go or shimmed over an FFI VTable (see
// package ffi). Implementations are held by the registry as plain
// interface values; Go's garbage collector removes the need for any
// explicit reference counting.
type Plugin interface {
	// Identify
	ID() string
	Name() string
	Version() string
	IsCore() bool
	Priority() Priority

	// Advertise
	CompatibleAPIVersions() []semver.Range
	Dependencies() []Dependency
	RequiredStages() []StageRequirement
	ConflictsWith() []string
	IncompatibleWith() []Dependency

	// Lifecycle
	Init(ctx context.Context, app HostApplication) error
	PreflightCheck(ctx context.Context, hctx *HostContext) error
	RegisterStages(ctx context.Context, stageRegistry StageRegisterer) error
	Shutdown(ctx context.Context) error
}

// StageRequirement names a stage the plugin needs present (or provides) in
// the host's stage registry.
type StageRequirement struct {
	StageID  string
	Required bool
	Provided bool
}

// HostApplication is the opaque application root passed to Init. The core
// never inspects it; it is defined by whatever embeds this module, typically
// the host process's own bootstrap/kernel object.
type HostApplication interface{}

// HostContext is the context object passed to PreflightCheck. It is
// distinct from stagemanager.Context: PreflightCheck runs per-plugin,
// outside of any one stage's shared_data map. Data commonly holds a
// *stagemanager.Context when the host runs preflight inside a pipeline
// stage; this type stays free of that import so pluginsystem never depends
// on stagemanager.
type HostContext struct {
	Data interface{}
}

// StageRegisterer is the minimal surface RegisterStages needs from the
// stage engine. stagemanager.SharedRegistry implements it by type-asserting
// stage into a stagemanager.Stage; pluginsystem never imports stagemanager
// directly, avoiding an import cycle with stagemanager/corestages (which
// imports pluginsystem for the registry it drives).
type StageRegisterer interface {
	RegisterStage(id string, stage any) error
}

// BasePlugin provides no-op defaults for every Plugin method so a concrete
// plugin type can embed it and override only what it needs.
type BasePlugin struct {
	PluginID      string
	PluginName    string
	PluginVersion string
	Core          bool
	Pri           Priority
}

func (b *BasePlugin) ID() string      { return b.PluginID }
func (b *BasePlugin) Name() string    { return b.PluginName }
func (b *BasePlugin) Version() string { return b.PluginVersion }
func (b *BasePlugin) IsCore() bool    { return b.Core }
func (b *BasePlugin) Priority() Priority {
	return b.Pri
}
func (b *BasePlugin) CompatibleAPIVersions() []semver.Range { return nil }
func (b *BasePlugin) Dependencies() []Dependency            { return nil }
func (b *BasePlugin) RequiredStages() []StageRequirement    { return nil }
func (b *BasePlugin) ConflictsWith() []string                { return nil }
func (b *BasePlugin) IncompatibleWith() []Dependency         { return nil }

func (b *BasePlugin) Init(ctx context.Context, app HostApplication) error { return nil }
func (b *BasePlugin) PreflightCheck(ctx context.Context, hctx *HostContext) error {
	return nil
}
func (b *BasePlugin) RegisterStages(ctx context.Context, stageRegistry StageRegisterer) error {
	return nil
}
func (b *BasePlugin) Shutdown(ctx context.Context) error { return nil }
