package pluginsystem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kunihir0/gini-sub000/internal/pluginlog"
	"github.com/kunihir0/gini-sub000/pluginsystem/semver"
)

// Registry holds every registered plugin and tracks enabled/initialized
// state. It is the central state machine governing plugin lifecycle,
// built around a plain mutex rather than an async lock since nothing here
// needs to yield to a scheduler while holding it.
//
// Invariants maintained by every exported method:
//
//	I1: initialized ⊆ enabled ⊆ plugins
//	I2: for every initialized p, every required dependency d of p has d.Target ∈ initialized
//	I3: no plugin is disabled while initialized
//	I4: a newly registered plugin is enabled and not initialized
//	I5: api_version satisfies at least one of the plugin's CompatibleAPIVersions
type Registry struct {
	mu          sync.Mutex
	apiVersion  semver.Version
	plugins     map[string]Plugin
	enabled     map[string]struct{}
	initialized map[string]struct{}
	// stageOwners maps plugin id -> stage ids it registered, for
	// shutdown-time cleanup.
	stageOwners map[string][]string
	unregister  func(stageID string) error
	conflicts   *ConflictManager
}

// NewRegistry constructs an empty registry bound to the host's API version.
// unregisterStage is invoked during shutdown to drop stages a plugin owned;
// pass nil if the host has no stage registry wired yet.
func NewRegistry(apiVersion semver.Version, unregisterStage func(stageID string) error) *Registry {
	if unregisterStage == nil {
		unregisterStage = func(string) error { return nil }
	}
	return &Registry{
		apiVersion:  apiVersion,
		plugins:     make(map[string]Plugin),
		enabled:     make(map[string]struct{}),
		initialized: make(map[string]struct{}),
		stageOwners: make(map[string][]string),
		unregister:  unregisterStage,
		conflicts:   NewConflictManager(),
	}
}

// Conflicts returns the registry's conflict manager.
func (r *Registry) Conflicts() *ConflictManager { return r.conflicts }

// APIVersion returns the host's ABI version.
func (r *Registry) APIVersion() semver.Version { return r.apiVersion }

// Register accepts a fully constructed plugin handle. On success the
// plugin is enabled and not initialized (I4).
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if _, exists := r.plugins[id]; exists {
		return &AlreadyRegisteredError{PluginID: id}
	}
	if !apiAdmitted(p.CompatibleAPIVersions(), r.apiVersion) {
		return &ApiIncompatibleError{PluginID: id, HostAPI: r.apiVersion.String()}
	}
	r.plugins[id] = p
	r.enabled[id] = struct{}{}
	pluginlog.Registry().Info().Str("plugin", id).Msg("plugin registered")
	return nil
}

func apiAdmitted(ranges []semver.Range, v semver.Version) bool {
	for _, rng := range ranges {
		if rng.Admits(v) {
			return true
		}
	}
	return false
}

// Unregister removes a plugin entirely. Callers are responsible for
// shutting it down first if initialized.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[id]; !ok {
		return &NotFoundError{PluginID: id}
	}
	delete(r.plugins, id)
	delete(r.enabled, id)
	delete(r.initialized, id)
	delete(r.stageOwners, id)
	return nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.plugins[id]
	return ok
}

// Get returns the plugin registered under id.
func (r *Registry) Get(id string) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[id]
	return p, ok
}

// PluginIDs returns every registered plugin id.
func (r *Registry) PluginIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EnabledIDs returns every currently enabled plugin id.
func (r *Registry) EnabledIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.enabled))
	for id := range r.enabled {
		ids = append(ids, id)
	}
	return ids
}

// PluginCount returns the number of registered plugins.
func (r *Registry) PluginCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.plugins)
}

// InitializedCount returns the number of currently initialized plugins.
func (r *Registry) InitializedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.initialized)
}

// IsEnabled reports whether id is currently enabled.
func (r *Registry) IsEnabled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.enabled[id]
	return ok
}

// IsInitialized reports whether id is currently initialized.
func (r *Registry) IsInitialized(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.initialized[id]
	return ok
}

// Enable marks id enabled. Errors if id is not registered.
func (r *Registry) Enable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[id]; !ok {
		return &NotFoundError{PluginID: id}
	}
	r.enabled[id] = struct{}{}
	return nil
}

// Disable marks id disabled. Disabling a non-existent id is a logged no-op,
// deliberately asymmetric with Enable; disabling an already-disabled id is
// a silent no-op. Refuses with
// DisableWhileInitializedError if id is still initialized (I3); disabling
// never calls Shutdown implicitly.
func (r *Registry) Disable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[id]; !ok {
		pluginlog.Registry().Warn().Str("plugin", id).Msg("disable: plugin does not exist, ignoring")
		return nil
	}
	if _, ok := r.initialized[id]; ok {
		return &DisableWhileInitializedError{PluginID: id}
	}
	delete(r.enabled, id)
	for _, stageID := range r.stageOwners[id] {
		_ = r.unregister(stageID)
	}
	delete(r.stageOwners, id)
	return nil
}

// CheckDependencies validates, over enabled plugins only, that every
// required dependency is itself enabled and version-satisfied.
func (r *Registry) CheckDependencies() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.enabled {
		p := r.plugins[id]
		if err := r.checkDepsLocked(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) checkDepsLocked(p Plugin) error {
	for _, dep := range p.Dependencies() {
		target, ok := r.plugins[dep.TargetID]
		_, targetEnabled := r.enabled[dep.TargetID]
		if dep.Required && (!ok || !targetEnabled) {
			return &MissingPluginError{TargetID: dep.TargetID}
		}
		if !ok || dep.Range == nil {
			continue
		}
		ok, err := dep.IsCompatibleWith(target.Version())
		if err != nil {
			return &VersionParseErrorWrap{PluginID: p.ID(), Source: err}
		}
		if !ok {
			return &IncompatibleVersionError{
				Plugin: p.ID(), Dep: dep.TargetID,
				Required: dep.Range.String(), Actual: target.Version(),
			}
		}
	}
	return nil
}

// InitializeAll computes the enabled set, sorts it by (priority ascending,
// id ascending) for a deterministic tie-break, and initializes each that
// isn't already initialized, recursing into required dependencies first.
func (r *Registry) InitializeAll(ctx context.Context, app HostApplication, stageRegistry StageRegisterer) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.enabled))
	for id := range r.enabled {
		ids = append(ids, id)
	}
	plugins := make(map[string]Plugin, len(r.plugins))
	for id, p := range r.plugins {
		plugins[id] = p
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		pi, pj := plugins[ids[i]].Priority(), plugins[ids[j]].Priority()
		if c := pi.Compare(pj); c != 0 {
			return c < 0
		}
		return ids[i] < ids[j]
	})

	stack := map[string]struct{}{}
	for _, id := range ids {
		if err := r.initializeOne(ctx, id, app, stageRegistry, stack); err != nil {
			return err
		}
	}
	return nil
}

// initializeOne is the recursive core of plugin initialization, carrying a
// mutable "currently initializing" stack shared across the whole
// InitializeAll walk so a required-dependency cycle is caught even when it
// spans multiple top-level entries.
func (r *Registry) initializeOne(ctx context.Context, id string, app HostApplication, stageRegistry StageRegisterer, stack map[string]struct{}) error {
	r.mu.Lock()
	_, enabled := r.enabled[id]
	_, already := r.initialized[id]
	p, exists := r.plugins[id]
	r.mu.Unlock()

	if !enabled {
		pluginlog.Registry().Debug().Str("plugin", id).Msg("skip: not enabled")
		return nil
	}
	if already {
		return nil
	}
	if !exists {
		return &NotFoundError{PluginID: id}
	}
	if _, onStack := stack[id]; onStack {
		return &CyclicDependencyError{Path: append(stackPath(stack), id)}
	}
	stack[id] = struct{}{}
	defer delete(stack, id)

	for _, dep := range p.Dependencies() {
		r.mu.Lock()
		target, targetExists := r.plugins[dep.TargetID]
		_, targetEnabled := r.enabled[dep.TargetID]
		_, targetInitialized := r.initialized[dep.TargetID]
		r.mu.Unlock()

		if dep.Required && (!targetExists || !targetEnabled) {
			return &MissingPluginError{TargetID: dep.TargetID}
		}
		if targetExists && dep.Range != nil {
			ok, err := dep.IsCompatibleWith(target.Version())
			if err != nil {
				return &VersionParseErrorWrap{PluginID: id, Source: err}
			}
			if !ok {
				return &IncompatibleVersionError{
					Plugin: id, Dep: dep.TargetID,
					Required: dep.Range.String(), Actual: target.Version(),
				}
			}
		}
		if dep.Required && !targetInitialized {
			if err := r.initializeOne(ctx, dep.TargetID, app, stageRegistry, stack); err != nil {
				return err
			}
		}
	}

	if err := p.Init(ctx, app); err != nil {
		return fmt.Errorf("plugin %s: init failed: %w", id, err)
	}
	if stageRegistry != nil {
		if err := p.RegisterStages(ctx, stageRegistry); err != nil {
			return fmt.Errorf("plugin %s: register_stages failed: %w", id, err)
		}
	}

	r.mu.Lock()
	r.initialized[id] = struct{}{}
	r.mu.Unlock()
	pluginlog.Registry().Info().Str("plugin", id).Msg("plugin initialized")
	return nil
}

func stackPath(stack map[string]struct{}) []string {
	out := make([]string, 0, len(stack))
	for id := range stack {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RecordStageOwnership records that pluginID owns stageID, so ShutdownAll
// and Disable can unregister it later, following the
// "plugin_id::stage_name" ownership convention. The registry never calls
// it itself: InitializeAll does not record the stages a plugin registers
// through RegisterStages, so only stages recorded here are unregistered.
func (r *Registry) RecordStageOwnership(pluginID, stageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stageOwners[pluginID] = append(r.stageOwners[pluginID], stageID)
}

// ShutdownAll computes dependents-before-dependencies order (a Kahn's-
// algorithm walk over the reversed dependency graph, restricted to
// currently initialized plugins) and shuts each down, collecting failures
// without aborting the walk.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	r.mu.Lock()
	initializedIDs := make([]string, 0, len(r.initialized))
	for id := range r.initialized {
		initializedIDs = append(initializedIDs, id)
	}
	sort.Strings(initializedIDs)
	plugins := make(map[string]Plugin, len(initializedIDs))
	for _, id := range initializedIDs {
		plugins[id] = r.plugins[id]
	}
	r.mu.Unlock()

	initSet := map[string]struct{}{}
	for _, id := range initializedIDs {
		initSet[id] = struct{}{}
	}

	// forward[a] = deps of a that are also initialized (a -> dep)
	// reverse in-degree: number of initialized plugins that depend on n
	forward := map[string][]string{}
	dependedOnBy := map[string]int{}
	for _, id := range initializedIDs {
		dependedOnBy[id] = 0
	}
	for _, id := range initializedIDs {
		for _, dep := range plugins[id].Dependencies() {
			if _, ok := initSet[dep.TargetID]; !ok {
				continue
			}
			forward[id] = append(forward[id], dep.TargetID)
			dependedOnBy[dep.TargetID]++
		}
	}

	// The ready queue is kept in descending id order (the reverse of the
	// ascending tie-break InitializeAll uses), so a dependent shuts down
	// before its siblings at the same readiness level: A, C, B, D rather
	// than A, B, C, D for the diamond A->{B,C}->D.
	var queue []string
	for _, id := range initializedIDs {
		if dependedOnBy[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(queue)))

	var order []string
	remaining := map[string]int{}
	for k, v := range dependedOnBy {
		remaining[k] = v
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		deps := append([]string(nil), forward[n]...)
		sort.Sort(sort.Reverse(sort.StringSlice(deps)))
		for _, d := range deps {
			remaining[d]--
			if remaining[d] == 0 {
				queue = append(queue, d)
				sort.Sort(sort.Reverse(sort.StringSlice(queue)))
			}
		}
	}

	if len(order) != len(initializedIDs) {
		return fmt.Errorf("shutdown order computation found a residual cycle among initialized plugins: resolved %d of %d", len(order), len(initializedIDs))
	}

	failures := map[string]error{}
	for _, id := range order {
		p := plugins[id]
		if err := p.Shutdown(ctx); err != nil {
			failures[id] = err
			pluginlog.Registry().Error().Err(err).Str("plugin", id).Msg("plugin shutdown failed")
		} else {
			pluginlog.Registry().Info().Str("plugin", id).Msg("plugin shut down")
		}
		r.mu.Lock()
		delete(r.initialized, id)
		for _, stageID := range r.stageOwners[id] {
			_ = r.unregister(stageID)
		}
		delete(r.stageOwners, id)
		r.mu.Unlock()
	}

	if len(failures) > 0 {
		return &ShutdownErrors{Failures: failures}
	}
	return nil
}
