package stagemanager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kunihir0/gini-sub000/internal/pluginlog"
)

// PipelineDefinition is a named, ordered list of stage ids a host can
// register once and reference by name.
type PipelineDefinition struct {
	Name        string
	Stages      []string
	Description string
}

// Registry holds every registered Stage and named PipelineDefinition.
type Registry struct {
	stages    map[string]Stage
	pipelines map[string]PipelineDefinition
}

// NewRegistry constructs an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{
		stages:    make(map[string]Stage),
		pipelines: make(map[string]PipelineDefinition),
	}
}

// RegisterStage adds stage under its own id, rejecting duplicates.
func (r *Registry) RegisterStage(stage Stage) error {
	id := stage.ID()
	if _, exists := r.stages[id]; exists {
		return &StageAlreadyExistsError{StageID: id}
	}
	r.stages[id] = stage
	return nil
}

// RegisterPipeline adds a pipeline definition, rejecting duplicate names and
// definitions that reference stages this registry doesn't know about.
func (r *Registry) RegisterPipeline(def PipelineDefinition) error {
	if _, exists := r.pipelines[def.Name]; exists {
		return &PipelineAlreadyExistsError{PipelineName: def.Name}
	}
	for _, stageID := range def.Stages {
		if _, ok := r.stages[stageID]; !ok {
			return &StageNotFoundInPipelineError{PipelineName: def.Name, StageID: stageID}
		}
	}
	r.pipelines[def.Name] = def
	return nil
}

// HasStage reports whether id is registered.
func (r *Registry) HasStage(id string) bool {
	_, ok := r.stages[id]
	return ok
}

// PipelineDefinitionByName returns a previously registered pipeline
// definition.
func (r *Registry) PipelineDefinitionByName(name string) (PipelineDefinition, bool) {
	d, ok := r.pipelines[name]
	return d, ok
}

// RemoveStage drops a stage by id, returning it if present.
func (r *Registry) RemoveStage(id string) (Stage, bool) {
	s, ok := r.stages[id]
	if ok {
		delete(r.stages, id)
	}
	return s, ok
}

// AllIDs returns every registered stage id.
func (r *Registry) AllIDs() []string {
	ids := make([]string, 0, len(r.stages))
	for id := range r.stages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered stages.
func (r *Registry) Count() int { return len(r.stages) }

// Clear removes every registered stage.
func (r *Registry) Clear() { r.stages = make(map[string]Stage) }

// ExecuteStage runs a single stage by id. In dry-run mode it calls the
// stage's DryRunDescription instead of Execute and always reports Success.
func (r *Registry) ExecuteStage(ctx context.Context, id string, sc *Context) (Result, error) {
	stage, ok := r.stages[id]
	if !ok {
		return Result{}, &StageNotFoundError{StageID: id}
	}
	return runStage(ctx, id, stage, sc)
}

// runStage holds the dry-run/execute logic shared by Registry.ExecuteStage
// and SharedRegistry.ExecuteStage, once the stage has already been looked
// up. It never touches the registry, so callers can run it outside any lock
// they took just to do the lookup.
func runStage(ctx context.Context, id string, stage Stage, sc *Context) (Result, error) {
	pluginlog.Stage().Debug().Str("stage", id).Msg("executing stage")

	if sc.IsDryRun() {
		pluginlog.Stage().Info().Str("stage", id).Str("plan", stage.DryRunDescription(sc)).Msg("dry run")
		return Result{Status: Success}, nil
	}

	if err := stage.Execute(ctx, sc); err != nil {
		pluginlog.Stage().Error().Err(err).Str("stage", id).Msg("stage failed")
		return Result{Status: Failure, Message: err.Error()}, &StageExecutionFailedError{StageID: id, Source: err}
	}
	pluginlog.Stage().Info().Str("stage", id).Msg("stage completed")
	return Result{Status: Success}, nil
}

// UnregisterStagesForPlugin drops every stage whose id carries the
// "pluginID::" ownership prefix convention. Returns the ids removed.
func (r *Registry) UnregisterStagesForPlugin(pluginID string) []string {
	prefix := pluginID + "::"
	var removed []string
	for id := range r.stages {
		if len(id) > len(prefix) && id[:len(prefix)] == prefix {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	for _, id := range removed {
		delete(r.stages, id)
	}
	if len(removed) == 0 {
		pluginlog.Stage().Debug().Str("plugin", pluginID).Msg("no owned stages to unregister")
	} else {
		pluginlog.Stage().Info().Str("plugin", pluginID).Strs("stages", removed).Msg("unregistered plugin stages")
	}
	return removed
}

// SharedRegistry is a mutex-guarded Registry safe for concurrent use by
// multiple plugins/stages. A plain sync.Mutex is enough here; nothing in
// this package needs an async-aware lock.
type SharedRegistry struct {
	mu  sync.Mutex
	reg *Registry
}

// NewSharedRegistry wraps a fresh Registry for concurrent use.
func NewSharedRegistry() *SharedRegistry {
	return &SharedRegistry{reg: NewRegistry()}
}

// RegisterStage implements pluginsystem.StageRegisterer, letting a Plugin's
// RegisterStages method hand this registry a concrete Stage without
// pluginsystem importing this package. stage must implement Stage.
func (s *SharedRegistry) RegisterStage(id string, stage any) error {
	st, ok := stage.(Stage)
	if !ok {
		return fmt.Errorf("stagemanager: value registered for %q does not implement Stage", id)
	}
	if st.ID() != id {
		return fmt.Errorf("stagemanager: stage id mismatch: registerer called with %q but stage reports %q", id, st.ID())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.RegisterStage(st)
}

// HasStage reports whether id is registered.
func (s *SharedRegistry) HasStage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.HasStage(id)
}

// ExecuteStage runs a single stage by id. Only the stage lookup happens
// under the lock; the stage itself runs unlocked, since a stage's Execute
// (e.g. core::plugin_initialization) may call back into this same registry
// via RegisterStage while it runs, and s.mu is not reentrant.
func (s *SharedRegistry) ExecuteStage(ctx context.Context, id string, sc *Context) (Result, error) {
	s.mu.Lock()
	stage, ok := s.reg.stages[id]
	s.mu.Unlock()
	if !ok {
		return Result{}, &StageNotFoundError{StageID: id}
	}
	return runStage(ctx, id, stage, sc)
}

// AllIDs returns every registered stage id.
func (s *SharedRegistry) AllIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.AllIDs()
}

// UnregisterStagesForPlugin drops every stage owned by pluginID.
func (s *SharedRegistry) UnregisterStagesForPlugin(pluginID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.UnregisterStagesForPlugin(pluginID)
}

// WithLocked runs f with the underlying Registry locked, for callers that
// need Registry operations SharedRegistry does not forward, or several
// registry operations that observe a consistent snapshot.
func (s *SharedRegistry) WithLocked(f func(*Registry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return f(s.reg)
}
