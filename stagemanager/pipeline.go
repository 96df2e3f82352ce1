package stagemanager

import (
	"context"

	"github.com/kunihir0/gini-sub000/internal/pluginlog"
)

// color marks a node's state during the pipeline's DFS passes, the same
// white/gray/black scheme pluginsystem/resolver uses for the manifest
// dependency graph. The two graphs are unrelated (one orders manifests
// before load, this one orders stages within one pipeline run) but the
// traversal shape is identical.
type color int

const (
	white color = iota
	gray
	black
)

// Pipeline is an ordered, named set of stage ids with optional dependency
// edges between them, executed through a SharedRegistry. Cycle checking
// (Validate) and execution-order computation (ExecutionOrder) are two
// separate DFS walks that use the same white/gray/black coloring scheme.
type Pipeline struct {
	name         string
	description  string
	stages       []string
	dependencies map[string][]string
}

// NewPipeline creates an empty, named pipeline.
func NewPipeline(name, description string) *Pipeline {
	return &Pipeline{
		name:         name,
		description:  description,
		dependencies: make(map[string][]string),
	}
}

func (p *Pipeline) Name() string        { return p.name }
func (p *Pipeline) Description() string { return p.description }
func (p *Pipeline) Stages() []string    { return append([]string(nil), p.stages...) }

// AddStage appends stageID to the pipeline if not already present.
func (p *Pipeline) AddStage(stageID string) {
	for _, id := range p.stages {
		if id == stageID {
			return
		}
	}
	p.stages = append(p.stages, stageID)
}

// AddStages appends every id in stageIDs.
func (p *Pipeline) AddStages(stageIDs ...string) {
	for _, id := range stageIDs {
		p.AddStage(id)
	}
}

// AddDependency records that stageID depends on dependsOn: dependsOn must
// run first. Both must already have been added with AddStage.
func (p *Pipeline) AddDependency(stageID, dependsOn string) error {
	if !p.contains(stageID) {
		return &StageNotInPipelineError{StageID: stageID}
	}
	if !p.contains(dependsOn) {
		return &StageNotInPipelineError{StageID: dependsOn}
	}
	p.dependencies[stageID] = append(p.dependencies[stageID], dependsOn)
	return nil
}

func (p *Pipeline) contains(stageID string) bool {
	for _, id := range p.stages {
		if id == stageID {
			return true
		}
	}
	return false
}

// Validate checks that every stage id in the pipeline is registered in reg
// and that the dependency graph has no cycles.
func (p *Pipeline) Validate(reg *SharedRegistry) error {
	colors := make(map[string]color, len(p.stages))
	for _, id := range p.stages {
		if !reg.HasStage(id) {
			return &StageNotFoundError{StageID: id}
		}
		if colors[id] == white {
			if p.hasCycle(id, colors) {
				return &CyclicPipelineError{StageID: id}
			}
		}
	}
	return nil
}

func (p *Pipeline) hasCycle(id string, colors map[string]color) bool {
	colors[id] = gray
	for _, dep := range p.dependencies[id] {
		switch colors[dep] {
		case gray:
			return true
		case white:
			if p.hasCycle(dep, colors) {
				return true
			}
		}
	}
	colors[id] = black
	return false
}

// ExecutionOrder returns stage ids sorted so every dependency runs before
// its dependents. Callers should call Validate first; ExecutionOrder itself
// re-detects a cycle defensively and returns CyclicPipelineError rather
// than looping forever.
func (p *Pipeline) ExecutionOrder() ([]string, error) {
	var order []string
	colors := make(map[string]color, len(p.stages))

	var visit func(id string) error
	visit = func(id string) error {
		if colors[id] == gray {
			return &CyclicPipelineError{StageID: id}
		}
		if colors[id] == black {
			return nil
		}
		colors[id] = gray
		for _, dep := range p.dependencies[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		colors[id] = black
		order = append(order, id)
		return nil
	}

	for _, id := range p.stages {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// Execute validates the pipeline against reg, computes execution order, and
// runs each stage in turn, stopping at the first failure. In dry-run mode
// it validates but skips real execution, asking each stage to describe
// itself instead (via Registry.ExecuteStage's own dry-run branch).
func (p *Pipeline) Execute(ctx context.Context, sc *Context, reg *SharedRegistry) (map[string]Result, error) {
	pluginlog.Stage().Info().Str("pipeline", p.name).Bool("dry_run", sc.IsDryRun()).Msg("executing pipeline")

	if err := p.Validate(reg); err != nil {
		return nil, err
	}

	order, err := p.ExecutionOrder()
	if err != nil {
		return nil, err
	}

	if !sc.IsDryRun() {
		sc.SetData("stage_registry_arc", reg)
	}

	results := make(map[string]Result, len(order))
	for _, stageID := range order {
		result, err := reg.ExecuteStage(ctx, stageID, sc)
		results[stageID] = result
		if err != nil {
			pluginlog.Stage().Warn().Str("pipeline", p.name).Str("stage", stageID).Msg("pipeline aborted due to stage failure")
			return results, err
		}
	}
	return results, nil
}
