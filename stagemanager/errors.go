package stagemanager

import "fmt"

// StageAlreadyExistsError reports a duplicate stage id on registration.
type StageAlreadyExistsError struct {
	StageID string
}

func (e *StageAlreadyExistsError) Error() string {
	return fmt.Sprintf("stage already exists: %s", e.StageID)
}

// StageNotFoundError reports a lookup or execution request against an
// unregistered stage id.
type StageNotFoundError struct {
	StageID string
}

func (e *StageNotFoundError) Error() string {
	return fmt.Sprintf("stage not found: %s", e.StageID)
}

// PipelineAlreadyExistsError reports a duplicate pipeline name on
// registration.
type PipelineAlreadyExistsError struct {
	PipelineName string
}

func (e *PipelineAlreadyExistsError) Error() string {
	return fmt.Sprintf("pipeline already exists: %s", e.PipelineName)
}

// StageNotFoundInPipelineError reports a pipeline definition referencing a
// stage id the registry has never seen.
type StageNotFoundInPipelineError struct {
	PipelineName string
	StageID      string
}

func (e *StageNotFoundInPipelineError) Error() string {
	return fmt.Sprintf("pipeline %s references unknown stage %s", e.PipelineName, e.StageID)
}

// StageExecutionFailedError wraps the error a stage's Execute returned,
// naming which stage produced it.
type StageExecutionFailedError struct {
	StageID string
	Source  error
}

func (e *StageExecutionFailedError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.StageID, e.Source)
}
func (e *StageExecutionFailedError) Unwrap() error { return e.Source }

// ContextErrorErr reports a stage that expected a key in the shared data
// bag that wasn't present or was the wrong type.
type ContextErrorErr struct {
	Key    string
	Reason string
}

func (e *ContextErrorErr) Error() string {
	return fmt.Sprintf("context error for key %q: %s", e.Key, e.Reason)
}

// CyclicPipelineError reports a dependency cycle found during pipeline
// validation.
type CyclicPipelineError struct {
	StageID string
}

func (e *CyclicPipelineError) Error() string {
	return fmt.Sprintf("pipeline has cyclic dependencies starting from stage: %s", e.StageID)
}

// StageNotInPipelineError reports add_dependency called with a stage id not
// yet added to the pipeline.
type StageNotInPipelineError struct {
	StageID string
}

func (e *StageNotInPipelineError) Error() string {
	return fmt.Sprintf("stage %q must be added to the pipeline before adding a dependency", e.StageID)
}
