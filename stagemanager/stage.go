package stagemanager

import "context"

// Stage is the unit of work the pipeline engine schedules and runs.
type Stage interface {
	ID() string
	Name() string
	Description() string

	// SupportsDryRun reports whether this stage can meaningfully describe
	// its effect without performing it. Most stages do.
	SupportsDryRun() bool

	Execute(ctx context.Context, sc *Context) error

	// DryRunDescription summarizes what Execute would do, for stages run
	// under DryRun mode.
	DryRunDescription(sc *Context) string
}

// Result reports the outcome of running a single stage.
type Result struct {
	Status  ResultStatus
	Message string
}

// ResultStatus enumerates the three ways a stage run can conclude.
type ResultStatus int

const (
	Success ResultStatus = iota
	Failure
	Skipped
)

func (s ResultStatus) String() string {
	switch s {
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	case Skipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// BaseStage supplies the SupportsDryRun/DryRunDescription defaults the
// original trait provides (supports_dry_run() -> true, a generic "Would
// execute stage: {name}" description), so a concrete stage type can embed
// it and only implement ID/Name/Description/Execute.
type BaseStage struct {
	StageID          string
	StageName        string
	StageDescription string
}

func (b *BaseStage) ID() string               { return b.StageID }
func (b *BaseStage) Name() string             { return b.StageName }
func (b *BaseStage) Description() string      { return b.StageDescription }
func (b *BaseStage) SupportsDryRun() bool     { return true }
func (b *BaseStage) DryRunDescription(*Context) string {
	return "Would execute stage: " + b.StageName
}
