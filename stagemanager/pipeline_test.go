package stagemanager_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunihir0/gini-sub000/stagemanager"
)

type recordingStage struct {
	stagemanager.BaseStage
	order   *[]string
	failure bool
}

func newRecordingStage(id string, order *[]string) *recordingStage {
	return &recordingStage{
		BaseStage: stagemanager.BaseStage{StageID: id, StageName: id, StageDescription: "test stage " + id},
		order:     order,
	}
}

func (s *recordingStage) Execute(ctx context.Context, sc *stagemanager.Context) error {
	if s.failure {
		return fmt.Errorf("stage %s failed", s.StageID)
	}
	*s.order = append(*s.order, s.StageID)
	return nil
}

func newSharedRegistryWithStages(order *[]string, ids ...string) *stagemanager.SharedRegistry {
	reg := stagemanager.NewSharedRegistry()
	for _, id := range ids {
		_ = reg.RegisterStage(id, newRecordingStage(id, order))
	}
	return reg
}

func TestPipelineExecutesInDependencyOrder(t *testing.T) {
	var order []string
	reg := newSharedRegistryWithStages(&order, "a", "b", "c")

	p := stagemanager.NewPipeline("boot", "boot sequence")
	p.AddStages("a", "b", "c")
	require.NoError(t, p.AddDependency("c", "b"))
	require.NoError(t, p.AddDependency("b", "a"))

	sc := stagemanager.NewLiveContext(uuid.New(), t.TempDir())
	results, err := p.Execute(context.Background(), sc, reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, stagemanager.Success, results["c"].Status)
}

func TestPipelineValidateDetectsCycle(t *testing.T) {
	var order []string
	reg := newSharedRegistryWithStages(&order, "a", "b")

	p := stagemanager.NewPipeline("cyclic", "")
	p.AddStages("a", "b")
	require.NoError(t, p.AddDependency("a", "b"))
	require.NoError(t, p.AddDependency("b", "a"))

	err := p.Validate(reg)
	require.Error(t, err)
	var cyc *stagemanager.CyclicPipelineError
	require.ErrorAs(t, err, &cyc)
}

func TestPipelineAddDependencyRequiresBothStagesAdded(t *testing.T) {
	p := stagemanager.NewPipeline("p", "")
	p.AddStage("a")
	err := p.AddDependency("a", "never-added")
	require.Error(t, err)
	var notIn *stagemanager.StageNotInPipelineError
	require.ErrorAs(t, err, &notIn)
}

func TestPipelineStopsOnFirstFailure(t *testing.T) {
	var order []string
	reg := stagemanager.NewSharedRegistry()
	failing := newRecordingStage("fails", &order)
	failing.failure = true
	require.NoError(t, reg.RegisterStage("fails", failing))
	require.NoError(t, reg.RegisterStage("never", newRecordingStage("never", &order)))

	p := stagemanager.NewPipeline("p", "")
	p.AddStages("fails", "never")
	require.NoError(t, p.AddDependency("never", "fails"))

	sc := stagemanager.NewLiveContext(uuid.New(), t.TempDir())
	results, err := p.Execute(context.Background(), sc, reg)
	require.Error(t, err)
	assert.Equal(t, stagemanager.Failure, results["fails"].Status)
	assert.NotContains(t, results, "never")
	assert.Empty(t, order)
}

func TestPipelineDryRunSkipsExecution(t *testing.T) {
	var order []string
	reg := newSharedRegistryWithStages(&order, "a")

	p := stagemanager.NewPipeline("p", "")
	p.AddStage("a")

	sc := stagemanager.NewDryRunContext(uuid.New(), t.TempDir())
	results, err := p.Execute(context.Background(), sc, reg)
	require.NoError(t, err)
	assert.Empty(t, order)
	assert.Equal(t, stagemanager.Success, results["a"].Status)
}
