package corestages_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunihir0/gini-sub000/pluginsystem"
	"github.com/kunihir0/gini-sub000/pluginsystem/semver"
	"github.com/kunihir0/gini-sub000/stagemanager"
	"github.com/kunihir0/gini-sub000/stagemanager/corestages"
)

// registeredStage is a minimal stagemanager.Stage a fakePlugin can hand to
// RegisterStages, so tests can observe a plugin registering a stage while
// the core stages run inside a real Pipeline.Execute.
type registeredStage struct {
	id       string
	executed *bool
}

func (s *registeredStage) ID() string           { return s.id }
func (s *registeredStage) Name() string         { return s.id }
func (s *registeredStage) Description() string  { return "test-registered stage" }
func (s *registeredStage) SupportsDryRun() bool { return true }
func (s *registeredStage) Execute(ctx context.Context, sc *stagemanager.Context) error {
	*s.executed = true
	return nil
}
func (s *registeredStage) DryRunDescription(*stagemanager.Context) string {
	return "would execute " + s.id
}

var _ stagemanager.Stage = (*registeredStage)(nil)

type fakePlugin struct {
	id              string
	priority        pluginsystem.Priority
	failPreflight   bool
	initialized     bool
	stageToRegister stagemanager.Stage
}

func newFakePlugin(id string, priority pluginsystem.Priority) *fakePlugin {
	return &fakePlugin{id: id, priority: priority}
}

func (p *fakePlugin) ID() string       { return p.id }
func (p *fakePlugin) Name() string     { return p.id }
func (p *fakePlugin) Version() string  { return "1.0.0" }
func (p *fakePlugin) IsCore() bool     { return false }
func (p *fakePlugin) Priority() pluginsystem.Priority { return p.priority }
func (p *fakePlugin) CompatibleAPIVersions() []semver.Range {
	r, _ := semver.ParseRange("*")
	return []semver.Range{r}
}
func (p *fakePlugin) Dependencies() []pluginsystem.Dependency             { return nil }
func (p *fakePlugin) RequiredStages() []pluginsystem.StageRequirement     { return nil }
func (p *fakePlugin) ConflictsWith() []string                            { return nil }
func (p *fakePlugin) IncompatibleWith() []pluginsystem.Dependency        { return nil }
func (p *fakePlugin) Init(ctx context.Context, app pluginsystem.HostApplication) error {
	p.initialized = true
	return nil
}
func (p *fakePlugin) PreflightCheck(ctx context.Context, hctx *pluginsystem.HostContext) error {
	if p.failPreflight {
		return fmt.Errorf("preflight failed for %s", p.id)
	}
	return nil
}
func (p *fakePlugin) RegisterStages(ctx context.Context, reg pluginsystem.StageRegisterer) error {
	if p.stageToRegister == nil {
		return nil
	}
	return reg.RegisterStage(p.stageToRegister.ID(), p.stageToRegister)
}
func (p *fakePlugin) Shutdown(ctx context.Context) error { return nil }

var _ pluginsystem.Plugin = (*fakePlugin)(nil)

func mustPriority(t *testing.T, s string) pluginsystem.Priority {
	t.Helper()
	p, err := pluginsystem.ParsePriority(s)
	require.NoError(t, err)
	return p
}

// TestPreflightFailureDisablesPlugin exercises spec scenario 4: a plugin
// failing pre-flight gets disabled by PluginInitializationStage and never
// receives Init.
func TestPreflightFailureDisablesPlugin(t *testing.T) {
	reg := pluginsystem.NewRegistry(semver.Version{Major: 1}, nil)
	good := newFakePlugin("good", mustPriority(t, "core:60"))
	bad := newFakePlugin("bad", mustPriority(t, "core:60"))
	bad.failPreflight = true

	require.NoError(t, reg.Register(good))
	require.NoError(t, reg.Register(bad))

	sharedStages := stagemanager.NewSharedRegistry()
	sc := stagemanager.NewLiveContext(uuid.New(), t.TempDir())
	sc.SetData(corestages.PluginRegistryKey, reg)
	sc.SetData(corestages.StageRegistryKey, sharedStages)
	sc.SetData(corestages.ApplicationKey, pluginsystem.HostApplication(nil))

	ctx := context.Background()
	require.NoError(t, corestages.PluginPreflightCheckStage{}.Execute(ctx, sc))
	require.NoError(t, corestages.PluginInitializationStage{}.Execute(ctx, sc))

	assert.True(t, good.initialized)
	assert.False(t, bad.initialized)
	assert.False(t, reg.IsEnabled("bad"))
	assert.True(t, reg.IsEnabled("good"))
	assert.True(t, reg.IsInitialized("good"))
}

func TestPostInitializationStageIsANoOpHook(t *testing.T) {
	sc := stagemanager.NewLiveContext(uuid.New(), t.TempDir())
	require.NoError(t, corestages.PluginPostInitializationStage{}.Execute(context.Background(), sc))
}

func TestPreflightCheckStageMissingRegistryIsContextError(t *testing.T) {
	sc := stagemanager.NewLiveContext(uuid.New(), t.TempDir())
	err := corestages.PluginPreflightCheckStage{}.Execute(context.Background(), sc)
	require.Error(t, err)
	var ctxErr *stagemanager.ContextErrorErr
	require.ErrorAs(t, err, &ctxErr)
}

// TestPipelineExecuteDoesNotDeadlockWhenAPluginRegistersAStage drives the
// preflight+initialization stages through a real Pipeline/SharedRegistry,
// as the host's boot pipeline does, rather than calling Execute on the core
// stages directly. A plugin that registers a stage from RegisterStages
// would previously hang forever: SharedRegistry.ExecuteStage held its lock
// across the whole stage run, and RegisterStages re-entered the same lock.
func TestPipelineExecuteDoesNotDeadlockWhenAPluginRegistersAStage(t *testing.T) {
	reg := pluginsystem.NewRegistry(semver.Version{Major: 1}, nil)
	var extraExecuted bool
	plug := newFakePlugin("withstage", mustPriority(t, "core:60"))
	plug.stageToRegister = &registeredStage{id: "withstage::extra", executed: &extraExecuted}
	require.NoError(t, reg.Register(plug))

	sharedStages := stagemanager.NewSharedRegistry()
	require.NoError(t, sharedStages.RegisterStage(
		corestages.PluginPreflightCheckStage{}.ID(), corestages.PluginPreflightCheckStage{}))
	require.NoError(t, sharedStages.RegisterStage(
		corestages.PluginInitializationStage{}.ID(), corestages.PluginInitializationStage{}))

	pipeline := stagemanager.NewPipeline("core::boot", "boot pipeline")
	pipeline.AddStages(corestages.PluginPreflightCheckStage{}.ID(), corestages.PluginInitializationStage{}.ID())
	require.NoError(t, pipeline.AddDependency(
		corestages.PluginInitializationStage{}.ID(), corestages.PluginPreflightCheckStage{}.ID()))

	sc := stagemanager.NewLiveContext(uuid.New(), t.TempDir())
	sc.SetData(corestages.PluginRegistryKey, reg)
	sc.SetData(corestages.StageRegistryKey, sharedStages)
	sc.SetData(corestages.ApplicationKey, pluginsystem.HostApplication(nil))

	done := make(chan error, 1)
	go func() {
		_, err := pipeline.Execute(context.Background(), sc, sharedStages)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline.Execute deadlocked when a plugin registered a stage during initialization")
	}

	assert.True(t, plug.initialized)
	assert.True(t, sharedStages.HasStage("withstage::extra"))
}
