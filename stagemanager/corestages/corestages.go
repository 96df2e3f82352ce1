// Package corestages provides the stage engine's built-in pipeline steps
// that drive the plugin lifecycle: pre-flight checks, initialization, and a
// post-initialization hook point.
package corestages

import (
	"context"
	"fmt"

	"github.com/kunihir0/gini-sub000/internal/pluginlog"
	"github.com/kunihir0/gini-sub000/pluginsystem"
	"github.com/kunihir0/gini-sub000/stagemanager"
)

// Context keys the core stages read and write in a pipeline's shared data
// bag. A host wires PluginRegistryKey and ApplicationKey before running the
// pipeline; StageRegistryKey is set by Pipeline.Execute itself.
const (
	PluginRegistryKey   = "plugin_registry"
	PreflightFailuresKey = "preflight_failures"
	ApplicationKey      = "application"
	StageRegistryKey    = "stage_registry_arc"
)

// PluginPreflightCheckStage runs every registered plugin's PreflightCheck,
// enabled or not, and records which ids failed, without failing the stage itself — individual
// failures are handled by PluginInitializationStage.
type PluginPreflightCheckStage struct{}

var _ stagemanager.Stage = PluginPreflightCheckStage{}

func (PluginPreflightCheckStage) ID() string   { return "core::plugin_preflight_check" }
func (PluginPreflightCheckStage) Name() string { return "Plugin Pre-flight Checks" }
func (PluginPreflightCheckStage) Description() string {
	return "Executes pre-initialization checks for all loaded plugins."
}
func (PluginPreflightCheckStage) SupportsDryRun() bool { return true }

func (PluginPreflightCheckStage) Execute(ctx context.Context, sc *stagemanager.Context) error {
	reg, ok := stagemanager.GetContextData[*pluginsystem.Registry](sc, PluginRegistryKey)
	if !ok {
		return &stagemanager.ContextErrorErr{Key: PluginRegistryKey, Reason: "plugin registry not found"}
	}

	ids := reg.PluginIDs()
	pluginlog.Stage().Info().Int("count", len(ids)).Msg("running plugin pre-flight checks")

	failures := make(map[string]struct{})
	for _, id := range ids {
		plugin, exists := reg.Get(id)
		if !exists {
			continue
		}
		hctx := &pluginsystem.HostContext{Data: sc}
		if err := plugin.PreflightCheck(ctx, hctx); err != nil {
			pluginlog.Stage().Warn().Err(err).Str("plugin", id).Msg("pre-flight check failed")
			failures[id] = struct{}{}
			continue
		}
		pluginlog.Stage().Debug().Str("plugin", id).Msg("pre-flight check passed")
	}

	sc.SetData(PreflightFailuresKey, failures)
	pluginlog.Stage().Info().Int("failed", len(failures)).Msg("pre-flight checks complete")
	return nil
}

func (PluginPreflightCheckStage) DryRunDescription(sc *stagemanager.Context) string {
	count := 0
	if reg, ok := stagemanager.GetContextData[*pluginsystem.Registry](sc, PluginRegistryKey); ok {
		count = len(reg.PluginIDs())
	}
	return fmt.Sprintf("Would execute pre-flight checks for %d plugins.", count)
}

// PluginInitializationStage disables any plugin that failed pre-flight,
// then calls Registry.InitializeAll for everything still enabled.
type PluginInitializationStage struct{}

var _ stagemanager.Stage = PluginInitializationStage{}

func (PluginInitializationStage) ID() string   { return "core::plugin_initialization" }
func (PluginInitializationStage) Name() string { return "Plugin Initialization" }
func (PluginInitializationStage) Description() string {
	return "Initializes all plugins that passed previous checks."
}
func (PluginInitializationStage) SupportsDryRun() bool { return true }

func (PluginInitializationStage) Execute(ctx context.Context, sc *stagemanager.Context) error {
	reg, ok := stagemanager.GetContextData[*pluginsystem.Registry](sc, PluginRegistryKey)
	if !ok {
		return &stagemanager.ContextErrorErr{Key: PluginRegistryKey, Reason: "plugin registry not found"}
	}
	stageRegistry, ok := stagemanager.GetContextData[*stagemanager.SharedRegistry](sc, StageRegistryKey)
	if !ok {
		return &stagemanager.ContextErrorErr{Key: StageRegistryKey, Reason: "shared stage registry not found"}
	}
	app, _ := stagemanager.GetContextData[pluginsystem.HostApplication](sc, ApplicationKey)

	failures, _ := stagemanager.GetContextData[map[string]struct{}](sc, PreflightFailuresKey)
	if len(failures) > 0 {
		pluginlog.Stage().Warn().Int("count", len(failures)).Msg("disabling plugins that failed pre-flight checks")
		for id := range failures {
			if err := reg.Disable(id); err != nil {
				pluginlog.Stage().Warn().Err(err).Str("plugin", id).Msg("failed to disable plugin after pre-flight failure")
			} else {
				pluginlog.Stage().Info().Str("plugin", id).Msg("plugin disabled due to pre-flight failure")
			}
		}
	}

	if err := reg.InitializeAll(ctx, app, stageRegistry); err != nil {
		return fmt.Errorf("plugin initialization: %w", err)
	}
	pluginlog.Stage().Info().Msg("plugin initialization complete")
	return nil
}

func (PluginInitializationStage) DryRunDescription(sc *stagemanager.Context) string {
	total := 0
	if reg, ok := stagemanager.GetContextData[*pluginsystem.Registry](sc, PluginRegistryKey); ok {
		total = len(reg.EnabledIDs())
	}
	failures, _ := stagemanager.GetContextData[map[string]struct{}](sc, PreflightFailuresKey)
	return fmt.Sprintf("Would initialize %d plugins (skipping %d due to failed pre-flight checks).", total-len(failures), len(failures))
}

// PluginPostInitializationStage is a hook point run after every plugin has
// either initialized or been skipped; it performs no work itself but gives
// the pipeline a stable id for host-side or future plugin-side hooks.
type PluginPostInitializationStage struct{}

var _ stagemanager.Stage = PluginPostInitializationStage{}

func (PluginPostInitializationStage) ID() string   { return "core::plugin_post_initialization" }
func (PluginPostInitializationStage) Name() string { return "Plugin Post-Initialization" }
func (PluginPostInitializationStage) Description() string {
	return "Executes logic after all plugins have been initialized."
}
func (PluginPostInitializationStage) SupportsDryRun() bool { return true }

func (PluginPostInitializationStage) Execute(ctx context.Context, sc *stagemanager.Context) error {
	pluginlog.Stage().Debug().Msg("post-initialization hook")
	return nil
}

func (PluginPostInitializationStage) DryRunDescription(*stagemanager.Context) string {
	return "Would run post-initialization hooks for successfully initialized plugins."
}
