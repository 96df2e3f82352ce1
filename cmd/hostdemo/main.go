// Command hostdemo wires the plugin host's subsystems together end to end:
// scan manifests, resolve load order, load plugins over the FFI boundary,
// run the core lifecycle pipeline, then shut everything down cleanly on
// SIGINT/SIGTERM. It is a reference wiring, not a production entry point.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kunihir0/gini-sub000/internal/pluginlog"
	"github.com/kunihir0/gini-sub000/pluginsystem"
	"github.com/kunihir0/gini-sub000/pluginsystem/ffi"
	"github.com/kunihir0/gini-sub000/pluginsystem/manifest"
	"github.com/kunihir0/gini-sub000/pluginsystem/resolver"
	"github.com/kunihir0/gini-sub000/pluginsystem/semver"
	"github.com/kunihir0/gini-sub000/stagemanager"
	"github.com/kunihir0/gini-sub000/stagemanager/corestages"
)

func main() {
	logLevel := getEnv("LOG_LEVEL", "info")
	logPretty := getEnv("LOG_PRETTY", "true") == "true"
	pluginlog.Init(logLevel, logPretty)

	pluginDir := getEnv("PLUGIN_DIR", "./plugins")
	apiVersionStr := getEnv("HOST_API_VERSION", "1.0.0")
	shutdownTimeout := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	maxCriticalConflicts := getEnvInt("MAX_CRITICAL_CONFLICTS", 0)

	apiVersion, err := semver.Parse(apiVersionStr)
	if err != nil {
		log.Fatalf("invalid HOST_API_VERSION %q: %v", apiVersionStr, err)
	}

	pluginlog.GetLogger().Info().Str("plugin_dir", pluginDir).Str("api_version", apiVersion.String()).Msg("starting plugin host")

	loader := manifest.NewLoader()
	loader.AddRoot(pluginDir)
	manifests, err := loader.ScanAll()
	if err != nil {
		log.Fatalf("manifest scan failed: %v", err)
	}
	pluginlog.GetLogger().Info().Int("count", len(manifests)).Msg("manifests discovered")

	loadOrder, err := resolver.Resolve(manifests)
	if err != nil {
		log.Fatalf("dependency resolution failed: %v", err)
	}

	stageRegistry := stagemanager.NewSharedRegistry()
	registry := pluginsystem.NewRegistry(apiVersion, func(stageID string) error {
		return stageRegistry.WithLocked(func(r *stagemanager.Registry) error {
			r.RemoveStage(stageID)
			return nil
		})
	})

	ffiLoader := ffi.NewLoader()
	for _, id := range loadOrder.ManifestIDs {
		m := manifests[id]
		shim, err := ffiLoader.Load(m.ID, m.PluginBaseDir, m.EntryPoint)
		if err != nil {
			pluginlog.GetLogger().Error().Err(err).Str("plugin", id).Msg("failed to load plugin, skipping")
			continue
		}
		if err := registry.Register(shim); err != nil {
			pluginlog.GetLogger().Error().Err(err).Str("plugin", id).Msg("failed to register plugin, skipping")
		}
	}

	registry.Conflicts().DetectConflicts(registry)
	criticalConflicts := registry.Conflicts().CriticalUnresolvedConflicts()
	for _, c := range criticalConflicts {
		pluginlog.GetLogger().Warn().Str("first", c.FirstID).Str("second", c.SecondID).Msg("unresolved critical plugin conflict")
	}
	if len(criticalConflicts) > maxCriticalConflicts {
		log.Fatalf("%d unresolved critical plugin conflicts exceed MAX_CRITICAL_CONFLICTS=%d", len(criticalConflicts), maxCriticalConflicts)
	}

	if err := registry.CheckDependencies(); err != nil {
		log.Fatalf("plugin dependency check failed: %v", err)
	}

	pipeline := stagemanager.NewPipeline("core::boot", "Core plugin lifecycle")
	pipeline.AddStages(
		corestages.PluginPreflightCheckStage{}.ID(),
		corestages.PluginInitializationStage{}.ID(),
		corestages.PluginPostInitializationStage{}.ID(),
	)
	_ = pipeline.AddDependency(corestages.PluginInitializationStage{}.ID(), corestages.PluginPreflightCheckStage{}.ID())
	_ = pipeline.AddDependency(corestages.PluginPostInitializationStage{}.ID(), corestages.PluginInitializationStage{}.ID())

	_ = stageRegistry.RegisterStage(corestages.PluginPreflightCheckStage{}.ID(), corestages.PluginPreflightCheckStage{})
	_ = stageRegistry.RegisterStage(corestages.PluginInitializationStage{}.ID(), corestages.PluginInitializationStage{})
	_ = stageRegistry.RegisterStage(corestages.PluginPostInitializationStage{}.ID(), corestages.PluginPostInitializationStage{})

	runCtx := context.Background()
	sc := stagemanager.NewLiveContext(uuid.New(), pluginDir)
	sc.SetData(corestages.PluginRegistryKey, registry)
	sc.SetData(corestages.StageRegistryKey, stageRegistry)
	sc.SetData(corestages.ApplicationKey, pluginsystem.HostApplication(nil))

	if _, err := pipeline.Execute(runCtx, sc, stageRegistry); err != nil {
		log.Fatalf("boot pipeline failed: %v", err)
	}

	pluginlog.GetLogger().Info().Int("initialized", registry.InitializedCount()).Msg("plugin host ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	pluginlog.GetLogger().Info().Str("signal", sig.String()).Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := registry.ShutdownAll(shutdownCtx); err != nil {
		pluginlog.GetLogger().Error().Err(err).Msg("one or more plugins failed to shut down cleanly")
	} else {
		pluginlog.GetLogger().Info().Msg("plugin host shut down cleanly")
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
