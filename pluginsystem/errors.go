package pluginsystem

import "fmt"

// MissingPluginError reports a required dependency that is absent or
// disabled.
type MissingPluginError struct {
	TargetID string
}

func (e *MissingPluginError) Error() string {
	return fmt.Sprintf("missing required plugin: %s", e.TargetID)
}

// IncompatibleVersionError reports a dependency whose declared range the
// actual installed version does not satisfy.
type IncompatibleVersionError struct {
	Plugin   string
	Dep      string
	Required string
	Actual   string
}

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("plugin %s requires %s version %s, found %s", e.Plugin, e.Dep, e.Required, e.Actual)
}

// CyclicDependencyError reports a required-edge cycle. From the resolver,
// Path lists the ids visited from the entry point back around to the
// repeated node; from Registry.InitializeAll, Path lists the ids being
// initialized at that moment in ascending id order, then the repeated node.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic plugin dependency: %v", e.Path)
}

// VersionParseErrorWrap bubbles a semver parse failure up with the plugin
// id it was parsing on behalf of.
type VersionParseErrorWrap struct {
	PluginID string
	Source   error
}

func (e *VersionParseErrorWrap) Error() string {
	return fmt.Sprintf("plugin %s: version parse error: %v", e.PluginID, e.Source)
}
func (e *VersionParseErrorWrap) Unwrap() error { return e.Source }

// ApiIncompatibleError reports a registration rejected because the host's
// API version admits none of the plugin's compatible_api_versions ranges.
type ApiIncompatibleError struct {
	PluginID string
	HostAPI  string
}

func (e *ApiIncompatibleError) Error() string {
	return fmt.Sprintf("plugin %s is not compatible with host API version %s", e.PluginID, e.HostAPI)
}

// AlreadyRegisteredError reports a duplicate plugin id on registration.
type AlreadyRegisteredError struct {
	PluginID string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("plugin already registered: %s", e.PluginID)
}

// NotFoundError reports an operation against an id the registry doesn't know.
type NotFoundError struct {
	PluginID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("plugin not found: %s", e.PluginID)
}

// DisableWhileInitializedError reports a disable attempt against a plugin
// that is still initialized; the caller must shut it down first.
type DisableWhileInitializedError struct {
	PluginID string
}

func (e *DisableWhileInitializedError) Error() string {
	return fmt.Sprintf("cannot disable %s while initialized: stop first", e.PluginID)
}

// ConflictErr reports an unresolved critical conflict blocking initialization.
type ConflictErr struct {
	First, Second string
	Type          ConflictType
}

func (e *ConflictErr) Error() string {
	return fmt.Sprintf("unresolved conflict between %s and %s: %s", e.First, e.Second, e.Type.Description())
}

// ShutdownErrors aggregates per-plugin shutdown failures collected by
// Registry.ShutdownAll; all plugins still get their chance to shut down
// regardless of earlier failures.
type ShutdownErrors struct {
	Failures map[string]error
}

func (e *ShutdownErrors) Error() string {
	return fmt.Sprintf("%d plugin(s) failed to shut down cleanly: %v", len(e.Failures), e.Failures)
}
