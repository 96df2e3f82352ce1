// Package stagemanager implements the staged execution pipeline engine: a
// small DAG of named Stage steps a host runs in dependency order, with a
// dry-run mode for previewing what would happen without side effects.
package stagemanager

import (
	"sync"

	"github.com/google/uuid"
)

// ExecutionMode selects whether a Context's stages perform real work or
// only describe what they would do.
type ExecutionMode int

const (
	// Live runs stages for real.
	Live ExecutionMode = iota
	// DryRun asks each stage to describe its intended effect instead of
	// performing it.
	DryRun
)

func (m ExecutionMode) IsDryRun() bool { return m == DryRun }
func (m ExecutionMode) IsLive() bool   { return m == Live }

// Context is passed to every Stage.Execute call. It carries the execution
// mode, a config directory, CLI arguments, and a shared data bag stages use
// to pass results to later stages in the same pipeline run. The data bag is
// a plain map[string]any guarded by a mutex, since stages may run from
// goroutines the host spawns around InitializeAll.
type Context struct {
	Mode ExecutionMode
	// RunID identifies one pipeline execution for log correlation across
	// every stage it runs.
	RunID uuid.UUID

	configDir string

	mu         sync.RWMutex
	sharedData map[string]any
	cliArgs    map[string]string
}

// NewLiveContext creates a Context that performs real work.
func NewLiveContext(runID uuid.UUID, configDir string) *Context {
	return newContext(Live, runID, configDir)
}

// NewDryRunContext creates a Context that only simulates work.
func NewDryRunContext(runID uuid.UUID, configDir string) *Context {
	return newContext(DryRun, runID, configDir)
}

func newContext(mode ExecutionMode, runID uuid.UUID, configDir string) *Context {
	return &Context{
		Mode:       mode,
		RunID:      runID,
		configDir:  configDir,
		sharedData: make(map[string]any),
		cliArgs:    make(map[string]string),
	}
}

// ConfigDir returns the configuration directory this run was started with.
func (c *Context) ConfigDir() string { return c.configDir }

// SetCLIArg records a CLI argument value for later stages to read.
func (c *Context) SetCLIArg(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cliArgs[key] = value
}

// GetCLIArg returns a previously recorded CLI argument.
func (c *Context) GetCLIArg(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.cliArgs[key]
	return v, ok
}

// SetData stores a value in the shared data bag under key, overwriting any
// existing entry.
func (c *Context) SetData(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sharedData[key] = value
}

// GetData returns the raw value stored under key.
func (c *Context) GetData(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sharedData[key]
	return v, ok
}

// IsDryRun reports whether this context is running in dry-run mode.
func (c *Context) IsDryRun() bool { return c.Mode.IsDryRun() }

// ExecuteLive runs f only when the context is in Live mode, for stages that
// guard a single side-effecting block behind one check.
func (c *Context) ExecuteLive(f func() error) error {
	if c.Mode.IsLive() {
		return f()
	}
	return nil
}

// GetContextData is a type-asserting convenience wrapper around
// Context.GetData. Go has no method type parameters, so this is a free
// function rather than a Context method.
func GetContextData[T any](c *Context, key string) (T, bool) {
	var zero T
	raw, ok := c.GetData(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
