package ffi

import (
	"fmt"
	"path/filepath"
	plug "plugin"

	"github.com/kunihir0/gini-sub000/internal/pluginlog"
)

const initSymbol = "_plugin_init"

// Loader opens shared-library plugin artifacts and constructs Shims from
// their VTable, generalizing a simple func()PluginHandler factory lookup
// into a manifest-driven _plugin_init VTable contract.
type Loader struct{}

// NewLoader constructs a dynamic loader.
func NewLoader() *Loader { return &Loader{} }

// Load opens baseDir/entryPoint, resolves its _plugin_init symbol, and
// invokes it inside a panic-isolating boundary. A null VTable, a missing
// symbol, a panicking initializer, or an init returning a non-Ok result
// all map to a LoadingError annotated with pluginID and the library path.
func (l *Loader) Load(pluginID, baseDir, entryPoint string) (shim *Shim, err error) {
	path := filepath.Join(baseDir, entryPoint)
	log := pluginlog.FFI()

	defer func() {
		if r := recover(); r != nil {
			err = &LoadingError{PluginID: pluginID, Path: path, Cause: fmt.Errorf("panic during load: %v", r)}
		}
	}()

	p, openErr := plug.Open(path)
	if openErr != nil {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: openErr}
	}

	sym, lookupErr := p.Lookup(initSymbol)
	if lookupErr != nil {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: fmt.Errorf("symbol %s not found: %w", initSymbol, lookupErr)}
	}

	initFn, ok := sym.(func() *VTable)
	if !ok {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: fmt.Errorf("symbol %s has unexpected signature", initSymbol)}
	}

	vt := initFn()
	if vt == nil {
		return nil, &LoadingError{PluginID: pluginID, Path: path, Cause: fmt.Errorf("%s returned a null vtable", initSymbol)}
	}

	s, buildErr := newShim(pluginID, path, vt)
	if buildErr != nil {
		return nil, buildErr
	}
	log.Info().Str("plugin", pluginID).Str("path", path).Msg("dynamic plugin loaded")
	return s, nil
}
