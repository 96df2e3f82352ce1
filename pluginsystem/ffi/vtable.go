// Package ffi implements the stable C-ABI VTable contract and the dynamic
// loader that crosses into compiled plugin artifacts.
//
// Go cannot compile a literal extern "C" ABI without cgo, and this module
// must never require a cgo toolchain step to build or load a plugin. The
// dynamic loader is therefore built on Go's own standard-library "plugin"
// package (plugin.Open/.Lookup), generalized to a stricter VTable-shaped
// contract. runtime/cgo.Handle stands in for the opaque instance pointer:
// it is the standard library's own mechanism for a non-dereferenceable
// handle to a Go value, usable without cgo compilation.
//
// One real limitation this package does not hide: Go's plugin package has
// no dlclose equivalent. A loaded .so lives for the process's lifetime.
// Shim.Shutdown still calls VTable.Destroy before the library would be
// released, there is simply no release step to order it against on this
// platform.
package ffi

import "runtime/cgo"

// Instance is the opaque, non-dereferenceable handle a VTable's instance
// pointer is modeled as.
type Instance = cgo.Handle

// FfiResult is the status code every VTable function returns across the
// FFI boundary.
type FfiResult int

const (
	Ok FfiResult = iota
	Err
	NullPointer
	Utf8Error
	InvalidData
)

func (r FfiResult) String() string {
	switch r {
	case Ok:
		return "Ok"
	case Err:
		return "Err"
	case NullPointer:
		return "NullPointer"
	case Utf8Error:
		return "Utf8Error"
	case InvalidData:
		return "InvalidData"
	default:
		return "Unknown"
	}
}

// WirePriority is the packed {category, value} priority struct the VTable
// carries across the boundary.
type WirePriority struct {
	Category uint8
	Value    uint8
}

// WireDependency mirrors FfiPluginDependency: {name, version_constraint?, required}.
type WireDependency struct {
	Name              string
	VersionConstraint string // empty means "any version"
	Required          bool
}

// WireStageRequirement mirrors FfiStageRequirement.
type WireStageRequirement struct {
	StageID  string
	Required bool
	Provided bool
}

// VTable is the function-pointer table a plugin's _plugin_init symbol
// returns, one field per C-ABI function a plugin must export. Every
// string/slice-returning getter is paired with a Free* field; the default
// Go-to-Go shim's Free* functions are no-ops (Go's GC reclaims the memory),
// but a plugin built against its own allocator has a place to release
// foreign memory, and callers MUST still invoke them to preserve the
// ownership contract.
type VTable struct {
	Instance Instance

	Destroy func(Instance)

	Name     func(Instance) (string, FfiResult)
	FreeName func(string)

	Version     func(Instance) (string, FfiResult)
	FreeVersion func(string)

	IsCore func(Instance) bool

	Priority func(Instance) (WirePriority, FfiResult)

	CompatibleAPIVersions     func(Instance) ([]string, FfiResult)
	FreeCompatibleAPIVersions func([]string)

	Dependencies     func(Instance) ([]WireDependency, FfiResult)
	FreeDependencies func([]WireDependency)

	RequiredStages     func(Instance) ([]WireStageRequirement, FfiResult)
	FreeRequiredStages func([]WireStageRequirement)

	ConflictsWith     func(Instance) ([]string, FfiResult)
	FreeConflictsWith func([]string)

	IncompatibleWith     func(Instance) ([]WireDependency, FfiResult)
	FreeIncompatibleWith func([]WireDependency)

	Init           func(instance Instance, hostApp any) FfiResult
	PreflightCheck func(instance Instance, hostContext any) FfiResult // synchronous; shim offloads it
	RegisterStages func(instance Instance, stageRegistry any) FfiResult
	Shutdown       func(instance Instance) FfiResult
}

// ToPriority clamps a wire-format priority into its declared band. This
// deliberately differs from manifest priority-string parsing (which
// rejects out-of-band values): a misbehaving compiled plugin crossing the
// ABI boundary should degrade gracefully on one cosmetic ordering field
// rather than fail the whole load, whereas a malformed manifest on disk is
// a loud authoring error.
func (w WirePriority) ToPriority() (band int, value uint8) {
	clamp := func(v, lo, hi uint8) uint8 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	switch w.Category {
	case 0:
		return 0, clamp(w.Value, 0, 10)
	case 1:
		return 1, clamp(w.Value, 11, 50)
	case 2:
		return 2, clamp(w.Value, 51, 100)
	case 3:
		return 3, clamp(w.Value, 101, 150)
	case 4:
		return 4, clamp(w.Value, 151, 200)
	default:
		return 5, clamp(w.Value, 201, 255)
	}
}
