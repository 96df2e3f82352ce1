package pluginsystem

import (
	"fmt"

	"github.com/kunihir0/gini-sub000/pluginsystem/semver"
)

// Dependency declares that a plugin needs another plugin, optionally
// constrained to a version range. Range == nil means any version is
// acceptable. Required == false marks the dependency optional: it is
// excluded from cycle edges and from "missing" failures.
type Dependency struct {
	TargetID string
	Range    *semver.Range
	Required bool
}

// NewRequiredDependency declares a mandatory dependency with a version range.
func NewRequiredDependency(targetID string, r semver.Range) Dependency {
	return Dependency{TargetID: targetID, Range: &r, Required: true}
}

// NewRequiredAnyDependency declares a mandatory dependency on any version.
func NewRequiredAnyDependency(targetID string) Dependency {
	return Dependency{TargetID: targetID, Required: true}
}

// NewOptionalDependency declares an optional dependency with a version range.
func NewOptionalDependency(targetID string, r semver.Range) Dependency {
	return Dependency{TargetID: targetID, Range: &r, Required: false}
}

// NewOptionalAnyDependency declares an optional dependency on any version.
func NewOptionalAnyDependency(targetID string) Dependency {
	return Dependency{TargetID: targetID, Required: false}
}

// IsCompatibleWith reports whether versionStr satisfies the dependency's
// range (or is accepted unconditionally when no range was declared).
func (d Dependency) IsCompatibleWith(versionStr string) (bool, error) {
	if d.Range == nil {
		return true, nil
	}
	v, err := semver.Parse(versionStr)
	if err != nil {
		return false, err
	}
	return d.Range.Admits(v), nil
}

// String renders a human-readable description for logs and error messages.
func (d Dependency) String() string {
	kind := "Optional"
	if d.Required {
		kind = "Requires"
	}
	if d.Range == nil {
		return fmt.Sprintf("%s plugin: %s (any version)", kind, d.TargetID)
	}
	return fmt.Sprintf("%s plugin: %s (version: %s)", kind, d.TargetID, d.Range.String())
}
