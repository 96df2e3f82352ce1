package pluginsystem

import (
	"fmt"
	"sort"
)

// ConflictType tags why two plugins cannot coexist. Custom carries a label
// for taxonomy extensions the core doesn't otherwise name.
type ConflictType struct {
	kind   conflictKind
	custom string
}

type conflictKind int

const (
	MutuallyExclusive conflictKind = iota
	DependencyVersion
	ResourceConflict
	PartialOverlap
	ExplicitlyIncompatible
	customConflict
)

func NewConflictType(kind conflictKind) ConflictType { return ConflictType{kind: kind} }

// CustomConflict builds a Custom(label) conflict type.
func CustomConflict(label string) ConflictType { return ConflictType{kind: customConflict, custom: label} }

// Critical reports whether this conflict type blocks initialization by
// default. True for every kind except PartialOverlap and Custom.
func (c ConflictType) Critical() bool {
	switch c.kind {
	case PartialOverlap, customConflict:
		return false
	default:
		return true
	}
}

// Description renders a human-readable explanation of the conflict kind.
func (c ConflictType) Description() string {
	switch c.kind {
	case MutuallyExclusive:
		return "plugins are mutually exclusive and cannot both be enabled"
	case DependencyVersion:
		return "plugins require incompatible versions of a shared dependency"
	case ResourceConflict:
		return "plugins claim the same exclusive resource"
	case PartialOverlap:
		return "plugins provide overlapping, non-exclusive functionality"
	case ExplicitlyIncompatible:
		return "plugins have explicitly declared each other incompatible"
	case customConflict:
		return c.custom
	default:
		return "unknown conflict"
	}
}

func (c ConflictType) String() string {
	switch c.kind {
	case MutuallyExclusive:
		return "MutuallyExclusive"
	case DependencyVersion:
		return "DependencyVersion"
	case ResourceConflict:
		return "ResourceConflict"
	case PartialOverlap:
		return "PartialOverlap"
	case ExplicitlyIncompatible:
		return "ExplicitlyIncompatible"
	default:
		return fmt.Sprintf("Custom(%s)", c.custom)
	}
}

// ResolutionStrategy names how an operator chose to resolve a conflict.
type ResolutionStrategy struct {
	kind   resolutionKind
	custom string
}

type resolutionKind int

const (
	DisableFirst resolutionKind = iota
	DisableSecond
	ManualConfiguration
	CompatibilityLayer
	Merge
	AllowWithWarning
	customResolution
)

func NewResolutionStrategy(kind resolutionKind) ResolutionStrategy {
	return ResolutionStrategy{kind: kind}
}

// CustomResolution builds a Custom(label) resolution strategy.
func CustomResolution(label string) ResolutionStrategy {
	return ResolutionStrategy{kind: customResolution, custom: label}
}

// Conflict records a conflict between two plugins and, once resolved, how.
type Conflict struct {
	FirstID, SecondID string
	Type              ConflictType
	Description       string
	Resolved          bool
	Resolution        *ResolutionStrategy
}

// NewConflict constructs an unresolved conflict record.
func NewConflict(first, second string, t ConflictType, description string) Conflict {
	return Conflict{FirstID: first, SecondID: second, Type: t, Description: description}
}

// Resolve marks the conflict resolved with the given strategy.
func (c *Conflict) Resolve(strategy ResolutionStrategy) {
	c.Resolved = true
	c.Resolution = &strategy
}

// IsCritical reports whether the conflict blocks init while unresolved.
func (c Conflict) IsCritical() bool { return !c.Resolved && c.Type.Critical() }

// ConflictManager is pure bookkeeping over a list of conflict records.
type ConflictManager struct {
	conflicts []Conflict
}

// NewConflictManager returns an empty manager.
func NewConflictManager() *ConflictManager { return &ConflictManager{} }

// AddConflict appends a new conflict record and returns its index.
func (m *ConflictManager) AddConflict(c Conflict) int {
	m.conflicts = append(m.conflicts, c)
	return len(m.conflicts) - 1
}

// Conflicts returns every recorded conflict.
func (m *ConflictManager) Conflicts() []Conflict { return m.conflicts }

// UnresolvedConflicts returns conflicts not yet marked resolved.
func (m *ConflictManager) UnresolvedConflicts() []Conflict {
	var out []Conflict
	for _, c := range m.conflicts {
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out
}

// CriticalUnresolvedConflicts returns unresolved conflicts whose type is
// critical.
func (m *ConflictManager) CriticalUnresolvedConflicts() []Conflict {
	var out []Conflict
	for _, c := range m.conflicts {
		if c.IsCritical() {
			out = append(out, c)
		}
	}
	return out
}

// HasConflictBetween reports whether any record (in either orientation)
// exists between the unordered pair (first, second).
func (m *ConflictManager) HasConflictBetween(first, second string) bool {
	for _, c := range m.conflicts {
		if (c.FirstID == first && c.SecondID == second) || (c.FirstID == second && c.SecondID == first) {
			return true
		}
	}
	return false
}

// ResolveConflict marks the conflict at index resolved with strategy.
func (m *ConflictManager) ResolveConflict(index int, strategy ResolutionStrategy) error {
	if index < 0 || index >= len(m.conflicts) {
		return fmt.Errorf("conflict index %d out of range", index)
	}
	m.conflicts[index].Resolve(strategy)
	return nil
}

// AllCriticalConflictsResolved reports whether every critical conflict has
// been resolved.
func (m *ConflictManager) AllCriticalConflictsResolved() bool {
	for _, c := range m.conflicts {
		if !c.Resolved && c.Type.Critical() {
			return false
		}
	}
	return true
}

// PluginsToDisable collects the plugin ids named by resolved
// DisableFirst/DisableSecond strategies, sorted and deduplicated.
func (m *ConflictManager) PluginsToDisable() []string {
	set := map[string]struct{}{}
	for _, c := range m.conflicts {
		if !c.Resolved || c.Resolution == nil {
			continue
		}
		switch c.Resolution.kind {
		case DisableFirst:
			set[c.FirstID] = struct{}{}
		case DisableSecond:
			set[c.SecondID] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DetectConflicts walks every unordered pair of enabled plugins in reg and
// records MutuallyExclusive conflicts from explicit ConflictsWith lists and
// ExplicitlyIncompatible conflicts from IncompatibleWith version ranges.
// ResourceConflict detection is an intentional stub: it would depend on a
// resource-claim registry that does not exist yet, so this pass records
// nothing for that kind rather than inventing one.
func (m *ConflictManager) DetectConflicts(reg *Registry) {
	ids := reg.EnabledIDs()
	sort.Strings(ids)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if m.HasConflictBetween(a, b) {
				continue
			}
			pa, _ := reg.Get(a)
			pb, _ := reg.Get(b)
			if pa == nil || pb == nil {
				continue
			}
			if containsID(pa.ConflictsWith(), b) || containsID(pb.ConflictsWith(), a) {
				m.AddConflict(NewConflict(a, b, NewConflictType(MutuallyExclusive),
					fmt.Sprintf("%s and %s declare each other in conflicts_with", a, b)))
				continue
			}
			if incompatibleWith(pa, b, pb.Version()) || incompatibleWith(pb, a, pa.Version()) {
				m.AddConflict(NewConflict(a, b, NewConflictType(ExplicitlyIncompatible),
					fmt.Sprintf("%s and %s declare an incompatible version range against each other", a, b)))
			}
		}
	}
}

func containsID(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func incompatibleWith(p Plugin, otherID string, otherVersion string) bool {
	for _, dep := range p.IncompatibleWith() {
		if dep.TargetID != otherID {
			continue
		}
		ok, err := dep.IsCompatibleWith(otherVersion)
		if err == nil && ok {
			return true
		}
	}
	return false
}
