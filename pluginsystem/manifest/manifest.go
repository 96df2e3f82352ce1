// Package manifest defines the declarative manifest.json colocated with
// every plugin bundle, and the disk scanner that discovers and parses it.
package manifest

import "fmt"

// RawDependency is a dependency entry as it appears inside a manifest's
// dependencies or incompatible_with arrays.
type RawDependency struct {
	ID           string `json:"id"`
	VersionRange string `json:"version_range,omitempty"`
	Required     bool   `json:"required,omitempty"`
}

// Manifest is the parsed, in-memory representation of a plugin's
// manifest.json, enriched with the directory it was found in
// (PluginBaseDir) so the FFI loader can locate EntryPoint on disk.
type Manifest struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Version          string          `json:"version"`
	Description      string          `json:"description,omitempty"`
	Author           string          `json:"author,omitempty"`
	Website          string          `json:"website,omitempty"`
	License          string          `json:"license,omitempty"`
	APIVersions      []string        `json:"api_versions,omitempty"`
	Dependencies     []RawDependency `json:"dependencies,omitempty"`
	IsCore           bool            `json:"is_core,omitempty"`
	Priority         string          `json:"priority,omitempty"`
	EntryPoint       string          `json:"entry_point,omitempty"`
	Files            []string        `json:"files,omitempty"`
	ConfigSchema     string          `json:"config_schema,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	ConflictsWith    []string        `json:"conflicts_with,omitempty"`
	IncompatibleWith []RawDependency `json:"incompatible_with,omitempty"`

	// PluginBaseDir is not part of the wire format; it is stamped by the
	// loader at scan time from the directory manifest.json was found in.
	PluginBaseDir string `json:"-"`
}

// DefaultEntryPoint derives the shared-library filename lib<id>.so for a
// plugin id when manifest.json omits entry_point. The same .so name is
// used on every platform.
func DefaultEntryPoint(id string) string {
	return fmt.Sprintf("lib%s.so", id)
}

// Builder fluently constructs a Manifest — useful for native-plugin
// authoring and for tests that build manifests inline instead of from JSON
// fixtures.
type Builder struct {
	m Manifest
}

// NewBuilder starts a builder with the three required fields.
func NewBuilder(id, name, version string) *Builder {
	return &Builder{m: Manifest{ID: id, Name: name, Version: version}}
}

func (b *Builder) Description(d string) *Builder    { b.m.Description = d; return b }
func (b *Builder) Author(a string) *Builder         { b.m.Author = a; return b }
func (b *Builder) Website(w string) *Builder        { b.m.Website = w; return b }
func (b *Builder) License(l string) *Builder        { b.m.License = l; return b }
func (b *Builder) APIVersion(constraint string) *Builder {
	b.m.APIVersions = append(b.m.APIVersions, constraint)
	return b
}
func (b *Builder) Dependency(dep RawDependency) *Builder {
	b.m.Dependencies = append(b.m.Dependencies, dep)
	return b
}
func (b *Builder) IsCore(core bool) *Builder             { b.m.IsCore = core; return b }
func (b *Builder) Priority(p string) *Builder             { b.m.Priority = p; return b }
func (b *Builder) EntryPoint(ep string) *Builder          { b.m.EntryPoint = ep; return b }
func (b *Builder) File(f string) *Builder                 { b.m.Files = append(b.m.Files, f); return b }
func (b *Builder) ConfigSchema(path string) *Builder      { b.m.ConfigSchema = path; return b }
func (b *Builder) Tag(tag string) *Builder                { b.m.Tags = append(b.m.Tags, tag); return b }
func (b *Builder) ConflictsWith(id string) *Builder {
	b.m.ConflictsWith = append(b.m.ConflictsWith, id)
	return b
}
func (b *Builder) IncompatibleWith(dep RawDependency) *Builder {
	b.m.IncompatibleWith = append(b.m.IncompatibleWith, dep)
	return b
}
func (b *Builder) PluginBaseDir(dir string) *Builder { b.m.PluginBaseDir = dir; return b }

// Build finalizes the manifest, filling EntryPoint with its default when
// absent.
func (b *Builder) Build() Manifest {
	m := b.m
	if m.EntryPoint == "" {
		m.EntryPoint = DefaultEntryPoint(m.ID)
	}
	return m
}
