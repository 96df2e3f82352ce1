package manifest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/kunihir0/gini-sub000/internal/pluginlog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const manifestFilename = "manifest.json"

// Loader scans a set of plugin root directories for manifest.json files
// and caches the parsed result keyed by plugin id.
type Loader struct {
	mu        sync.Mutex
	roots     []string
	manifests map[string]*Manifest
}

// NewLoader constructs a loader over the given plugin root directories.
func NewLoader(roots ...string) *Loader {
	return &Loader{roots: append([]string(nil), roots...), manifests: make(map[string]*Manifest)}
}

// AddRoot appends another directory to scan on the next ScanAll call.
func (l *Loader) AddRoot(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roots = append(l.roots, dir)
}

// Manifests returns the cached parsed manifests from the most recent scan.
func (l *Loader) Manifests() map[string]*Manifest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]*Manifest, len(l.manifests))
	for k, v := range l.manifests {
		out[k] = v
	}
	return out
}

// ScanAll scans every root concurrently — each root only appends to its own
// slice of results, which are merged afterward, so concurrent scanning is
// safe — and returns the merged manifest set. A root that does not exist is
// not an error: it is logged once and skipped. Duplicate ids across roots:
// last-scanned wins, but every collision is logged.
func (l *Loader) ScanAll() (map[string]*Manifest, error) {
	l.mu.Lock()
	roots := append([]string(nil), l.roots...)
	l.mu.Unlock()

	perRoot := make([][]*Manifest, len(roots))
	g := new(errgroup.Group)
	for i, root := range roots {
		i, root := i, root
		g.Go(func() error {
			found, err := scanRoot(root)
			if err != nil {
				return err
			}
			perRoot[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.manifests = make(map[string]*Manifest)
	for _, found := range perRoot {
		for _, m := range found {
			if existing, dup := l.manifests[m.ID]; dup {
				pluginlog.Loader().Warn().
					Str("plugin", m.ID).
					Str("previous_dir", existing.PluginBaseDir).
					Str("new_dir", m.PluginBaseDir).
					Msg("duplicate manifest id across plugin roots, last-scanned wins")
			}
			mCopy := *m
			l.manifests[m.ID] = &mCopy
		}
	}

	out := make(map[string]*Manifest, len(l.manifests))
	for k, v := range l.manifests {
		out[k] = v
	}
	return out, nil
}

// scanRoot recursively finds every manifest.json beneath root. A missing
// or non-directory root is skipped, not an error.
func scanRoot(root string) ([]*Manifest, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			pluginlog.Loader().Info().Str("root", root).Msg("plugin root does not exist, skipping")
			return nil, nil
		}
		pluginlog.Loader().Warn().Err(err).Str("root", root).Msg("failed to stat plugin root, skipping")
		return nil, nil
	}
	if !info.IsDir() {
		pluginlog.Loader().Warn().Str("root", root).Msg("plugin root is not a directory, skipping")
		return nil, nil
	}

	var found []*Manifest
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			pluginlog.Loader().Warn().Err(walkErr).Str("path", path).Msg("error walking plugin directory, skipping entry")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() != manifestFilename {
			return nil
		}
		m, err := loadManifestFile(path)
		if err != nil {
			pluginlog.Loader().Warn().Err(err).Str("path", path).Msg("failed to load manifest, skipping")
			return nil
		}
		found = append(found, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return found, nil
}

func loadManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest %s: missing required field \"id\"", path)
	}
	if m.EntryPoint == "" {
		m.EntryPoint = DefaultEntryPoint(m.ID)
	}
	m.PluginBaseDir = filepath.Dir(path)
	return &m, nil
}

// LoadConfigSchemaDoc reads a plugin's declared config_schema document for
// informational display/tooling purposes. This is NOT schema validation of
// user configuration — it simply decodes the document so a host UI or CLI
// can show it. YAML is supported alongside JSON since plugin ecosystems
// commonly document config schemas in either format.
func LoadConfigSchemaDoc(m *Manifest) (map[string]any, error) {
	if m.ConfigSchema == "" {
		return nil, nil
	}
	path := m.ConfigSchema
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.PluginBaseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config schema %s: %w", path, err)
	}
	doc := map[string]any{}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing config schema %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing config schema %s: %w", path, err)
		}
	}
	return doc, nil
}
