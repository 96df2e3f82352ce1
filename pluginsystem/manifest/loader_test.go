package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, id string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := `{"id":"` + id + `","name":"` + id + `","version":"1.0.0"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFilename), []byte(content), 0o644))
}

func TestScanAllFindsNestedManifests(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "a"), "plugin-a")
	writeManifest(t, filepath.Join(root, "nested", "deep", "b"), "plugin-b")

	l := NewLoader(root)
	found, err := l.ScanAll()
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, "plugin-a")
	assert.Contains(t, found, "plugin-b")
	assert.Equal(t, DefaultEntryPoint("plugin-a"), found["plugin-a"].EntryPoint)
}

func TestScanAllMissingRootIsNotAnError(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "does-not-exist"))
	found, err := l.ScanAll()
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestScanAllDuplicateIDLastWins(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeManifest(t, filepath.Join(rootA, "x"), "dup")
	writeManifest(t, filepath.Join(rootB, "y"), "dup")

	l := NewLoader(rootA, rootB)
	found, err := l.ScanAll()
	require.NoError(t, err)
	require.Contains(t, found, "dup")
}

func TestBuilderDefaultsEntryPoint(t *testing.T) {
	m := NewBuilder("demo", "Demo", "1.0.0").Build()
	assert.Equal(t, "libdemo.so", m.EntryPoint)
}
