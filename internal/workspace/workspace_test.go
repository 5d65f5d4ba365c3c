package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeci-dev/ciprov/internal/util/naming"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newSources(t *testing.T) []Source {
	t.Helper()
	base := t.TempDir()

	tf := filepath.Join(base, "terraform")
	writeFile(t, filepath.Join(tf, "main.tf"), `resource "google_compute_disk" "jenkins_disk" {}`)
	writeFile(t, filepath.Join(tf, "variables.tfvars"), `project = "demo-proj"`)
	writeFile(t, filepath.Join(tf, ".terraform.lock.hcl"), "# lock")
	writeFile(t, filepath.Join(tf, "terraform.tfstate"), "{}")
	writeFile(t, filepath.Join(tf, "terraform.tfstate.backup"), "{}")
	writeFile(t, filepath.Join(tf, ".terraform", "providers", "google"), "binary")

	ans := filepath.Join(base, "ansible")
	writeFile(t, filepath.Join(ans, "deploy_jenkins.yml"), "- hosts: all")
	writeFile(t, filepath.Join(ans, "templates", "values.yaml"), "controller: {}")

	return []Source{{Name: "terraform", Path: tf}, {Name: "ansible", Path: ans}}
}

func TestPrepare_StagesSourcesWithoutProviderState(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m := NewManager(root, newSources(t), logr.Discard())

	run, err := m.Prepare()
	require.NoError(t, err)

	assert.True(t, naming.IsRunDir(run.ID))
	assert.Equal(t, filepath.Join(root, run.ID), run.Dir)
	assert.Equal(t, filepath.Join(run.Dir, KubeconfigName), run.KubeconfigPath)

	tf := run.SourceDir("terraform")
	assert.FileExists(t, filepath.Join(tf, "main.tf"))
	assert.FileExists(t, filepath.Join(tf, "variables.tfvars"))
	assert.FileExists(t, filepath.Join(tf, ".terraform.lock.hcl"))
	assert.NoFileExists(t, filepath.Join(tf, "terraform.tfstate"))
	assert.NoFileExists(t, filepath.Join(tf, "terraform.tfstate.backup"))
	assert.NoDirExists(t, filepath.Join(tf, ".terraform"))

	assert.FileExists(t, filepath.Join(run.SourceDir("ansible"), "templates", "values.yaml"))
}

func TestPrepare_UnreadableSourceFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m := NewManager(root, []Source{{Name: "terraform", Path: filepath.Join(root, "missing")}}, logr.Discard())

	_, err := m.Prepare()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source terraform is not readable")

	names, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, names, "no run directory is created when sources are unreadable")
}

func TestPrepare_DistinctRunsForSameInstant(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	m := NewManager(t.TempDir(), newSources(t), logr.Discard())
	m.now = func() time.Time { return fixed }

	a, err := m.Prepare()
	require.NoError(t, err)
	b, err := m.Prepare()
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir, b.Dir)
	assert.NotEqual(t, a.KubeconfigPath, b.KubeconfigPath)
}

func TestPrepare_ClearsPluginCache(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	writeFile(t, filepath.Join(cache, "registry.terraform.io", "hashicorp", "google", "bin"), "x")

	m := NewManager(t.TempDir(), newSources(t), logr.Discard())
	m.PluginCacheDir = cache
	m.ClearPluginCache = true

	_, err := m.Prepare()
	require.NoError(t, err)

	entries, err := os.ReadDir(cache)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.DirExists(t, cache)
}

func makeRuns(t *testing.T, root string, n int) []string {
	t.Helper()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := naming.RunDir(base.Add(time.Duration(i) * time.Hour))
		writeFile(t, filepath.Join(root, name, KubeconfigName), "apiVersion: v1")
		names = append(names, name)
	}
	return names
}

func TestPrune_KeepsMostRecent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	names := makeRuns(t, root, 8)
	require.NoError(t, os.Mkdir(filepath.Join(root, "unrelated"), 0o750))

	m := NewManager(root, nil, logr.Discard())
	res, err := m.Prune(5)
	require.NoError(t, err)

	assert.Len(t, res.Removed, 3)
	remaining, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{names[7], names[6], names[5], names[4], names[3]}, remaining)
	assert.DirExists(t, filepath.Join(root, "unrelated"))
}

func TestPrune_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	names := makeRuns(t, root, 8)

	m := NewManager(root, nil, logr.Discard())
	stuck := filepath.Join(root, names[1])
	m.removeAll = func(p string) error {
		if p == stuck {
			return errors.New("device busy")
		}
		return os.RemoveAll(p)
	}

	res, err := m.Prune(5)
	require.Error(t, err)

	var pruneErr *PruneError
	require.True(t, errors.As(err, &pruneErr))
	assert.Contains(t, pruneErr.Errs, names[1])

	assert.ElementsMatch(t, []string{names[0], names[2]}, res.Removed)
	assert.Equal(t, []string{names[1]}, res.Failed)
	assert.Equal(t, []string{names[7], names[6], names[5], names[4], names[3]}, res.Kept)

	assert.NoDirExists(t, filepath.Join(root, names[0]))
	assert.NoDirExists(t, filepath.Join(root, names[2]))
	assert.DirExists(t, stuck)
	for _, kept := range names[3:] {
		assert.DirExists(t, filepath.Join(root, kept))
	}
}

func TestPrune_FewerThanMax(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	makeRuns(t, root, 2)

	res, err := NewManager(root, nil, logr.Discard()).Prune(5)
	require.NoError(t, err)
	assert.Len(t, res.Kept, 2)
	assert.Empty(t, res.Removed)
}

func TestPrune_InvalidMax(t *testing.T) {
	t.Parallel()

	_, err := NewManager(t.TempDir(), nil, logr.Discard()).Prune(0)
	assert.Error(t, err)
}

func TestList_MissingRoot(t *testing.T) {
	t.Parallel()

	names, err := NewManager(filepath.Join(t.TempDir(), "absent"), nil, logr.Discard()).List()
	require.NoError(t, err)
	assert.Empty(t, names)
}
