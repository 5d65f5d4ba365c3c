// Package workspace isolates each invocation in its own run directory.
//
// Prepare stages fresh copies of the declarative sources (terraform
// templates, Ansible playbooks) under a timestamped directory so that a run
// never starts from a previous run's derived provider state. Prune bounds
// how many of those directories are retained.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"

	"github.com/kubeci-dev/ciprov/internal/util/naming"
)

// KubeconfigName is the run-scoped credential file inside each run directory.
const KubeconfigName = "kubeconfig"

// Source is a directory tree staged into every run.
type Source struct {
	// Name is the subdirectory created inside the run directory.
	Name string
	// Path is the directory on disk to copy from.
	Path string
}

// RunContext identifies one invocation. It is created by Prepare and passed
// explicitly to every component that needs run-scoped paths.
type RunContext struct {
	ID             string
	Dir            string
	KubeconfigPath string
	// SourceDirs maps Source.Name to its staged copy.
	SourceDirs map[string]string
	// Env is appended to the environment of every external command.
	Env []string
}

// SourceDir returns the staged copy of the named source.
func (r *RunContext) SourceDir(name string) string {
	return r.SourceDirs[name]
}

// WithEnv adds KEY=VALUE pairs to the run environment.
func (r *RunContext) WithEnv(kv ...string) {
	r.Env = append(r.Env, kv...)
}

// Manager creates and retires run directories under Root.
type Manager struct {
	Root    string
	Sources []Source

	// PluginCacheDir is the shared terraform provider plugin cache.
	PluginCacheDir   string
	ClearPluginCache bool

	Logger logr.Logger

	now       func() time.Time
	removeAll func(string) error
}

// NewManager creates a manager rooted at root.
func NewManager(root string, sources []Source, logger logr.Logger) *Manager {
	return &Manager{
		Root:      root,
		Sources:   sources,
		Logger:    logger,
		now:       time.Now,
		removeAll: os.RemoveAll,
	}
}

// Prepare allocates a new run directory and stages every source into it.
func (m *Manager) Prepare() (*RunContext, error) {
	for _, src := range m.Sources {
		if _, err := os.ReadDir(src.Path); err != nil {
			return nil, errors.Wrapf(err, "source %s is not readable", src.Name)
		}
	}

	if err := os.MkdirAll(m.Root, 0o750); err != nil {
		return nil, errors.Wrapf(err, "failed to create run root %s", m.Root)
	}

	id := naming.RunDir(m.now())
	dir := filepath.Join(m.Root, id)
	// Mkdir rather than MkdirAll so a collision fails instead of sharing.
	if err := os.Mkdir(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "failed to create run directory %s", dir)
	}

	run := &RunContext{
		ID:             id,
		Dir:            dir,
		KubeconfigPath: filepath.Join(dir, KubeconfigName),
		SourceDirs:     make(map[string]string, len(m.Sources)),
	}

	for _, src := range m.Sources {
		dst := filepath.Join(dir, src.Name)
		if err := copyTree(src.Path, dst); err != nil {
			return nil, errors.Wrapf(err, "failed to stage %s", src.Name)
		}
		run.SourceDirs[src.Name] = dst
	}

	if m.ClearPluginCache && m.PluginCacheDir != "" {
		m.clearPluginCache()
	}

	m.Logger.Info("prepared run directory", "run", id, "dir", dir)
	return run, nil
}

// clearPluginCache empties the shared provider cache. Failures are logged.
func (m *Manager) clearPluginCache() {
	entries, err := os.ReadDir(m.PluginCacheDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.Logger.Error(err, "failed to read plugin cache", "dir", m.PluginCacheDir)
		}
		return
	}
	for _, e := range entries {
		p := filepath.Join(m.PluginCacheDir, e.Name())
		if err := m.removeAll(p); err != nil {
			m.Logger.Error(err, "failed to clear plugin cache entry", "path", p)
		}
	}
	m.Logger.V(1).Info("cleared plugin cache", "dir", m.PluginCacheDir)
}

// excluded reports whether a path holds cached provider state.
func excluded(name string, isDir bool) bool {
	if isDir {
		return name == ".terraform"
	}
	return strings.HasPrefix(name, "terraform.tfstate")
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if rel != "." && excluded(d.Name(), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			// Symlinks and special files are not part of declared sources.
			return nil
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	data, err := os.ReadFile(src) // #nosec G304 - walking a configured source tree
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, perm)
}

// List returns the retained run directory names, newest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list %s", m.Root)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && naming.IsRunDir(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// PruneResult reports what a pruning pass did.
type PruneResult struct {
	Kept    []string
	Removed []string
	Failed  []string
}

// PruneError aggregates per-directory removal failures.
type PruneError struct {
	Errs map[string]error
}

func (e *PruneError) Error() string {
	names := make([]string, 0, len(e.Errs))
	for name := range e.Errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return "failed to remove stale runs: " + strings.Join(names, ", ")
}

// Prune keeps the maxRuns most recent run directories and removes the rest.
// A failing removal is logged and does not stop the others; the returned
// error then lists every directory that could not be removed.
func (m *Manager) Prune(maxRuns int) (PruneResult, error) {
	if maxRuns < 1 {
		return PruneResult{}, errors.Newf("maxRuns must be at least 1, got %d", maxRuns)
	}

	names, err := m.List()
	if err != nil {
		return PruneResult{}, err
	}

	var res PruneResult
	if len(names) <= maxRuns {
		res.Kept = names
		return res, nil
	}
	res.Kept = names[:maxRuns]

	failures := make(map[string]error)
	for _, name := range names[maxRuns:] {
		p := filepath.Join(m.Root, name)
		if err := m.removeAll(p); err != nil {
			m.Logger.Error(err, "failed to remove stale run", "run", name)
			failures[name] = err
			res.Failed = append(res.Failed, name)
			continue
		}
		m.Logger.V(1).Info("removed stale run", "run", name)
		res.Removed = append(res.Removed, name)
	}

	if len(failures) > 0 {
		return res, &PruneError{Errs: failures}
	}
	return res, nil
}
