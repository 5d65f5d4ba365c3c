// Package tfvars reads the flat name = "value" variable file shared by the
// terraform templates and the Ansible playbooks.
package tfvars

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Keys every run needs before it may touch anything external.
const (
	KeyProject     = "project"
	KeyZone        = "zone"
	KeyClusterName = "cluster_name"
	KeyDiskName    = "disk_name"
)

// RequiredKeys lists the variables that must be present and non-empty.
var RequiredKeys = []string{KeyProject, KeyZone, KeyClusterName}

// Variables is an immutable name -> value mapping.
type Variables struct {
	values map[string]string
}

// New builds Variables from a map. The map is copied.
func New(values map[string]string) Variables {
	m := make(map[string]string, len(values))
	for k, v := range values {
		m[k] = v
	}
	return Variables{values: m}
}

// maxLineSize bounds a single line; the scanner default of 64 KiB is too small
// for inlined keys or certificates.
const maxLineSize = 16 << 20

// Parse reads name = "value" lines. Lines without '=' are skipped.
// A later duplicate overrides an earlier one.
func Parse(r io.Reader) (Variables, error) {
	values := make(map[string]string)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		name, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		values[name] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	if err := scanner.Err(); err != nil {
		return Variables{}, errors.Wrap(err, "failed to read variables")
	}

	return Variables{values: values}, nil
}

// ParseFile parses the variable file at path.
func ParseFile(path string) (Variables, error) {
	f, err := os.Open(path) // #nosec G304 - path is the staged variables file
	if err != nil {
		return Variables{}, errors.Wrapf(err, "failed to open variables file %s", path)
	}
	defer func() { _ = f.Close() }()

	vars, err := Parse(f)
	if err != nil {
		return Variables{}, errors.Wrapf(err, "failed to parse %s", path)
	}
	return vars, nil
}

// Get returns the value for key and whether it was declared.
func (v Variables) Get(key string) (string, bool) {
	val, ok := v.values[key]
	return val, ok
}

// Value returns the value for key, or "" when undeclared.
func (v Variables) Value(key string) string {
	return v.values[key]
}

// ValueOr returns the value for key, or fallback when undeclared or empty.
func (v Variables) ValueOr(key, fallback string) string {
	if val := v.values[key]; val != "" {
		return val
	}
	return fallback
}

// Keys returns all declared names, sorted.
func (v Variables) Keys() []string {
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the underlying values.
func (v Variables) Map() map[string]string {
	m := make(map[string]string, len(v.values))
	for k, val := range v.values {
		m[k] = val
	}
	return m
}

// Len returns the number of declared variables.
func (v Variables) Len() int {
	return len(v.values)
}

// Project, Zone and ClusterName are shorthands for the required keys.
func (v Variables) Project() string     { return v.values[KeyProject] }
func (v Variables) Zone() string        { return v.values[KeyZone] }
func (v Variables) ClusterName() string { return v.values[KeyClusterName] }

// MissingKeysError lists required variables that were absent or empty.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required variables: " + strings.Join(e.Keys, ", ")
}

// Require checks that every key is declared with a non-empty value.
func (v Variables) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if v.values[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}
	return nil
}
