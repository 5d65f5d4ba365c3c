package tfvars

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	input := `# Jenkins on GKE
project = "demo-proj"
zone="us-central1-a"
  cluster_name   =   "ci-cluster"

disk_size = 50
machine_type = "e2-standard-4"
`
	vars, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "demo-proj", vars.Project())
	assert.Equal(t, "us-central1-a", vars.Zone())
	assert.Equal(t, "ci-cluster", vars.ClusterName())
	assert.Equal(t, "50", vars.Value("disk_size"))
	assert.Equal(t, []string{"cluster_name", "disk_size", "machine_type", "project", "zone"}, vars.Keys())
}

func TestParse_CommentWithoutEqualsIgnored(t *testing.T) {
	t.Parallel()

	vars, err := Parse(strings.NewReader("# comment\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, vars.Len())
}

func TestParse_SplitsOnFirstEquals(t *testing.T) {
	t.Parallel()

	vars, err := Parse(strings.NewReader(`labels = "team=ci"`))
	require.NoError(t, err)
	assert.Equal(t, "team=ci", vars.Value("labels"))
}

func TestParse_LongLine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 200*1024)
	vars, err := Parse(strings.NewReader("ssh_key = \"" + long + "\"\nzone = \"us-central1-a\"\n"))
	require.NoError(t, err)
	assert.Equal(t, long, vars.Value("ssh_key"))
	assert.Equal(t, "us-central1-a", vars.Zone())
}

func TestParse_LaterDuplicateWins(t *testing.T) {
	t.Parallel()

	vars, err := Parse(strings.NewReader("zone = \"a\"\nzone = \"b\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "b", vars.Zone())
}

func TestParseFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.tfvars"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open variables file")
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "variables.tfvars")
	require.NoError(t, os.WriteFile(path, []byte(`project = "demo-proj"`), 0o600))

	vars, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "demo-proj", vars.Project())
}

func TestRequire(t *testing.T) {
	t.Parallel()

	vars := New(map[string]string{"project": "p", "zone": ""})

	err := vars.Require(RequiredKeys...)
	require.Error(t, err)

	var missing *MissingKeysError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"zone", "cluster_name"}, missing.Keys)

	complete := New(map[string]string{"project": "p", "zone": "z", "cluster_name": "c"})
	assert.NoError(t, complete.Require(RequiredKeys...))
}

func TestVariables_Immutable(t *testing.T) {
	t.Parallel()

	src := map[string]string{"project": "p"}
	vars := New(src)
	src["project"] = "changed"

	m := vars.Map()
	m["project"] = "changed too"

	assert.Equal(t, "p", vars.Project())
	assert.Equal(t, "fallback", vars.ValueOr("disk_name", "fallback"))
}
