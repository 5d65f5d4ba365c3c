package kubecontext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeci-dev/ciprov/internal/gateway/gatewaytest"
	"github.com/kubeci-dev/ciprov/internal/provisioning"
	citesting "github.com/kubeci-dev/ciprov/internal/testing"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

const rawKubeconfig = `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://34.1.2.3
  name: gke_demo-proj_us-central1-a_ci-cluster
contexts:
- context:
    cluster: gke_demo-proj_us-central1-a_ci-cluster
    user: gke_demo-proj_us-central1-a_ci-cluster
  name: gke_demo-proj_us-central1-a_ci-cluster
current-context: some-other-context
users:
- name: gke_demo-proj_us-central1-a_ci-cluster
  user:
    token: secret
`

var target = Target{Project: "demo-proj", Zone: "us-central1-a", Cluster: "ci-cluster"}

func newBinder(t *testing.T, fake *gatewaytest.Fake) (*Binder, *citesting.RecordingObserver) {
	t.Helper()
	obs := citesting.NewRecordingObserver()
	run := &workspace.RunContext{Dir: t.TempDir()}
	run.KubeconfigPath = filepath.Join(run.Dir, workspace.KubeconfigName)
	return NewBinder(fake, run, "", obs), obs
}

func TestContextName(t *testing.T) {
	t.Parallel()
	b, _ := newBinder(t, gatewaytest.New())
	assert.Equal(t, "gke_demo-proj_us-central1-a_ci-cluster", b.ContextName(target))
}

func TestBind(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().
		On("kubectl config view --raw", gatewaytest.Response{Stdout: rawKubeconfig})
	b, obs := newBinder(t, fake)

	require.NoError(t, b.Bind(context.Background(), target))

	written, err := os.ReadFile(b.Run.KubeconfigPath)
	require.NoError(t, err)
	assert.Equal(t, rawKubeconfig, string(written), "raw configuration is persisted verbatim")

	info, err := os.Stat(b.Run.KubeconfigPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Equal(t, []string{
		"gcloud container clusters get-credentials ci-cluster --zone us-central1-a --project demo-proj",
		"kubectl config view --raw",
		"kubectl config use-context gke_demo-proj_us-central1-a_ci-cluster --kubeconfig " + b.Run.KubeconfigPath,
	}, fake.CallsWithPrefix(""))
	assert.Empty(t, obs.EventsOfType(provisioning.EventValidationWarning))
}

func TestBind_NeverTouchesSharedKubeconfig(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().
		On("kubectl config view --raw", gatewaytest.Response{Stdout: rawKubeconfig})
	b, _ := newBinder(t, fake)

	require.NoError(t, b.Bind(context.Background(), target))

	for _, c := range fake.CallsWithPrefix("kubectl config use-context") {
		assert.Contains(t, c, "--kubeconfig "+b.Run.KubeconfigPath)
	}
}

func TestBind_StepFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fail      string
		errMsg    string
		wantWrite bool
	}{
		{"credentials", "gcloud container clusters get-credentials", "failed to fetch credentials", false},
		{"view", "kubectl config view", "failed to read kubeconfig", false},
		{"use-context", "kubectl config use-context", "failed to activate context", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := gatewaytest.New().
				On("kubectl config view --raw", gatewaytest.Response{Stdout: rawKubeconfig}).
				On(tt.fail, gatewaytest.Response{ExitCode: 1, Stderr: "boom"})
			b, _ := newBinder(t, fake)

			err := b.Bind(context.Background(), target)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)

			_, statErr := os.Stat(b.Run.KubeconfigPath)
			assert.Equal(t, tt.wantWrite, statErr == nil)
		})
	}
}

func TestBind_InvalidKubeconfig(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().On("kubectl config view --raw", gatewaytest.Response{Stdout: "clusters: ["})
	b, _ := newBinder(t, fake)

	err := b.Bind(context.Background(), target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid")
}

func TestBind_WarnsWhenContextMissing(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().On("kubectl config view --raw", gatewaytest.Response{Stdout: "apiVersion: v1\nkind: Config\n"})
	b, obs := newBinder(t, fake)

	require.NoError(t, b.Bind(context.Background(), target))
	assert.Len(t, obs.EventsOfType(provisioning.EventValidationWarning), 1)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		active string
		want   bool
	}{
		{"exact match", "gke_demo-proj_us-central1-a_ci-cluster\n", true},
		{"wrong zone", "gke_demo-proj_us-central1-b_ci-cluster\n", false},
		{"one character off", "gke_demo-proj_us-central1-a_ci-clustex\n", false},
		{"trailing space", "gke_demo-proj_us-central1-a_ci-cluster \n", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := gatewaytest.New().On("kubectl config current-context", gatewaytest.Response{Stdout: tt.active})
			b, obs := newBinder(t, fake)

			assert.Equal(t, tt.want, b.Verify(context.Background(), target))
			if !tt.want {
				assert.Len(t, obs.EventsOfType(provisioning.EventValidationWarning), 1)
			}
			assert.Equal(t, []string{
				"kubectl config current-context --kubeconfig " + b.Run.KubeconfigPath,
			}, fake.CallsWithPrefix("kubectl"))
		})
	}
}

func TestVerify_ReadFailure(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().On("kubectl config current-context", gatewaytest.Response{ExitCode: 1, Stderr: "error: current-context is not set"})
	b, _ := newBinder(t, fake)

	assert.False(t, b.Verify(context.Background(), target))
}

func TestBindAndVerify_Mismatch(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().
		On("kubectl config view --raw", gatewaytest.Response{Stdout: rawKubeconfig}).
		On("kubectl config current-context", gatewaytest.Response{Stdout: "some-other-context\n"})
	b, _ := newBinder(t, fake)

	err := b.BindAndVerify(context.Background(), target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContextMismatch))
}

func TestBindAndVerify_Success(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().
		On("kubectl config view --raw", gatewaytest.Response{Stdout: rawKubeconfig}).
		On("kubectl config current-context", gatewaytest.Response{Stdout: "gke_demo-proj_us-central1-a_ci-cluster\n"})
	b, _ := newBinder(t, fake)

	assert.NoError(t, b.BindAndVerify(context.Background(), target))
}
