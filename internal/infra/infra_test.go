package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeci-dev/ciprov/internal/gateway"
	"github.com/kubeci-dev/ciprov/internal/gateway/gatewaytest"
	citesting "github.com/kubeci-dev/ciprov/internal/testing"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

const clusterAddr = "google_container_cluster.primary"

func newTerraform(fake *gatewaytest.Fake) *Terraform {
	run := &workspace.RunContext{
		Dir:            "/tmp/run-x",
		KubeconfigPath: "/tmp/run-x/kubeconfig",
		Env:            []string{"CLOUDSDK_CORE_PROJECT=demo-proj"},
	}
	return NewTerraform(fake, run, "/tmp/run-x/terraform", "/tmp/run-x/terraform/variables.tfvars", citesting.NewRecordingObserver())
}

func TestApply_InitsOnce(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New()
	tf := newTerraform(fake)

	require.NoError(t, tf.Apply(context.Background(), "google_compute_disk.jenkins_disk"))
	require.NoError(t, tf.Apply(context.Background(), clusterAddr))

	assert.Equal(t, []string{
		"terraform init -input=false -no-color",
		"terraform apply -auto-approve -input=false -no-color -var-file=variables.tfvars -target=google_compute_disk.jenkins_disk",
		"terraform apply -auto-approve -input=false -no-color -var-file=variables.tfvars -target=" + clusterAddr,
	}, fake.CallsWithPrefix("terraform"))

	for _, c := range fake.Calls() {
		assert.Equal(t, "/tmp/run-x/terraform", c.Dir)
		assert.Contains(t, c.Env, "CLOUDSDK_CORE_PROJECT=demo-proj")
	}
}

func TestApply_InitFailure(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().On("terraform init", gatewaytest.Response{ExitCode: 1, Stderr: "provider download failed"})

	err := newTerraform(fake).Apply(context.Background(), clusterAddr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terraform init failed")
	assert.Empty(t, fake.CallsWithPrefix("terraform apply"))
}

func TestCreateCluster_DropsStaleStateRecord(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().On("terraform state list", gatewaytest.Response{
		Stdout: "google_compute_disk.jenkins_disk\n" + clusterAddr + "\n",
	})

	require.NoError(t, newTerraform(fake).CreateCluster(clusterAddr)(context.Background()))

	assert.Equal(t, []string{
		"terraform init -input=false -no-color",
		"terraform state list",
		"terraform state rm " + clusterAddr,
		"terraform apply -auto-approve -input=false -no-color -var-file=variables.tfvars -target=" + clusterAddr,
	}, fake.CallsWithPrefix("terraform"))
}

func TestCreateCluster_NoStateRecord(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().On("terraform state list", gatewaytest.Response{Stdout: "google_compute_disk.jenkins_disk\n"})

	require.NoError(t, newTerraform(fake).CreateCluster(clusterAddr)(context.Background()))

	assert.Empty(t, fake.CallsWithPrefix("terraform state rm"))
	assert.Len(t, fake.CallsWithPrefix("terraform apply"), 1)
}

func TestCreateCluster_EmptyState(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().On("terraform state list", gatewaytest.Response{ExitCode: 1, Stderr: "No state file was found!"})

	require.NoError(t, newTerraform(fake).CreateCluster(clusterAddr)(context.Background()))
	assert.Len(t, fake.CallsWithPrefix("terraform apply"), 1)
}

func TestCreateCluster_ApplyFailure(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().On("terraform apply", gatewaytest.Response{ExitCode: 1, Stderr: "Error: googleapi: Error 403"})

	err := newTerraform(fake).CreateCluster(clusterAddr)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terraform apply of "+clusterAddr+" failed")
}

func TestKubectlApply(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New()
	run := &workspace.RunContext{KubeconfigPath: "/tmp/run-x/kubeconfig"}

	require.NoError(t, NewKubectl(fake, run).ApplyFunc("/tmp/run-x/ansible/jenkins_pvc.yaml")(context.Background()))

	assert.Equal(t, []string{
		"kubectl apply -f /tmp/run-x/ansible/jenkins_pvc.yaml --kubeconfig /tmp/run-x/kubeconfig",
	}, fake.CallsWithPrefix("kubectl"))
}

func TestKubectlApply_Failure(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.New().On("kubectl apply", gatewaytest.Response{
		Handler: func(cmd gateway.Command) (gateway.Result, error) {
			return gateway.Result{ExitCode: 1}, &gateway.CommandError{Argv: cmd.Argv(), ExitCode: 1, Stderr: "forbidden"}
		},
	})

	err := NewKubectl(fake, &workspace.RunContext{}).Apply(context.Background(), "rb.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}
