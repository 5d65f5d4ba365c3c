// Package deploy hands the provisioned cluster over to Ansible.
//
// The driver writes a single-host inventory for the local machine into the
// run directory, runs ansible-playbook against the playbook selected by the
// deployment method and removes the inventory again on every path.
package deploy

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/kubeci-dev/ciprov/internal/config"
	"github.com/kubeci-dev/ciprov/internal/gateway"
	"github.com/kubeci-dev/ciprov/internal/provisioning"
	"github.com/kubeci-dev/ciprov/internal/tfvars"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

// ErrRunnerFailed is returned when ansible-playbook exits non-zero.
var ErrRunnerFailed = errors.New("ansible-playbook failed")

// Method selects how the application is installed.
type Method string

// Deployment methods.
const (
	MethodManifest Method = config.MethodManifest
	MethodChart    Method = config.MethodChart
)

// ParseMethod validates s as a deployment method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodManifest, MethodChart:
		return Method(s), nil
	default:
		return "", errors.Wrapf(config.ErrInvalidMethod, "%q", s)
	}
}

// Playbooks maps each method to a playbook file relative to the staged
// Ansible directory.
type Playbooks map[Method]string

// Driver runs the configuration-management hand-off.
type Driver struct {
	Runner    gateway.Runner
	Playbooks Playbooks
	Observer  provisioning.Observer

	// Python is passed as ansible_python_interpreter when set.
	Python string
}

// NewDriver creates a deployment driver.
func NewDriver(runner gateway.Runner, playbooks Playbooks, observer provisioning.Observer) *Driver {
	return &Driver{Runner: runner, Playbooks: playbooks, Observer: observer}
}

type inventory struct {
	All inventoryGroup `yaml:"all"`
}

type inventoryGroup struct {
	Hosts map[string]map[string]string `yaml:"hosts"`
	Vars  map[string]string            `yaml:"vars,omitempty"`
}

// Inventory renders the single-host inventory for vars.
func (d *Driver) Inventory(vars tfvars.Variables) ([]byte, error) {
	host := map[string]string{"ansible_connection": "local"}
	if d.Python != "" {
		host["ansible_python_interpreter"] = d.Python
	}
	inv := inventory{All: inventoryGroup{
		Hosts: map[string]map[string]string{"localhost": host},
		Vars: map[string]string{
			tfvars.KeyProject: vars.Project(),
			tfvars.KeyZone:    vars.Zone(),
		},
	}}
	out, err := yaml.Marshal(inv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render inventory")
	}
	return out, nil
}

// Deploy runs the playbook for method against the cluster bound in run.
func (d *Driver) Deploy(ctx context.Context, vars tfvars.Variables, run *workspace.RunContext, method Method) error {
	ansibleDir := run.SourceDir(config.SourceAnsible)
	if ansibleDir == "" {
		return errors.New("run has no staged ansible directory")
	}

	playbook, ok := d.Playbooks[method]
	if !ok || playbook == "" {
		return errors.Wrapf(config.ErrInvalidMethod, "no playbook for method %q", method)
	}

	data, err := d.Inventory(vars)
	if err != nil {
		return err
	}

	invPath, cleanup, err := writeTemp(run.Dir, "inventory-*.yml", data)
	if err != nil {
		return err
	}
	defer cleanup()

	cmd := gateway.Command{
		Name: "ansible-playbook",
		Args: []string{
			"-i", invPath,
			filepath.Join(ansibleDir, playbook),
			"--extra-vars", ExtraVars(vars, run.KubeconfigPath),
		},
		Dir: ansibleDir,
		Env: append([]string{
			"KUBECONFIG=" + run.KubeconfigPath,
			"K8S_AUTH_KUBECONFIG=" + run.KubeconfigPath,
			"ANSIBLE_NOCOLOR=1",
		}, run.Env...),
	}

	d.Observer.Printf("Running %s (method %s)", playbook, method)
	res, err := d.Runner.Run(ctx, cmd)
	if out := strings.TrimSpace(string(res.Stdout)); out != "" {
		d.Observer.Printf("ansible-playbook output:\n%s", out)
	}
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "deployment with %s failed", playbook), ErrRunnerFailed)
	}
	return nil
}

// ExtraVars renders every variable plus the kubeconfig path as a flat
// key=value list, sorted by key. Values containing whitespace are quoted.
func ExtraVars(vars tfvars.Variables, kubeconfig string) string {
	m := vars.Map()
	if kubeconfig != "" {
		m["kubeconfig"] = kubeconfig
	}
	keys := tfvars.New(m).Keys()

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+quote(m[k]))
	}
	return strings.Join(parts, " ")
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t'\"\\") {
		return v
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

// writeTemp writes data to a new file in dir and returns a cleanup func.
func writeTemp(dir, pattern string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create inventory file")
	}
	// Best-effort cleanup; failure to remove the inventory is non-critical
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, errors.Wrap(err, "failed to write inventory file")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, "failed to close inventory file")
	}
	return f.Name(), cleanup, nil
}
