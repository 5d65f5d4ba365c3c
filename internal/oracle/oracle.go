// Package oracle answers whether a named external resource currently exists.
//
// Lookups never return errors. A listing that fails or cannot be parsed is
// reported as Unknown, which callers deciding whether to create a resource
// collapse into "absent" via Exists. Keeping the tri-state up to that single
// call site makes the ambiguity visible in logs and tests.
package oracle

import (
	"context"
	"encoding/json"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubeci-dev/ciprov/internal/gateway"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

// Presence is the observed state of a resource.
type Presence int

const (
	// Unknown means the query failed or returned unparseable output.
	Unknown Presence = iota
	// Absent means the query succeeded and found nothing.
	Absent
	// Present means the resource was found.
	Present
)

func (p Presence) String() string {
	switch p {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// Exists folds Unknown into absent. Only the reconcile decision should use it.
func Exists(p Presence) bool {
	return p == Present
}

// Kind names a resource type the oracle can look up.
type Kind string

// Supported resource kinds.
const (
	KindDisk               Kind = "disk"
	KindCluster            Kind = "cluster"
	KindPVC                Kind = "pvc"
	KindClusterRoleBinding Kind = "clusterrolebinding"
)

// Target identifies a resource by name and, for namespaced objects, namespace.
type Target struct {
	Name      string
	Namespace string
}

// Oracle queries gcloud and kubectl through the gateway.
type Oracle struct {
	Runner  gateway.Runner
	Run     *workspace.RunContext
	Project string
	Zone    string
}

// New creates an oracle scoped to one project and zone.
func New(runner gateway.Runner, run *workspace.RunContext, project, zone string) *Oracle {
	return &Oracle{Runner: runner, Run: run, Project: project, Zone: zone}
}

// Lookup dispatches on kind.
func (o *Oracle) Lookup(ctx context.Context, kind Kind, target Target) Presence {
	switch kind {
	case KindDisk:
		return o.Disk(ctx, target.Name)
	case KindCluster:
		return o.Cluster(ctx, target.Name)
	case KindPVC:
		return o.PVC(ctx, target.Namespace, target.Name)
	case KindClusterRoleBinding:
		return o.ClusterRoleBinding(ctx, target.Name)
	default:
		return Unknown
	}
}

// Disk looks up a compute disk by exact name.
func (o *Oracle) Disk(ctx context.Context, name string) Presence {
	args := []string{"compute", "disks", "list", "--filter=name=" + name, "--format=json"}
	args = append(args, o.projectArgs()...)
	if o.Zone != "" {
		args = append(args, "--zones="+o.Zone)
	}
	return o.listCloud(ctx, args)
}

// Cluster looks up a GKE cluster by exact name.
func (o *Oracle) Cluster(ctx context.Context, name string) Presence {
	args := []string{"container", "clusters", "list", "--filter=name=" + name, "--format=json"}
	args = append(args, o.projectArgs()...)
	if o.Zone != "" {
		args = append(args, "--zone="+o.Zone)
	}
	return o.listCloud(ctx, args)
}

// PVC looks up a persistent volume claim in the bound cluster.
func (o *Oracle) PVC(ctx context.Context, namespace, name string) Presence {
	return o.getObject(ctx, name, "pvc", name, "-n", namespace)
}

// ClusterRoleBinding looks up a cluster role binding in the bound cluster.
func (o *Oracle) ClusterRoleBinding(ctx context.Context, name string) Presence {
	return o.getObject(ctx, name, "clusterrolebinding", name)
}

func (o *Oracle) projectArgs() []string {
	if o.Project == "" {
		return nil
	}
	return []string{"--project=" + o.Project}
}

func (o *Oracle) env() []string {
	if o.Run == nil {
		return nil
	}
	return o.Run.Env
}

// listCloud runs a gcloud listing that prints a JSON array.
func (o *Oracle) listCloud(ctx context.Context, args []string) Presence {
	res, err := o.Runner.Run(ctx, gateway.Command{Name: "gcloud", Args: args, Env: o.env()})
	if err != nil {
		return Unknown
	}
	return parseListing(res.Stdout)
}

func parseListing(out []byte) Presence {
	if strings.TrimSpace(string(out)) == "" {
		return Unknown
	}
	var items []json.RawMessage
	if err := json.Unmarshal(out, &items); err != nil {
		return Unknown
	}
	if len(items) == 0 {
		return Absent
	}
	return Present
}

// getObject runs kubectl get against the run-scoped kubeconfig.
func (o *Oracle) getObject(ctx context.Context, name string, args ...string) Presence {
	full := append([]string{"get"}, args...)
	full = append(full, "-o", "json")
	if o.Run != nil && o.Run.KubeconfigPath != "" {
		full = append(full, "--kubeconfig", o.Run.KubeconfigPath)
	}

	res, err := o.Runner.Run(ctx, gateway.Command{Name: "kubectl", Args: full, Env: o.env()})
	if err != nil {
		if gateway.IsNotFound(err) {
			return Absent
		}
		return Unknown
	}

	var obj metav1.PartialObjectMetadata
	if err := json.Unmarshal(res.Stdout, &obj); err != nil || obj.Name == "" {
		return Unknown
	}
	if obj.Name != name {
		return Absent
	}
	return Present
}
