package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Fixture resource names used by SourceTree manifests.
const (
	FixtureNamespace   = "jenkins"
	FixturePVC         = "jenkins-pvc"
	FixtureRoleBinding = "jenkins-cluster-admin"
)

// PVCManifest is a minimal persistent volume claim bound to the Jenkins disk.
const PVCManifest = `apiVersion: v1
kind: PersistentVolumeClaim
metadata:
  name: jenkins-pvc
  namespace: jenkins
spec:
  accessModes:
    - ReadWriteOnce
  storageClassName: ""
  volumeName: jenkins-pv
  resources:
    requests:
      storage: 50Gi
`

// RoleBindingManifest grants the Jenkins service account cluster-admin.
const RoleBindingManifest = `apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRoleBinding
metadata:
  name: jenkins-cluster-admin
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: ClusterRole
  name: cluster-admin
subjects:
  - kind: ServiceAccount
    name: jenkins
    namespace: jenkins
`

// DefaultVariables returns the variables written by SourceTree.
func DefaultVariables() map[string]string {
	return map[string]string{
		"project":      "demo-proj",
		"zone":         "us-central1-a",
		"cluster_name": "ci-cluster",
		"disk_name":    "jenkins-disk",
	}
}

// SourceTree is a temporary source layout with terraform/ and ansible/.
type SourceTree struct {
	Root      string
	Terraform string
	Ansible   string
}

// NewSourceTree writes a source layout with the given variables.
func NewSourceTree(t *testing.T, vars map[string]string) *SourceTree {
	t.Helper()
	root := t.TempDir()
	tree := &SourceTree{
		Root:      root,
		Terraform: filepath.Join(root, "terraform"),
		Ansible:   filepath.Join(root, "ansible"),
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("# generated for tests\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %q\n", k, vars[k])
	}

	tree.Write(t, "terraform/variables.tfvars", b.String())
	tree.Write(t, "terraform/main.tf", `resource "google_compute_disk" "jenkins_disk" {}`+"\n")
	tree.Write(t, "terraform/terraform.tfstate", `{"version": 4}`)
	tree.Write(t, "ansible/jenkins_pvc.yaml", PVCManifest)
	tree.Write(t, "ansible/jenkins-role-binding.yaml", RoleBindingManifest)
	tree.Write(t, "ansible/deploy_jenkins.yml", "- hosts: localhost\n")
	tree.Write(t, "ansible/deploy_jenkins_helm.yml", "- hosts: localhost\n")
	return tree
}

// Write creates rel under the tree root with content.
func (s *SourceTree) Write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(s.Root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", p, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

// Kubeconfig returns a raw kubeconfig holding a single context named name,
// as printed by kubectl config view --raw after gcloud get-credentials.
func Kubeconfig(name string) string {
	return fmt.Sprintf(`apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://34.1.2.3
  name: %[1]s
contexts:
- context:
    cluster: %[1]s
    user: %[1]s
  name: %[1]s
current-context: %[1]s
users:
- name: %[1]s
  user:
    token: secret
`, name)
}
