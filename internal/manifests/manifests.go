// Package manifests decodes the Kubernetes manifests applied during a run.
//
// The PVC and role binding files are applied with kubectl, but their names
// and namespace are needed beforehand to ask whether the objects already
// exist. Decoding into the typed API objects also rejects a manifest of the
// wrong kind before anything is applied.
package manifests

import (
	"os"

	"github.com/cockroachdb/errors"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// DefaultNamespace is used for namespaced manifests that do not name one.
const DefaultNamespace = "default"

// LoadPVC reads a PersistentVolumeClaim manifest.
func LoadPVC(path string) (*corev1.PersistentVolumeClaim, error) {
	var pvc corev1.PersistentVolumeClaim
	if err := load(path, "PersistentVolumeClaim", &pvc, &pvc.TypeMeta, &pvc.ObjectMeta); err != nil {
		return nil, err
	}
	if pvc.Namespace == "" {
		pvc.Namespace = DefaultNamespace
	}
	return &pvc, nil
}

// LoadClusterRoleBinding reads a ClusterRoleBinding manifest.
func LoadClusterRoleBinding(path string) (*rbacv1.ClusterRoleBinding, error) {
	var crb rbacv1.ClusterRoleBinding
	if err := load(path, "ClusterRoleBinding", &crb, &crb.TypeMeta, &crb.ObjectMeta); err != nil {
		return nil, err
	}
	return &crb, nil
}

func load(path, kind string, obj any, tm *metav1.TypeMeta, om *metav1.ObjectMeta) error {
	data, err := os.ReadFile(path) // #nosec G304 - staged manifest inside the run directory
	if err != nil {
		return errors.Wrapf(err, "failed to read manifest %s", path)
	}
	if err := yaml.Unmarshal(data, obj); err != nil {
		return errors.Wrapf(err, "failed to decode manifest %s", path)
	}
	if tm.Kind != kind {
		return errors.Newf("manifest %s has kind %q, want %s", path, tm.Kind, kind)
	}
	if om.Name == "" {
		return errors.Newf("manifest %s has no metadata.name", path)
	}
	return nil
}
