package naming

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultContextPrefix is the prefix gcloud uses for GKE contexts.
const DefaultContextPrefix = "gke"

// RunDirPrefix marks directories owned by the retention pruner.
const RunDirPrefix = "run-"

// runTimestampLayout sorts lexically in time order.
const runTimestampLayout = "20060102T150405.000000000Z"

// KubeContext returns the context name gcloud writes for a cluster.
func KubeContext(prefix, project, zone, cluster string) string {
	return fmt.Sprintf("%s_%s_%s_%s", prefix, project, zone, cluster)
}

// RunDir returns a new run directory name for the given instant.
func RunDir(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return RunDirPrefix + now.UTC().Format(runTimestampLayout) + "-" + suffix
}

// IsRunDir reports whether name looks like a directory created by RunDir.
func IsRunDir(name string) bool {
	return strings.HasPrefix(name, RunDirPrefix) && len(name) > len(RunDirPrefix)+len(runTimestampLayout)
}

// TerraformAddress joins a resource type and name into a terraform address.
func TerraformAddress(resourceType, name string) string {
	return resourceType + "." + name
}
