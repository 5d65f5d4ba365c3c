// Package naming provides deterministic names shared across a run.
//
// Cluster access contexts follow the gcloud convention
// {prefix}_{project}_{zone}_{cluster}. Run directories are named
// run-{UTC timestamp}-{8 hex chars} so that lexical order is chronological
// and two invocations started in the same instant never collide.
package naming
