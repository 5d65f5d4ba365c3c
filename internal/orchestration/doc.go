// Package orchestration provides high-level workflow coordination for a
// Jenkins-on-GKE provisioning run.
//
// The Reconciler builds the ordered list of provisioning phases and runs
// them through provisioning.RunPhases. Each phase delegates to a single
// component (workspace, tfvars, oracle, infra, kubecontext, deploy); this
// package only decides the order and carries state between them.
//
// # Workflow
//
//  1. prerequisites - required CLIs are present, ansible installed on demand
//  2. stage - a fresh run directory with copies of terraform/ and ansible/
//  3. variables - the variable file is parsed and required keys checked
//  4. project - the GCP project is bound into the run environment
//  5. cluster - the GKE cluster is created unless it exists
//  6. kube-context - credentials are fetched into the run kubeconfig and verified
//  7. disk, pvc, role-binding - created unless they exist
//  8. deploy - ansible-playbook installs Jenkins
//  9. prune - old run directories beyond the retention count are removed
//
// Cluster-scoped phases (6 onwards) never run against an unverified context:
// a failed bind or verification aborts the run.
//
// # Usage
//
//	reconciler := orchestration.NewReconciler(cfg, gateway.NewExecRunner(), observer, logger, rec)
//	report, err := reconciler.Reconcile(ctx)
//
// Running it again against the same project creates nothing new.
package orchestration
