package orchestration

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/kubeci-dev/ciprov/internal/config"
	"github.com/kubeci-dev/ciprov/internal/deploy"
	"github.com/kubeci-dev/ciprov/internal/infra"
	"github.com/kubeci-dev/ciprov/internal/kubecontext"
	"github.com/kubeci-dev/ciprov/internal/manifests"
	"github.com/kubeci-dev/ciprov/internal/oracle"
	"github.com/kubeci-dev/ciprov/internal/provisioning"
	"github.com/kubeci-dev/ciprov/internal/reconcile"
	"github.com/kubeci-dev/ciprov/internal/tfvars"
	"github.com/kubeci-dev/ciprov/internal/util/prerequisites"
)

const reconcilePhase = "reconcile"

func (r *Reconciler) checkPrerequisites(ctx *provisioning.Context) error {
	if ctx.Config.SkipPrerequisites {
		ctx.Observer.Printf("Skipping prerequisite checks")
		return nil
	}

	tools := prerequisites.DefaultTools()
	var results *prerequisites.CheckResults
	if ctx.Config.InstallMissingTools {
		results = r.Checker.Ensure(ctx, tools)
	} else {
		results = r.Checker.Check(ctx, tools)
	}

	for _, res := range results.Results {
		switch {
		case res.Installed:
			ctx.Observer.Printf("Installed %s at %s", res.Tool.Name, res.Path)
		case res.Found:
			ctx.Observer.Printf("Found %s %s", res.Tool.Name, res.Version)
		}
	}
	return results.Error()
}

func (r *Reconciler) stage(ctx *provisioning.Context) error {
	run, err := r.Manager.Prepare()
	if err != nil {
		return err
	}
	ctx.Run = run
	ctx.Observer = ctx.Observer.WithFields(map[string]string{"run": run.ID})
	r.report.RunID = run.ID
	r.report.RunDir = run.Dir
	ctx.Observer.Printf("Staged sources into %s", run.Dir)
	return nil
}

func (r *Reconciler) readVariables(ctx *provisioning.Context) error {
	path := filepath.Join(ctx.Run.SourceDir(config.SourceTerraform), ctx.Config.VarsFile)
	vars, err := tfvars.ParseFile(path)
	if err != nil {
		return err
	}
	if err := vars.Require(tfvars.RequiredKeys...); err != nil {
		return errors.Wrapf(err, "variable file %s", ctx.Config.VarsFile)
	}
	ctx.Vars = vars
	ctx.Observer.Printf("Read %d variables for cluster %s in %s/%s",
		vars.Len(), vars.ClusterName(), vars.Project(), vars.Zone())
	return nil
}

// bindProject scopes every later gcloud call to the declared project through
// the run environment instead of changing the user's gcloud configuration.
func (r *Reconciler) bindProject(ctx *provisioning.Context) error {
	project := ctx.Vars.Project()
	ctx.Run.WithEnv("CLOUDSDK_CORE_PROJECT=" + project)

	r.oracle = oracle.New(r.runner, ctx.Run, project, ctx.Vars.Zone())
	r.terraform = infra.NewTerraform(r.runner, ctx.Run,
		ctx.Run.SourceDir(config.SourceTerraform), ctx.Config.VarsFile, ctx.Observer)
	r.kubectl = infra.NewKubectl(r.runner, ctx.Run)

	r.engine = reconcile.NewEngine(ctx.Observer, reconcilePhase)
	r.engine.OnResult = func(res reconcile.Result) {
		ctx.Metrics.Resource(res.Kind, string(res.Outcome))
	}

	ctx.Observer.Printf("Using project %s", project)
	return nil
}

func (r *Reconciler) reconcileCluster(ctx *provisioning.Context) error {
	name := ctx.Vars.ClusterName()
	_, err := r.engine.Reconcile(ctx, reconcile.Resource{
		Kind: string(oracle.KindCluster),
		Name: name,
		Check: func(c context.Context) oracle.Presence {
			return r.oracle.Cluster(c, name)
		},
		Create: r.terraform.CreateCluster(ctx.Config.ClusterTarget),
	})
	return err
}

func (r *Reconciler) bindContext(ctx *provisioning.Context) error {
	binder := kubecontext.NewBinder(r.runner, ctx.Run, ctx.Config.ContextPrefix, ctx.Observer)
	return binder.BindAndVerify(ctx, kubecontext.Target{
		Project: ctx.Vars.Project(),
		Zone:    ctx.Vars.Zone(),
		Cluster: ctx.Vars.ClusterName(),
	})
}

func (r *Reconciler) reconcileDisk(ctx *provisioning.Context) error {
	name := ctx.Vars.ValueOr(tfvars.KeyDiskName, ctx.Config.DiskName)
	_, err := r.engine.Reconcile(ctx, reconcile.Resource{
		Kind: string(oracle.KindDisk),
		Name: name,
		Check: func(c context.Context) oracle.Presence {
			return r.oracle.Disk(c, name)
		},
		Create: r.terraform.CreateDisk(ctx.Config.DiskTarget),
	})
	return err
}

func (r *Reconciler) reconcilePVC(ctx *provisioning.Context) error {
	path := filepath.Join(ctx.Run.SourceDir(config.SourceAnsible), ctx.Config.PVCManifest)
	pvc, err := manifests.LoadPVC(path)
	if err != nil {
		return err
	}
	_, err = r.engine.Reconcile(ctx, reconcile.Resource{
		Kind: string(oracle.KindPVC),
		Name: pvc.Namespace + "/" + pvc.Name,
		Check: func(c context.Context) oracle.Presence {
			return r.oracle.PVC(c, pvc.Namespace, pvc.Name)
		},
		Create: r.kubectl.ApplyFunc(path),
	})
	return err
}

func (r *Reconciler) reconcileRoleBinding(ctx *provisioning.Context) error {
	path := filepath.Join(ctx.Run.SourceDir(config.SourceAnsible), ctx.Config.RoleBindingManifest)
	crb, err := manifests.LoadClusterRoleBinding(path)
	if err != nil {
		return err
	}
	_, err = r.engine.Reconcile(ctx, reconcile.Resource{
		Kind: string(oracle.KindClusterRoleBinding),
		Name: crb.Name,
		Check: func(c context.Context) oracle.Presence {
			return r.oracle.ClusterRoleBinding(c, crb.Name)
		},
		Create: r.kubectl.ApplyFunc(path),
	})
	return err
}

func (r *Reconciler) deploy(ctx *provisioning.Context) error {
	method, err := deploy.ParseMethod(ctx.Config.Method)
	if err != nil {
		return err
	}
	driver := deploy.NewDriver(r.runner, deploy.Playbooks{
		deploy.MethodManifest: ctx.Config.ManifestPlaybook,
		deploy.MethodChart:    ctx.Config.ChartPlaybook,
	}, ctx.Observer)
	driver.Python = r.Python

	if err := driver.Deploy(ctx, ctx.Vars, ctx.Run, method); err != nil {
		return err
	}
	r.report.Deployed = true
	return nil
}

// prune is best-effort: a directory that cannot be removed is reported but
// does not fail a run that has already deployed.
func (r *Reconciler) prune(ctx *provisioning.Context) error {
	result, err := r.Manager.Prune(ctx.Config.MaxRuns)
	r.report.Pruned = result
	if err != nil {
		provisioning.LogWarning(ctx.Observer, "prune", err.Error())
	}
	ctx.Observer.Printf("Kept %d run directories, removed %d", len(result.Kept), len(result.Removed))
	return nil
}
