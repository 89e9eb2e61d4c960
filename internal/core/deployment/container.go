package deployment

import (
	"path/filepath"

	"github.com/mathesar-foundation/devstack/internal/core/manifest"
)

// =============================================================================
// Container Plan Building Functions
// =============================================================================

// BuildContainerPlan builds a ContainerPlan from a manifest service.
//
// This is a pure function that transforms a service definition and project
// parameters into a container plan the shell can execute via the Docker API.
//
// The function:
//   - Uses the explicit container_name, falling back to {project}_{service}
//   - Resolves the build context and relative bind mounts against SourceDir
//   - Substitutes ${VAR} placeholders in environment values
//   - Prefixes named volumes with the project name
//   - Maps the restart policy to Docker format
//   - Attaches devstack identification labels
func BuildContainerPlan(params BuildContainerPlanParams) ContainerPlan {
	svc := params.Service

	plan := ContainerPlan{
		ServiceName: svc.Name,
		Name:        svc.EffectiveContainerName(params.Project),
		Image:       svc.Image,
		Command:     svc.Command,
		Entrypoint:  svc.Entrypoint,
		Env:         make(map[string]string),
		Labels: map[string]string{
			LabelManaged: "true",
			LabelProject: params.Project,
			LabelService: svc.Name,
		},
		Networks: []string{params.NetworkName},
	}

	if svc.Build != nil {
		plan.Build = &BuildPlan{
			ContextDir: resolvePath(params.SourceDir, svc.Build.Context),
			Dockerfile: svc.Build.Dockerfile,
			Args:       make(map[string]string),
			Tag:        ImageTag(params.Project, svc.Name),
		}
		for k, v := range svc.Build.Args {
			plan.Build.Args[k] = SubstituteVariables(v, params.Variables)
		}
		// A built service runs the image its build produces unless it pins
		// an explicit image reference.
		if plan.Image == "" {
			plan.Image = plan.Build.Tag
		}
	}

	for k, v := range svc.Environment {
		plan.Env[k] = SubstituteVariables(v, params.Variables)
	}

	for _, p := range svc.Ports {
		plan.Ports = append(plan.Ports, PortPlan{
			ContainerPort: int(p.Target),
			HostPort:      int(p.Published),
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}

	for _, v := range svc.Volumes {
		vp := VolumePlan{
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		}
		switch v.Type {
		case manifest.VolumeMountTypeVolume:
			vp.Source = VolumeName(params.Project, v.Source)
			vp.Named = true
		default:
			vp.Source = resolvePath(params.SourceDir, v.Source)
		}
		plan.Volumes = append(plan.Volumes, vp)
	}

	plan.RestartPolicy = mapRestartPolicy(svc.Restart)

	for k, v := range svc.Labels {
		plan.Labels[k] = v
	}

	return plan
}

// resolvePath resolves a manifest-relative path against the manifest's
// directory. Absolute paths pass through unchanged; an empty base leaves
// relative paths alone (raw-parsed manifests have no source directory).
func resolvePath(sourceDir, path string) string {
	if path == "" {
		return sourceDir
	}
	if filepath.IsAbs(path) || sourceDir == "" {
		return path
	}
	return filepath.Join(sourceDir, path)
}

// mapRestartPolicy maps a manifest restart policy to the Docker policy name.
func mapRestartPolicy(policy manifest.RestartPolicy) RestartPolicyPlan {
	switch policy {
	case manifest.RestartAlways:
		return RestartPolicyPlan{Name: "always"}
	case manifest.RestartOnFailure:
		return RestartPolicyPlan{Name: "on-failure"}
	case manifest.RestartUnlessStopped:
		return RestartPolicyPlan{Name: "unless-stopped"}
	default:
		return RestartPolicyPlan{Name: "no"}
	}
}

// PlanProject builds plans for every service in the manifest, in start order.
func PlanProject(project string, m *manifest.Manifest, variables map[string]string) []ContainerPlan {
	ordered := TopologicalSort(m.Services)
	networkName := NetworkName(project)

	plans := make([]ContainerPlan, 0, len(ordered))
	for _, svc := range ordered {
		plans = append(plans, BuildContainerPlan(BuildContainerPlanParams{
			Project:     project,
			Service:     svc,
			Variables:   variables,
			NetworkName: networkName,
			SourceDir:   m.SourceDir,
		}))
	}

	return plans
}
