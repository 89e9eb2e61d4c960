package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mathesar-foundation/devstack/internal/core/deployment"
	"github.com/mathesar-foundation/devstack/internal/core/manifest"
)

// Label keys mirrored from the planning layer so the shell can filter the
// containers it manages.
const (
	labelManaged = deployment.LabelManaged
	labelProject = deployment.LabelProject
	labelService = deployment.LabelService
)

// defaultStopTimeout is how long a container gets to shut down cleanly.
var defaultStopTimeout = 10 * time.Second

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator realizes container plans against a Docker daemon. It owns the
// project network, named volumes, images, and containers of a devstack
// project, all tagged with devstack labels.
type Orchestrator struct {
	docker Client
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator backed by the given Docker client.
func NewOrchestrator(docker Client, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		docker: docker,
		logger: logger,
	}
}

// StartedContainer describes one container brought up by Up.
type StartedContainer struct {
	ServiceName string
	ContainerID string
	Name        string
	Image       string
}

// =============================================================================
// Up
// =============================================================================

// Up brings the whole project up: it verifies build contexts, ensures the
// project network and named volumes exist, builds or pulls images, and
// creates and starts one container per runnable service in dependency order.
// Existing containers with the same name are replaced.
func (o *Orchestrator) Up(ctx context.Context, project string, m *manifest.Manifest, variables map[string]string) ([]StartedContainer, error) {
	if err := CheckBuildContexts(m); err != nil {
		return nil, err
	}

	plans := deployment.PlanProject(project, m, variables)

	if err := o.ensureNetwork(ctx, project); err != nil {
		return nil, err
	}
	if err := o.ensureVolumes(ctx, project, m); err != nil {
		return nil, err
	}

	started := make([]StartedContainer, 0, len(plans))
	for _, plan := range plans {
		if err := o.ensureImage(ctx, plan); err != nil {
			return started, err
		}

		id, err := o.runContainer(ctx, plan)
		if err != nil {
			return started, err
		}

		o.logger.Info("container started",
			"project", project,
			"service", plan.ServiceName,
			"container", plan.Name,
			"id", shortID(id))

		started = append(started, StartedContainer{
			ServiceName: plan.ServiceName,
			ContainerID: id,
			Name:        plan.Name,
			Image:       plan.Image,
		})
	}

	return started, nil
}

// ensureNetwork creates the project network if it does not already exist.
func (o *Orchestrator) ensureNetwork(ctx context.Context, project string) error {
	name := deployment.NetworkName(project)
	_, err := o.docker.CreateNetwork(ctx, NetworkSpec{
		Name: name,
		Labels: map[string]string{
			labelManaged: "true",
			labelProject: project,
		},
	})
	if err != nil {
		if errors.Is(err, ErrNetworkAlreadyExists) {
			return nil
		}
		return err
	}

	o.logger.Debug("network created", "network", name)
	return nil
}

// ensureVolumes creates the project's named volumes. Volume creation is
// idempotent on the daemon side, so no existence check is needed.
func (o *Orchestrator) ensureVolumes(ctx context.Context, project string, m *manifest.Manifest) error {
	for _, vol := range m.Volumes {
		name := deployment.VolumeName(project, vol.Name)
		_, err := o.docker.CreateVolume(ctx, VolumeSpec{
			Name:   name,
			Driver: vol.Driver,
			Labels: map[string]string{
				labelManaged: "true",
				labelProject: project,
			},
		})
		if err != nil {
			return err
		}
		o.logger.Debug("volume ensured", "volume", name)
	}
	return nil
}

// ensureImage builds the service image when the plan carries a build, and
// pulls the image otherwise unless it is already present locally.
func (o *Orchestrator) ensureImage(ctx context.Context, plan deployment.ContainerPlan) error {
	if plan.Build != nil {
		o.logger.Info("building image", "service", plan.ServiceName, "tag", plan.Build.Tag)
		return o.docker.BuildImage(ctx, BuildSpec{
			ContextDir: plan.Build.ContextDir,
			Dockerfile: plan.Build.Dockerfile,
			Args:       plan.Build.Args,
			Tag:        plan.Build.Tag,
		})
	}

	exists, err := o.docker.ImageExists(ctx, plan.Image)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	o.logger.Info("pulling image", "service", plan.ServiceName, "image", plan.Image)
	return o.docker.PullImage(ctx, plan.Image, PullOptions{})
}

// runContainer creates and starts the planned container, replacing any
// existing container holding the same name.
func (o *Orchestrator) runContainer(ctx context.Context, plan deployment.ContainerPlan) (string, error) {
	spec := containerSpecFromPlan(plan)

	id, err := o.docker.CreateContainer(ctx, spec)
	if err != nil {
		if !errors.Is(err, ErrContainerAlreadyExists) {
			return "", err
		}

		o.logger.Debug("replacing existing container", "container", plan.Name)
		if err := o.docker.RemoveContainer(ctx, plan.Name, RemoveOptions{Force: true}); err != nil {
			return "", err
		}
		id, err = o.docker.CreateContainer(ctx, spec)
		if err != nil {
			return "", err
		}
	}

	if err := o.docker.StartContainer(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// containerSpecFromPlan translates a pure container plan into a client spec.
func containerSpecFromPlan(plan deployment.ContainerPlan) ContainerSpec {
	spec := ContainerSpec{
		Name:       plan.Name,
		Image:      plan.Image,
		Command:    plan.Command,
		Entrypoint: plan.Entrypoint,
		Env:        plan.Env,
		Labels:     plan.Labels,
		Networks:   plan.Networks,
		RestartPolicy: RestartPolicy{
			Name:              plan.RestartPolicy.Name,
			MaximumRetryCount: plan.RestartPolicy.MaximumRetryCount,
		},
	}

	for _, p := range plan.Ports {
		spec.Ports = append(spec.Ports, PortBinding{
			ContainerPort: p.ContainerPort,
			HostPort:      p.HostPort,
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}

	for _, v := range plan.Volumes {
		spec.Volumes = append(spec.Volumes, VolumeMount{
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	return spec
}

// =============================================================================
// Down
// =============================================================================

// Down stops and removes every container the orchestrator manages for the
// project, then removes the project network. Named volumes survive unless
// removeVolumes is set; data like a development database should outlive a
// restart by default.
func (o *Orchestrator) Down(ctx context.Context, project string, m *manifest.Manifest, removeVolumes bool) error {
	containers, err := o.projectContainers(ctx, project)
	if err != nil {
		return err
	}

	timeout := defaultStopTimeout
	for _, c := range containers {
		if c.Status == ContainerStatusRunning {
			if err := o.docker.StopContainer(ctx, c.ID, &timeout); err != nil {
				o.logger.Warn("failed to stop container", "container", c.Name, "error", err)
			}
		}
		if err := o.docker.RemoveContainer(ctx, c.ID, RemoveOptions{Force: true}); err != nil {
			return err
		}
		o.logger.Info("container removed", "project", project, "container", c.Name)
	}

	networkName := deployment.NetworkName(project)
	if err := o.docker.RemoveNetwork(ctx, networkName); err != nil && !errors.Is(err, ErrNetworkNotFound) {
		return err
	}

	if removeVolumes && m != nil {
		for _, vol := range m.Volumes {
			name := deployment.VolumeName(project, vol.Name)
			if err := o.docker.RemoveVolume(ctx, name, false); err != nil {
				if errors.Is(err, ErrVolumeNotFound) {
					continue
				}
				return err
			}
			o.logger.Info("volume removed", "project", project, "volume", name)
		}
	}

	return nil
}

// =============================================================================
// Status
// =============================================================================

// Status returns the current state of every container the orchestrator
// manages for the project, including stopped ones.
func (o *Orchestrator) Status(ctx context.Context, project string) ([]ContainerInfo, error) {
	return o.projectContainers(ctx, project)
}

func (o *Orchestrator) projectContainers(ctx context.Context, project string) ([]ContainerInfo, error) {
	return o.docker.ListContainers(ctx, ListOptions{
		All: true,
		Filters: map[string]string{
			"label": fmt.Sprintf("%s=%s", labelProject, project),
		},
	})
}

// =============================================================================
// Build Context Verification
// =============================================================================

// CheckBuildContexts verifies that every build context directory and
// Dockerfile referenced by the manifest exists on disk. It is a pure
// filesystem check and needs no Docker daemon.
func CheckBuildContexts(m *manifest.Manifest) error {
	for _, svc := range m.Services {
		if svc.Build == nil {
			continue
		}

		contextDir := svc.Build.Context
		if contextDir == "" {
			contextDir = "."
		}
		if !filepath.IsAbs(contextDir) && m.SourceDir != "" {
			contextDir = filepath.Join(m.SourceDir, contextDir)
		}

		info, err := os.Stat(contextDir)
		if err != nil || !info.IsDir() {
			return NewDockerError("CheckBuildContexts", "service", svc.Name,
				fmt.Sprintf("build context %q does not exist", contextDir), ErrBuildContextNotFound)
		}

		dockerfile := svc.Build.Dockerfile
		if dockerfile == "" {
			dockerfile = "Dockerfile"
		}
		dockerfilePath := filepath.Join(contextDir, dockerfile)
		if _, err := os.Stat(dockerfilePath); err != nil {
			return NewDockerError("CheckBuildContexts", "service", svc.Name,
				fmt.Sprintf("dockerfile %q does not exist", dockerfilePath), ErrDockerfileNotFound)
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

