// Package deployment contains pure functions that turn a validated manifest
// into executable container plans. No I/O happens here; the docker shell
// executes the plans.
package deployment

import (
	"github.com/mathesar-foundation/devstack/internal/core/manifest"
)

// =============================================================================
// Container Plan Types
// =============================================================================

// ContainerPlan represents a planned container configuration.
// This is the pure output of planning, ready for the shell to execute.
type ContainerPlan struct {
	ServiceName   string
	Name          string
	Image         string
	Build         *BuildPlan
	Command       []string
	Entrypoint    []string
	Env           map[string]string
	Labels        map[string]string
	Ports         []PortPlan
	Volumes       []VolumePlan
	Networks      []string
	RestartPolicy RestartPolicyPlan
}

// BuildPlan represents a planned image build.
type BuildPlan struct {
	// ContextDir is the absolute build context directory.
	ContextDir string
	// Dockerfile is relative to ContextDir; empty means "Dockerfile".
	Dockerfile string
	Args       map[string]string
	// Tag is the image tag the build produces and the container runs.
	Tag string
}

// PortPlan represents a planned port binding.
type PortPlan struct {
	ContainerPort int
	HostPort      int
	Protocol      string
	HostIP        string
}

// VolumePlan represents a planned volume mount.
type VolumePlan struct {
	Source   string
	Target   string
	ReadOnly bool
	Named    bool // true when Source is a managed named volume
}

// RestartPolicyPlan represents a restart policy.
type RestartPolicyPlan struct {
	Name              string
	MaximumRetryCount int
}

// =============================================================================
// Builder Parameter Types
// =============================================================================

// BuildContainerPlanParams contains all inputs for building a container plan.
type BuildContainerPlanParams struct {
	Project     string
	Service     manifest.Service
	Variables   map[string]string
	NetworkName string
	// SourceDir is the manifest's directory; build contexts and relative bind
	// mounts resolve against it.
	SourceDir string
}

// =============================================================================
// Devstack Container Labels
// =============================================================================

// Label keys used for devstack container identification.
const (
	LabelManaged = "com.devstack.managed"
	LabelProject = "com.devstack.project"
	LabelService = "com.devstack.service"
)
