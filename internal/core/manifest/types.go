package manifest

// =============================================================================
// Manifest - Main Output Type
// =============================================================================

// Manifest represents a fully parsed devstack topology manifest.
// This is the devstack-specific representation, decoupled from compose-go types.
type Manifest struct {
	Version  string    `json:"version,omitempty" yaml:"version,omitempty"`
	Services []Service `json:"services" yaml:"services"`
	Volumes  []Volume  `json:"volumes,omitempty" yaml:"volumes,omitempty"`

	// SourceDir is the directory the manifest was loaded from. Build contexts,
	// bind mounts and extends files resolve relative to it. Empty when the
	// manifest was parsed from raw bytes.
	SourceDir string `json:"-" yaml:"-"`
}

// ServiceByName returns the named service, or nil if it is not declared.
func (m *Manifest) ServiceByName(name string) *Service {
	for i := range m.Services {
		if m.Services[i].Name == name {
			return &m.Services[i]
		}
	}
	return nil
}

// VolumeByName returns the named volume, or nil if it is not declared.
func (m *Manifest) VolumeByName(name string) *Volume {
	for i := range m.Volumes {
		if m.Volumes[i].Name == name {
			return &m.Volumes[i]
		}
	}
	return nil
}

// =============================================================================
// Service Types
// =============================================================================

// Service represents a single service definition.
type Service struct {
	Name          string            `json:"name" yaml:"name"`
	ContainerName string            `json:"container_name,omitempty" yaml:"container_name,omitempty"`
	Image         string            `json:"image,omitempty" yaml:"image,omitempty"`
	Build         *BuildConfig      `json:"build,omitempty" yaml:"build,omitempty"`
	Command       []string          `json:"command,omitempty" yaml:"command,omitempty"`
	Entrypoint    []string          `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Ports         []Port            `json:"ports,omitempty" yaml:"ports,omitempty"`
	Environment   map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`
	Volumes       []VolumeMount     `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	DependsOn     []string          `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Extends       *ExtendsRef       `json:"extends,omitempty" yaml:"extends,omitempty"`
	Restart       RestartPolicy     `json:"restart,omitempty" yaml:"restart,omitempty"`
	Labels        map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// RequiredEnv lists environment variable keys the downstream application
	// needs at runtime. Populated from the x-devstack.required-env extension
	// block and enforced by Validate.
	RequiredEnv []string `json:"required_env,omitempty" yaml:"required_env,omitempty"`
}

// EffectiveContainerName returns the explicit container_name if set,
// otherwise the generated {project}_{service} name.
func (s *Service) EffectiveContainerName(project string) string {
	if s.ContainerName != "" {
		return s.ContainerName
	}
	return project + "_" + s.Name
}

// Runnable reports whether the service can be materialized as a container,
// i.e. it has an image reference or a build section.
func (s *Service) Runnable() bool {
	return s.Image != "" || s.Build != nil
}

// BuildConfig represents build configuration.
type BuildConfig struct {
	Context    string            `json:"context" yaml:"context"`
	Dockerfile string            `json:"dockerfile,omitempty" yaml:"dockerfile,omitempty"`
	Args       map[string]string `json:"args,omitempty" yaml:"args,omitempty"`
}

// ExtendsRef represents a service inheritance reference.
// File is empty for same-file extends.
type ExtendsRef struct {
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Service string `json:"service" yaml:"service"`
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 `json:"target" yaml:"target"`                           // Container port
	Published uint32 `json:"published,omitempty" yaml:"published,omitempty"` // Host port (0 = dynamic)
	Protocol  string `json:"protocol,omitempty" yaml:"protocol,omitempty"`   // tcp, udp
	HostIP    string `json:"host_ip,omitempty" yaml:"host_ip,omitempty"`     // Bind IP
}

// VolumeMount represents a volume mount in a service.
type VolumeMount struct {
	Type     VolumeMountType `json:"type" yaml:"type"`         // bind, volume, tmpfs
	Source   string          `json:"source" yaml:"source"`     // Path or volume name
	Target   string          `json:"target" yaml:"target"`     // Container path
	ReadOnly bool            `json:"readonly" yaml:"readonly"`
}

// VolumeMountType represents the type of volume mount.
type VolumeMountType string

const (
	VolumeMountTypeBind   VolumeMountType = "bind"
	VolumeMountTypeVolume VolumeMountType = "volume"
	VolumeMountTypeTmpfs  VolumeMountType = "tmpfs"
)

// RestartPolicy represents the restart policy.
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// =============================================================================
// Volume Types
// =============================================================================

// Volume represents a named persistent volume definition.
type Volume struct {
	Name     string            `json:"name" yaml:"name"`
	Driver   string            `json:"driver,omitempty" yaml:"driver,omitempty"`
	External bool              `json:"external" yaml:"external"`
	Labels   map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}
