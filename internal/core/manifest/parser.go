package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// extensionKey is the compose extension block devstack owns.
const extensionKey = "x-devstack"

// =============================================================================
// Parser Functions
// =============================================================================

// Parse parses compose-style YAML into a Manifest.
// This is a pure function - no I/O, no side effects. Extends references are
// captured but not resolved; call ResolveExtends (or use Load) for that.
func Parse(yamlContent string) (*Manifest, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	// Parse YAML into a map first so the extension block survives loading.
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loadProject(yamlContent, dict)
	if err != nil {
		return nil, err
	}

	if err := checkUnsupportedFeatures(project); err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	requiredEnv := parseRequiredEnv(dict)

	m := &Manifest{
		Services: make([]Service, 0, len(project.Services)),
		Volumes:  make([]Volume, 0, len(project.Volumes)),
	}
	if v, ok := dict["version"].(string); ok {
		m.Version = v
	}

	// Service iteration order from compose-go is map order; sort for
	// deterministic output.
	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		converted, err := convertService(project.Services[name], requiredEnv[name])
		if err != nil {
			return nil, err
		}
		m.Services = append(m.Services, converted)
	}

	if err := detectCircularDependencies(m.Services); err != nil {
		return nil, err
	}
	if err := validatePorts(m.Services); err != nil {
		return nil, err
	}

	volNames := make([]string, 0, len(project.Volumes))
	for name := range project.Volumes {
		volNames = append(volNames, name)
	}
	slices.Sort(volNames)
	for _, name := range volNames {
		m.Volumes = append(m.Volumes, convertVolume(name, project.Volumes[name]))
	}

	return m, nil
}

// Load reads a manifest file, parses it and resolves extends references.
// Cross-file extends and build contexts resolve relative to the file's
// directory.
func Load(path string) (*Manifest, error) {
	return loadManifestFile(path, map[string]bool{})
}

// loadManifestFile implements Load. loading tracks the absolute paths of
// manifests whose extends chains are still being resolved, so a cycle that
// crosses files (two manifests extending each other, or one referencing its
// own filename) fails instead of recursing through Load forever.
func loadManifestFile(path string, loading map[string]bool) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if loading[abs] {
		return nil, NewParseError("", "extends chain forms a cycle through "+path, ErrExtendsCycle)
	}
	loading[abs] = true
	defer delete(loading, abs)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewParseError("", fmt.Sprintf("cannot read manifest %s", path), err)
	}

	m, err := Parse(string(data))
	if err != nil {
		return nil, err
	}
	m.SourceDir = filepath.Dir(abs)

	load := func(p string) (*Manifest, error) {
		return loadManifestFile(p, loading)
	}
	if err := ResolveExtends(m, load); err != nil {
		return nil, err
	}

	// After extends resolution every service must be materializable.
	for _, svc := range m.Services {
		if !svc.Runnable() {
			return nil, NewParseError("services."+svc.Name, "service must have image or build", ErrServiceNoImage)
		}
	}

	return m, nil
}

// loadProject loads the YAML through the compose-go loader.
func loadProject(yamlContent string, dict map[string]interface{}) (*types.Project, error) {
	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("devstack-temp", false)
		opts.SkipValidation = false
		// Placeholders like ${VAR} are substituted at plan time, not load time.
		opts.SkipInterpolation = true
		// Paths resolve against Manifest.SourceDir later; we load in-memory.
		opts.SkipNormalization = true
		// Extends is resolved by ResolveExtends with explicit merge rules, so
		// the image-or-build consistency check must wait until after that.
		opts.SkipExtends = true
		opts.SkipConsistencyCheck = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have image or build", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// checkUnsupportedFeatures rejects compose features outside devstack's scope.
func checkUnsupportedFeatures(project *types.Project) error {
	if len(project.Secrets) > 0 {
		return NewParseError("secrets", "secrets are not supported", ErrUnsupportedFeature)
	}
	if len(project.Configs) > 0 {
		return NewParseError("configs", "configs are not supported", ErrUnsupportedFeature)
	}
	return nil
}

// parseRequiredEnv extracts the x-devstack.required-env block mapping
// service name to the environment keys the downstream application needs.
func parseRequiredEnv(dict map[string]interface{}) map[string][]string {
	result := make(map[string][]string)

	ext, ok := dict[extensionKey].(map[string]interface{})
	if !ok {
		return result
	}
	reqs, ok := ext["required-env"].(map[string]interface{})
	if !ok {
		return result
	}

	for svc, raw := range reqs {
		list, ok := raw.([]interface{})
		if !ok {
			continue
		}
		for _, item := range list {
			if key, ok := item.(string); ok {
				result[svc] = append(result[svc], key)
			}
		}
		slices.Sort(result[svc])
	}

	return result
}

// convertService converts a compose-go service to our Service type.
func convertService(svc types.ServiceConfig, requiredEnv []string) (Service, error) {
	service := Service{
		Name:          svc.Name,
		ContainerName: svc.ContainerName,
		Image:         svc.Image,
		Command:       svc.Command,
		Entrypoint:    svc.Entrypoint,
		Environment:   make(map[string]string),
		Labels:        make(map[string]string),
		RequiredEnv:   requiredEnv,
	}

	if svc.Build != nil {
		service.Build = &BuildConfig{
			Context:    svc.Build.Context,
			Dockerfile: svc.Build.Dockerfile,
			Args:       make(map[string]string),
		}
		for k, v := range svc.Build.Args {
			if v != nil {
				service.Build.Args[k] = *v
			}
		}
	}

	if svc.Extends != nil && svc.Extends.Service != "" {
		service.Extends = &ExtendsRef{
			File:    svc.Extends.File,
			Service: svc.Extends.Service,
		}
	}

	// A bare service is only an error when it cannot inherit image or build.
	if service.Image == "" && service.Build == nil && service.Extends == nil {
		return Service{}, NewParseError("services."+svc.Name, "service must have image, build or extends", ErrServiceNoImage)
	}

	for _, p := range svc.Ports {
		var published uint32
		if p.Published != "" {
			pub, err := strconv.ParseUint(p.Published, 10, 32)
			if err == nil {
				published = uint32(pub)
			}
		}
		service.Ports = append(service.Ports, Port{
			Target:    p.Target,
			Published: published,
			Protocol:  p.Protocol,
			HostIP:    p.HostIP,
		})
	}

	for k, v := range svc.Environment {
		if v != nil {
			service.Environment[k] = *v
		} else {
			// KEY with no value passes the host's variable through; keep the
			// placeholder form so plan-time substitution resolves it.
			service.Environment[k] = "${" + k + "}"
		}
	}

	for _, v := range svc.Volumes {
		mount := VolumeMount{
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		}
		switch v.Type {
		case "bind":
			mount.Type = VolumeMountTypeBind
		case "volume":
			mount.Type = VolumeMountTypeVolume
		case "tmpfs":
			mount.Type = VolumeMountTypeTmpfs
		default:
			// Infer type from source
			if strings.HasPrefix(v.Source, "./") || strings.HasPrefix(v.Source, "/") || strings.HasPrefix(v.Source, "~") {
				mount.Type = VolumeMountTypeBind
			} else {
				mount.Type = VolumeMountTypeVolume
			}
		}
		service.Volumes = append(service.Volumes, mount)
	}

	for dep := range svc.DependsOn {
		service.DependsOn = append(service.DependsOn, dep)
	}
	slices.Sort(service.DependsOn)

	service.Restart = RestartPolicy(svc.Restart)

	for k, v := range svc.Labels {
		service.Labels[k] = v
	}

	return service, nil
}

// convertVolume converts a compose-go volume to our Volume type.
func convertVolume(name string, vol types.VolumeConfig) Volume {
	return Volume{
		Name:     name,
		Driver:   vol.Driver,
		External: bool(vol.External),
		Labels:   vol.Labels,
	}
}

// detectCircularDependencies detects cycles in service depends_on references.
func detectCircularDependencies(services []Service) error {
	deps := make(map[string][]string)
	for _, svc := range services {
		deps[svc.Name] = svc.DependsOn
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, dep := range deps[node] {
			if dep == node {
				return true
			}
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for _, svc := range services {
		if !visited[svc.Name] {
			if hasCycle(svc.Name) {
				return ErrCircularDependency
			}
		}
	}

	return nil
}

// validatePorts validates all port configurations.
func validatePorts(services []Service) error {
	for _, svc := range services {
		for i, port := range svc.Ports {
			field := fmt.Sprintf("services.%s.ports[%d]", svc.Name, i)
			if port.Target == 0 {
				return NewParseError(field, "target port cannot be 0", ErrServiceInvalidPort)
			}
			if port.Target > 65535 {
				return NewParseError(field, "target port must be <= 65535", ErrServiceInvalidPort)
			}
			if port.Published > 65535 {
				return NewParseError(field, "published port must be <= 65535", ErrServiceInvalidPort)
			}
		}
	}
	return nil
}

// =============================================================================
// Variable Extraction
// =============================================================================

// ExtractVariables extracts environment variable placeholders (${VAR_NAME})
// from raw manifest content, before any substitution happens.
// Returns unique variable names without the ${} wrapper.
func ExtractVariables(yamlContent string) []string {
	seen := make(map[string]bool)
	var vars []string

	matches := varPlaceholderRegex.FindAllStringSubmatch(yamlContent, -1)
	for _, match := range matches {
		if len(match) >= 2 {
			varName := match[1]
			if !seen[varName] {
				seen[varName] = true
				vars = append(vars, varName)
			}
		}
	}

	return vars
}
