package manifest

import (
	"fmt"
	"regexp"
	"slices"
)

// =============================================================================
// Topology Validation
// =============================================================================

// varPlaceholderRegex matches ${VAR_NAME} or ${VAR_NAME:-default}.
var varPlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-[^}]*)?\}`)

// envKeyRegex matches valid environment variable keys.
var envKeyRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate performs semantic validation on a manifest whose extends references
// have been resolved. Returns all violations found:
//
//   - duplicate effective container names
//   - conflicting host port bindings across services (the whole manifest is
//     assumed to run concurrently on one host)
//   - required environment variables missing from a service
//   - malformed environment variable keys
//   - references to undeclared named volumes
//   - depends_on references to unknown services
//
// Build context existence is I/O and checked by the docker shell, not here.
func Validate(m *Manifest) []error {
	var errs []error

	errs = append(errs, validateContainerNames(m)...)
	errs = append(errs, validateHostPorts(m)...)
	errs = append(errs, validateEnvironment(m)...)
	errs = append(errs, validateVolumeRefs(m)...)
	errs = append(errs, validateDependencyRefs(m)...)

	return errs
}

// validateContainerNames checks that effective container names are unique.
// The project prefix does not matter for uniqueness: two services collide
// exactly when their explicit or generated names collide.
func validateContainerNames(m *Manifest) []error {
	var errs []error

	seen := make(map[string]string) // container name -> first service
	for _, svc := range m.Services {
		name := svc.EffectiveContainerName("")
		if first, ok := seen[name]; ok {
			errs = append(errs, NewParseError(
				"services."+svc.Name+".container_name",
				fmt.Sprintf("container name %q already used by service %q", svc.ContainerName, first),
				ErrDuplicateContainerName,
			))
			continue
		}
		seen[name] = svc.Name
	}

	return errs
}

// hostPortKey identifies a host-side binding for conflict detection.
type hostPortKey struct {
	Port     uint32
	Protocol string
}

// validateHostPorts checks that no two services bind the same host port.
// A wildcard bind (empty or 0.0.0.0 host IP) conflicts with any other bind of
// the same port; two distinct specific host IPs do not conflict.
func validateHostPorts(m *Manifest) []error {
	var errs []error

	type binding struct {
		service string
		hostIP  string
	}
	seen := make(map[hostPortKey][]binding)

	for _, svc := range m.Services {
		for i, p := range svc.Ports {
			if p.Published == 0 {
				continue // dynamically assigned, cannot conflict statically
			}
			proto := p.Protocol
			if proto == "" {
				proto = "tcp"
			}
			key := hostPortKey{Port: p.Published, Protocol: proto}
			for _, prev := range seen[key] {
				if hostIPsOverlap(prev.hostIP, p.HostIP) {
					errs = append(errs, NewParseError(
						fmt.Sprintf("services.%s.ports[%d]", svc.Name, i),
						fmt.Sprintf("host port %d/%s already bound by service %q", p.Published, proto, prev.service),
						ErrHostPortConflict,
					))
				}
			}
			seen[key] = append(seen[key], binding{service: svc.Name, hostIP: p.HostIP})
		}
	}

	return errs
}

func hostIPsOverlap(a, b string) bool {
	wildcard := func(ip string) bool { return ip == "" || ip == "0.0.0.0" }
	if wildcard(a) || wildcard(b) {
		return true
	}
	return a == b
}

// validateEnvironment checks env key shape and required-env coverage.
func validateEnvironment(m *Manifest) []error {
	var errs []error

	for _, svc := range m.Services {
		for key := range svc.Environment {
			if !envKeyRegex.MatchString(key) {
				errs = append(errs, NewParseError(
					"services."+svc.Name+".environment",
					fmt.Sprintf("invalid environment variable key %q", key),
					ErrInvalidEnvKey,
				))
			}
		}

		missing := make([]string, 0)
		for _, key := range svc.RequiredEnv {
			if _, ok := svc.Environment[key]; !ok {
				missing = append(missing, key)
			}
		}
		slices.Sort(missing)
		for _, key := range missing {
			errs = append(errs, NewParseError(
				"services."+svc.Name+".environment",
				fmt.Sprintf("required environment variable %s is not set", key),
				ErrMissingEnv,
			))
		}
	}

	return errs
}

// validateVolumeRefs checks that named volume mounts reference declared volumes.
func validateVolumeRefs(m *Manifest) []error {
	var errs []error

	for _, svc := range m.Services {
		for i, mount := range svc.Volumes {
			if mount.Type != VolumeMountTypeVolume {
				continue
			}
			if m.VolumeByName(mount.Source) == nil {
				errs = append(errs, NewParseError(
					fmt.Sprintf("services.%s.volumes[%d]", svc.Name, i),
					fmt.Sprintf("named volume %q is not declared", mount.Source),
					ErrUnknownVolume,
				))
			}
		}
	}

	return errs
}

// validateDependencyRefs checks that depends_on entries name declared services.
func validateDependencyRefs(m *Manifest) []error {
	var errs []error

	for _, svc := range m.Services {
		for _, dep := range svc.DependsOn {
			if m.ServiceByName(dep) == nil {
				errs = append(errs, NewParseError(
					"services."+svc.Name+".depends_on",
					fmt.Sprintf("depends on unknown service %q", dep),
					ErrUnknownDependency,
				))
			}
		}
	}

	return errs
}
