package manifest

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
)

// =============================================================================
// Extends Resolution
// =============================================================================

// FileLoader loads a manifest from a path. Load satisfies it; tests can
// substitute an in-memory loader.
type FileLoader func(path string) (*Manifest, error)

// ResolveExtends resolves every extends reference in the manifest by statically
// merging the base service definition into the extending service.
//
// Merge rules (compose-spec semantics):
//   - scalar fields (image, container_name, restart): child wins when set
//   - entrypoint and command: replaced wholesale when the child sets them
//   - environment, labels, build args: map merge, child wins per key
//   - ports and volumes: base entries first, child entries appended, exact
//     duplicates removed
//   - depends_on is NOT inherited
//
// Cross-file references resolve through loadFile, relative to m.SourceDir.
// A cycle in the extends chain is an error, as is an unknown base service.
func ResolveExtends(m *Manifest, loadFile FileLoader) error {
	cache := make(map[string]*Manifest)

	for i := range m.Services {
		resolved, err := resolveService(m, m.Services[i], loadFile, cache, map[string]bool{m.Services[i].Name: true})
		if err != nil {
			return err
		}
		m.Services[i] = resolved
	}

	return nil
}

// resolveService resolves a single service's extends chain transitively.
// seen tracks same-file chain membership for cycle detection.
func resolveService(m *Manifest, svc Service, loadFile FileLoader, cache map[string]*Manifest, seen map[string]bool) (Service, error) {
	if svc.Extends == nil {
		return svc, nil
	}

	ref := svc.Extends
	field := "services." + svc.Name + ".extends"

	var base *Service
	if ref.File == "" {
		if seen[ref.Service] {
			return Service{}, NewParseError(field, "extends chain forms a cycle through "+ref.Service, ErrExtendsCycle)
		}
		found := m.ServiceByName(ref.Service)
		if found == nil {
			return Service{}, NewParseError(field, "unknown service "+ref.Service, ErrExtendsUnknownService)
		}
		seen[ref.Service] = true
		resolved, err := resolveService(m, *found, loadFile, cache, seen)
		if err != nil {
			return Service{}, err
		}
		base = &resolved
	} else {
		if loadFile == nil {
			return Service{}, NewParseError(field, "cross-file extends requires a file loader", ErrUnsupportedFeature)
		}
		path := ref.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.SourceDir, path)
		}
		other, ok := cache[path]
		if !ok {
			loaded, err := loadFile(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return Service{}, NewParseError(field, "cannot load "+ref.File, ErrExtendsFileNotFound)
				}
				// The file exists but is broken; surface the real cause.
				return Service{}, NewParseError(field, "cannot load "+ref.File, err)
			}
			cache[path] = loaded
			other = loaded
		}
		// Load resolves the other file's own extends chain, so the base
		// arrives fully merged.
		found := other.ServiceByName(ref.Service)
		if found == nil {
			return Service{}, NewParseError(field, "unknown service "+ref.Service+" in "+ref.File, ErrExtendsUnknownService)
		}
		base = found
	}

	merged := mergeService(*base, svc)
	return merged, nil
}

// mergeService merges a base service into a child, child taking precedence.
func mergeService(base, child Service) Service {
	out := child
	out.Extends = nil

	if out.ContainerName == "" {
		out.ContainerName = base.ContainerName
	}
	if out.Image == "" {
		out.Image = base.Image
	}
	if out.Restart == "" {
		out.Restart = base.Restart
	}
	if len(out.Entrypoint) == 0 {
		out.Entrypoint = slices.Clone(base.Entrypoint)
	}
	if len(out.Command) == 0 {
		out.Command = slices.Clone(base.Command)
	}

	out.Build = mergeBuild(base.Build, child.Build)
	out.Environment = mergeStringMap(base.Environment, child.Environment)
	out.Labels = mergeStringMap(base.Labels, child.Labels)
	out.Ports = appendUnique(base.Ports, child.Ports)
	out.Volumes = appendUnique(base.Volumes, child.Volumes)

	out.RequiredEnv = appendUnique(base.RequiredEnv, child.RequiredEnv)
	slices.Sort(out.RequiredEnv)

	return out
}

func mergeBuild(base, child *BuildConfig) *BuildConfig {
	if child == nil && base == nil {
		return nil
	}
	if child == nil {
		cp := *base
		cp.Args = mergeStringMap(base.Args, nil)
		return &cp
	}
	if base == nil {
		return child
	}

	out := *child
	if out.Context == "" {
		out.Context = base.Context
	}
	if out.Dockerfile == "" {
		out.Dockerfile = base.Dockerfile
	}
	out.Args = mergeStringMap(base.Args, child.Args)
	return &out
}

func mergeStringMap(base, child map[string]string) map[string]string {
	if base == nil && child == nil {
		return nil
	}
	out := make(map[string]string, len(base)+len(child))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

// appendUnique returns base followed by child entries, dropping child entries
// equal to one already present.
func appendUnique[T comparable](base, child []T) []T {
	if len(base) == 0 && len(child) == 0 {
		return nil
	}
	out := slices.Clone(base)
	for _, item := range child {
		if !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}
