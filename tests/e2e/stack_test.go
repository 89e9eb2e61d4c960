// Package e2e verifies the shipped reference manifest end to end: it loads
// devstack.yaml from the repository root, resolves inheritance, and checks
// every property the stack relies on, without touching a Docker daemon.
package e2e

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathesar-foundation/devstack/internal/core/deployment"
	"github.com/mathesar-foundation/devstack/internal/core/manifest"
	"github.com/mathesar-foundation/devstack/internal/shell/docker"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..")
}

func loadReferenceManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load(filepath.Join(repoRoot(t), "devstack.yaml"))
	require.NoError(t, err)
	return m
}

func TestReferenceManifest_Parses(t *testing.T) {
	m := loadReferenceManifest(t)

	require.Len(t, m.Services, 3)
	require.NotNil(t, m.ServiceByName("dev-db"))
	require.NotNil(t, m.ServiceByName("dev-service"))
	require.NotNil(t, m.ServiceByName("test-service"))

	assert.NotNil(t, m.VolumeByName("ui_node_modules"))
	assert.NotNil(t, m.VolumeByName("dev_postgres_data"))
}

func TestReferenceManifest_Validates(t *testing.T) {
	m := loadReferenceManifest(t)
	assert.Empty(t, manifest.Validate(m))
}

func TestReferenceManifest_BuildContextsExist(t *testing.T) {
	m := loadReferenceManifest(t)
	assert.NoError(t, docker.CheckBuildContexts(m))
}

func TestReferenceManifest_ExtendsResolved(t *testing.T) {
	m := loadReferenceManifest(t)

	for _, name := range []string{"dev-service", "test-service"} {
		svc := m.ServiceByName(name)
		require.NotNil(t, svc)

		assert.Nil(t, svc.Extends)
		require.NotNil(t, svc.Build, "service %s should inherit the shared build", name)
		assert.Equal(t, "Dockerfile.devstack", svc.Build.Dockerfile)

		assert.Contains(t, svc.Environment, "DJANGO_DATABASE_URL")
		assert.Contains(t, svc.Environment, "MATHESAR_DATABASES")
		assert.Contains(t, svc.Environment, "DJANGO_SETTINGS_MODULE")
	}

	dev := m.ServiceByName("dev-service")
	assert.Equal(t, "DEVELOPMENT", dev.Environment["MODE"])
	test := m.ServiceByName("test-service")
	assert.Equal(t, "TEST", test.Environment["MODE"])
	assert.Equal(t, []string{"pytest"}, test.Entrypoint)
}

func TestReferenceManifest_NoHostPortConflicts(t *testing.T) {
	m := loadReferenceManifest(t)

	seen := map[uint32]string{}
	for _, svc := range m.Services {
		for _, p := range svc.Ports {
			if p.Published == 0 {
				continue
			}
			prev, dup := seen[p.Published]
			require.False(t, dup, "port %d bound by both %s and %s", p.Published, prev, svc.Name)
			seen[p.Published] = svc.Name
		}
	}
}

func TestReferenceManifest_ContainerNamesUnique(t *testing.T) {
	m := loadReferenceManifest(t)

	seen := map[string]bool{}
	for _, svc := range m.Services {
		name := svc.EffectiveContainerName("mathesar")
		assert.False(t, seen[name], "duplicate container name %s", name)
		seen[name] = true
	}
}

func TestReferenceManifest_PlansFullStack(t *testing.T) {
	m := loadReferenceManifest(t)

	plans := deployment.PlanProject("mathesar", m, map[string]string{})
	require.Len(t, plans, 3)

	// dev-db carries no dependencies and must start first.
	assert.Equal(t, "dev-db", plans[0].ServiceName)

	byService := map[string]deployment.ContainerPlan{}
	for _, p := range plans {
		byService[p.ServiceName] = p
	}

	db := byService["dev-db"]
	assert.Equal(t, "postgres:13", db.Image)
	require.Len(t, db.Volumes, 1)
	assert.Equal(t, "mathesar_dev_postgres_data", db.Volumes[0].Source)
	assert.True(t, db.Volumes[0].Named)

	dev := byService["dev-service"]
	require.NotNil(t, dev.Build)
	assert.Equal(t, "devstack/mathesar_dev-service:latest", dev.Build.Tag)
	assert.Equal(t, repoRoot(t), filepath.Clean(dev.Build.ContextDir))

	// The superuser password placeholder has a default and resolves without
	// any host environment.
	assert.Equal(t, "password", dev.Env["DJANGO_SUPERUSER_PASSWORD"])
}

func TestReferenceManifest_PlaceholderSubstitution(t *testing.T) {
	m := loadReferenceManifest(t)

	plans := deployment.PlanProject("mathesar", m, map[string]string{
		"DJANGO_SUPERUSER_PASSWORD": "hunter2",
	})

	for _, p := range plans {
		if p.ServiceName == "dev-service" {
			assert.Equal(t, "hunter2", p.Env["DJANGO_SUPERUSER_PASSWORD"])
		}
	}
}
