package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseService() Service {
	return Service{
		Name:  "base",
		Image: "app:latest",
		Build: &BuildConfig{
			Context:    ".",
			Dockerfile: "Dockerfile",
			Args:       map[string]string{"PYTHON_REQUIREMENTS": "requirements.txt"},
		},
		Environment: map[string]string{
			"MODE":  "DEVELOPMENT",
			"DEBUG": "true",
		},
		Ports: []Port{
			{Target: 8000, Published: 8000, Protocol: "tcp"},
		},
		Volumes: []VolumeMount{
			{Type: VolumeMountTypeVolume, Source: "ui_node_modules", Target: "/code/ui/node_modules"},
		},
		DependsOn:   []string{"dev-db"},
		Entrypoint:  []string{"run.sh"},
		RequiredEnv: []string{"DJANGO_DATABASE_URL"},
	}
}

func TestMergeService_ChildWinsScalars(t *testing.T) {
	base := baseService()
	child := Service{
		Name:          "test-service",
		ContainerName: "app_service_test",
		Image:         "app:test",
		Extends:       &ExtendsRef{Service: "base"},
	}

	merged := mergeService(base, child)

	assert.Equal(t, "test-service", merged.Name)
	assert.Equal(t, "app_service_test", merged.ContainerName)
	assert.Equal(t, "app:test", merged.Image)
	assert.Nil(t, merged.Extends)
}

func TestMergeService_InheritsWhenChildUnset(t *testing.T) {
	base := baseService()
	child := Service{Name: "test-service", Extends: &ExtendsRef{Service: "base"}}

	merged := mergeService(base, child)

	assert.Equal(t, "app:latest", merged.Image)
	assert.Equal(t, []string{"run.sh"}, merged.Entrypoint)
	require.NotNil(t, merged.Build)
	assert.Equal(t, "Dockerfile", merged.Build.Dockerfile)
}

func TestMergeService_EnvironmentMapMerge(t *testing.T) {
	base := baseService()
	child := Service{
		Name:    "test-service",
		Extends: &ExtendsRef{Service: "base"},
		Environment: map[string]string{
			"MODE":     "TESTING",
			"TEST_KEY": "1",
		},
	}

	merged := mergeService(base, child)

	assert.Equal(t, "TESTING", merged.Environment["MODE"])
	assert.Equal(t, "true", merged.Environment["DEBUG"])
	assert.Equal(t, "1", merged.Environment["TEST_KEY"])
}

func TestMergeService_PortsAppendDeduplicated(t *testing.T) {
	base := baseService()
	child := Service{
		Name:    "test-service",
		Extends: &ExtendsRef{Service: "base"},
		Ports: []Port{
			{Target: 8000, Published: 8000, Protocol: "tcp"}, // duplicate of base
			{Target: 3000, Published: 3000, Protocol: "tcp"},
		},
	}

	merged := mergeService(base, child)

	require.Len(t, merged.Ports, 2)
	assert.Equal(t, uint32(8000), merged.Ports[0].Published)
	assert.Equal(t, uint32(3000), merged.Ports[1].Published)
}

func TestMergeService_DependsOnNotInherited(t *testing.T) {
	base := baseService()
	child := Service{Name: "test-service", Extends: &ExtendsRef{Service: "base"}}

	merged := mergeService(base, child)

	assert.Empty(t, merged.DependsOn)
}

func TestMergeService_EntrypointReplacedWholesale(t *testing.T) {
	base := baseService()
	child := Service{
		Name:       "test-service",
		Extends:    &ExtendsRef{Service: "base"},
		Entrypoint: []string{"run_tests.sh", "-x"},
	}

	merged := mergeService(base, child)

	assert.Equal(t, []string{"run_tests.sh", "-x"}, merged.Entrypoint)
}

func TestMergeService_BuildArgsMerge(t *testing.T) {
	base := baseService()
	child := Service{
		Name:    "test-service",
		Extends: &ExtendsRef{Service: "base"},
		Build: &BuildConfig{
			Args: map[string]string{"PYTHON_REQUIREMENTS": "requirements-test.txt"},
		},
	}

	merged := mergeService(base, child)

	require.NotNil(t, merged.Build)
	assert.Equal(t, ".", merged.Build.Context)
	assert.Equal(t, "requirements-test.txt", merged.Build.Args["PYTHON_REQUIREMENTS"])
}

func TestResolveExtends_TransitiveChain(t *testing.T) {
	m := &Manifest{
		Services: []Service{
			{Name: "a", Image: "app:latest", Environment: map[string]string{"A": "1"}},
			{Name: "b", Extends: &ExtendsRef{Service: "a"}, Environment: map[string]string{"B": "2"}},
			{Name: "c", Extends: &ExtendsRef{Service: "b"}, Environment: map[string]string{"C": "3"}},
		},
	}

	require.NoError(t, ResolveExtends(m, nil))

	c := m.ServiceByName("c")
	require.NotNil(t, c)
	assert.Equal(t, "app:latest", c.Image)
	assert.Equal(t, "1", c.Environment["A"])
	assert.Equal(t, "2", c.Environment["B"])
	assert.Equal(t, "3", c.Environment["C"])
}

func TestResolveExtends_Cycle(t *testing.T) {
	m := &Manifest{
		Services: []Service{
			{Name: "a", Extends: &ExtendsRef{Service: "b"}},
			{Name: "b", Extends: &ExtendsRef{Service: "a"}},
		},
	}

	err := ResolveExtends(m, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtendsCycle)
}

func TestResolveExtends_UnknownService(t *testing.T) {
	m := &Manifest{
		Services: []Service{
			{Name: "a", Extends: &ExtendsRef{Service: "missing"}},
		},
	}

	err := ResolveExtends(m, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtendsUnknownService)
}

func TestResolveExtends_CrossFileWithoutLoader(t *testing.T) {
	m := &Manifest{
		Services: []Service{
			{Name: "a", Extends: &ExtendsRef{File: "base.yaml", Service: "svc"}},
		},
	}

	err := ResolveExtends(m, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFeature)
}
