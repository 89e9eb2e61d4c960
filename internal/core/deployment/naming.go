package deployment

import "fmt"

// =============================================================================
// Resource Naming Functions
// =============================================================================

// NetworkName generates the network name for a project.
// Pattern: devstack_{project}
//
// Example:
//
//	NetworkName("mathesar") // returns "devstack_mathesar"
func NetworkName(project string) string {
	return fmt.Sprintf("devstack_%s", project)
}

// VolumeName generates the name of a managed named volume.
// Pattern: {project}_{volumeName}
//
// Example:
//
//	VolumeName("mathesar", "dev_postgres_data") // returns "mathesar_dev_postgres_data"
func VolumeName(project, volumeName string) string {
	return fmt.Sprintf("%s_%s", project, volumeName)
}

// ImageTag generates the tag for a locally built service image.
// Pattern: devstack/{project}_{service}:latest
func ImageTag(project, serviceName string) string {
	return fmt.Sprintf("devstack/%s_%s:latest", project, serviceName)
}
