package deployment

import "fmt"

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ContainerName generates the name of one replica of a service.
// Pattern: {project}_{service}_{num}
//
// Example:
//
//	ContainerName("shop", "web", 2) // returns "shop_web_2"
func ContainerName(project, service string, num int) string {
	return fmt.Sprintf("%s_%s_%d", project, service, num)
}

// ImageName generates the default image of a service without an image.
// Pattern: {project}_{service}
//
// Example:
//
//	ImageName("shop", "web") // returns "shop_web"
func ImageName(project, service string) string {
	return fmt.Sprintf("%s_%s", project, service)
}

// InfraName generates the name of a project's namespace anchor container.
// Pattern: {project}_infra
//
// Example:
//
//	InfraName("shop") // returns "shop_infra"
func InfraName(project string) string {
	return fmt.Sprintf("%s_infra", project)
}
