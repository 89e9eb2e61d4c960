package deployment

import (
	"github.com/mathesar-foundation/devstack/internal/core/manifest"
)

// =============================================================================
// Service Ordering Functions
// =============================================================================

// TopologicalSort sorts services by their depends_on hints using Kahn's
// algorithm. Services with no dependencies come first. depends_on is a
// start-order hint only; it carries no health semantics.
//
// The function implements a BFS-based topological sort:
//  1. Build a map of service dependencies (in-degree)
//  2. Start with services that have no dependencies (in-degree = 0)
//  3. Process each service, reducing the in-degree of its dependents
//  4. When a dependent's in-degree reaches 0, add it to the queue
//
// If a cycle exists (which is caught at parse time), remaining services are
// appended to the result as a fallback.
//
// Example:
//
//	// Services: dev-service → dev-db
//	services := []manifest.Service{
//	    {Name: "dev-service", DependsOn: []string{"dev-db"}},
//	    {Name: "dev-db"},
//	}
//	sorted := TopologicalSort(services)
//	// Result: [dev-db, dev-service]
func TopologicalSort(services []manifest.Service) []manifest.Service {
	if len(services) == 0 {
		return services
	}

	// Build dependency graph
	serviceMap := make(map[string]manifest.Service)
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)

	for _, svc := range services {
		serviceMap[svc.Name] = svc
		inDegree[svc.Name] = len(svc.DependsOn)
		for _, dep := range svc.DependsOn {
			dependents[dep] = append(dependents[dep], svc.Name)
		}
	}

	// Seed the queue in declaration order so ties resolve deterministically.
	var queue []string
	for _, svc := range services {
		if inDegree[svc.Name] == 0 {
			queue = append(queue, svc.Name)
		}
	}

	// Process queue (BFS)
	var result []manifest.Service
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		if svc, ok := serviceMap[name]; ok {
			result = append(result, svc)
		}

		// Reduce in-degree for dependents
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	// If we didn't get all services, there's a cycle (shouldn't happen after
	// parsing). Just append remaining services as fallback.
	if len(result) < len(services) {
		for _, svc := range services {
			found := false
			for _, r := range result {
				if r.Name == svc.Name {
					found = true
					break
				}
			}
			if !found {
				result = append(result, svc)
			}
		}
	}

	return result
}
