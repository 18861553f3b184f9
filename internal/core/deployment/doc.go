// Package deployment turns compose services into container descriptors.
//
// This package contains the functional core logic for planning a project:
// every function is pure (no I/O, no side effects) and works on values
// handed to it by the caller.
//
// # Functions
//
//   - Naming: Generate consistent container and image names (ContainerName, ImageName)
//   - Expansion: Expand services into one Container per replica (Expand)
//   - Dependencies: Compute each container's dependency closure (ResolveDependencies)
//   - Ordering: Order containers for launch (Order)
//
// # Usage
//
// The planner in internal/engine chains these functions, then hands the
// ordered containers to a topology strategy and the argument builder.
//
//	containers, index := deployment.Expand(doc.Services, opts)
//	containers, err := deployment.ResolveDependencies(containers, index, false)
//	containers, err = deployment.Order(containers, deployment.OrderingLegacy)
package deployment
