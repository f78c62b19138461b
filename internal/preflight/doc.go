// Package preflight provides readiness checks for external services
// and filesystem paths that VoxDub depends on.
//
// These checks run in two contexts:
//   - The daemon health endpoint reports CheckSystemDeps and RunAll so a
//     caller can see why a dub would fail before submitting one.
//   - The CLI "voxdub status" command prints the same results as a table.
//
// Each service check is gated by its configuration: unconfigured optional
// services are reported as skipped rather than failed.
package preflight
