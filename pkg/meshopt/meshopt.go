// Package meshopt reduces and reorders triangle meshes for rendering.
//
// It provides quadric edge-collapse simplification (optionally weighted by
// vertex attributes), grid-clustering sloppy simplification, vertex cache
// optimization and vertex welding through deterministic remap tables. All
// functions are pure: inputs are never modified and outputs are freshly
// allocated, so buffers may be shared across goroutines.
package meshopt

// Version identifies the algorithm revision. Results for identical input are
// stable within a version.
const Version = "meshopt-go 0.21"

// Available reports whether the optimizer can be used. It exists for host
// integrations that check for optional native backends; this implementation is
// pure Go and always available.
func Available() bool { return true }
