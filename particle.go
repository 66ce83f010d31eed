package springbone

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Particle is one Verlet point mass bound to a skeletal bone. Velocity is
// implicit in the Position/PreviousPosition pair; there is no stored
// velocity vector.
type Particle struct {
	Position         mgl64.Vec3
	PreviousPosition mgl64.Vec3

	// RestPosition is the bone's local offset from its parent at bind
	// time. The stiffness term pulls the particle back toward this offset
	// rotated into the parent's current world orientation.
	RestPosition mgl64.Vec3

	// Bone is a borrowed handle into the host skeleton. The particle never
	// owns the bone's lifetime; dispose chains before tearing the skeleton
	// down.
	Bone *Bone

	// ParentIndex is the index of the parent particle within the owning
	// chain, or -1 for the chain root.
	ParentIndex int

	// RestLength is the bind-time distance to the parent particle; the
	// distance constraint drives the pair back toward it every frame.
	RestLength float64

	Mass float64

	// Pinned particles are driven from the live bone transform each frame
	// and excluded from integration. Only the chain root is pinned.
	Pinned bool
}
