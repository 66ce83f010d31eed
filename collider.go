package springbone

import (
	"github.com/go-gl/mathgl/mgl64"
)

// SphereCollider is a coarse body proxy (head, torso, limb segment) that
// chains push their particles out of. Colliders are shared read-only inputs
// to every chain; no chain owns one.
type SphereCollider struct {
	Position mgl64.Vec3
	Radius   float64

	// BoneName optionally binds the collider to a skeleton bone, in which
	// case Position is refreshed from that bone's world position by
	// UpdateCollidersFromBones (and from the cached bone on every Update
	// once resolved).
	BoneName string

	bone *Bone
}

// refresh pulls the position from the bound bone, if any has been resolved.
func (c *SphereCollider) refresh() {
	if c.bone != nil {
		c.Position = c.bone.WorldPosition()
	}
}
