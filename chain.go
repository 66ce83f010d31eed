package springbone

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// maxChainDepth caps how many descendants a chain may collect below its
// root. This is a safety valve against malformed or cyclic bone data, not a
// physical constant; garments needing longer chains must split them.
const maxChainDepth = 20

// maxStepSeconds bounds a single integration step regardless of the frame
// time the host reports. Frame hitches otherwise turn into huge dt² force
// contributions and the integrator blows up.
const maxStepSeconds = 1.0 / 30.0

// rotationBlend is the per-frame slerp factor applied when writing simulated
// directions back into bone rotations. A hard set pops visibly on single
// iteration updates; 0.5 trades one frame of lag for smoothness. Note this
// is per frame, not per second, so perceived stiffness varies with the
// host's frame rate.
const rotationBlend = 0.5

// boneUp is the canonical bone axis: bones are modeled as pointing at their
// first child along local +Y, which is what the write-back step rotates onto
// the simulated direction.
var boneUp = mgl64.Vec3{0, 1, 0}

// SpringChain simulates one unbranched run of bones as a constrained Verlet
// particle chain. Particle 0 is the pinned root; every other particle has
// exactly one parent earlier in the slice.
type SpringChain struct {
	id        string
	config    SpringChainConfig
	particles []Particle
}

// newSpringChain builds the particle chain by walking first bone-children
// down from root. Bind-pose world transforms must be current on the
// skeleton when this runs; rest lengths are measured from them.
func newSpringChain(root *Bone, config SpringChainConfig) *SpringChain {
	bones := collectBones(root)

	chain := &SpringChain{
		id:        uuid.NewString(),
		config:    config,
		particles: make([]Particle, 0, len(bones)),
	}

	for i, bone := range bones {
		p := Particle{
			Position:         bone.WorldPosition(),
			PreviousPosition: bone.WorldPosition(),
			RestPosition:     bone.LocalPosition,
			Bone:             bone,
			ParentIndex:      i - 1,
			Mass:             1.0,
		}
		if i == 0 {
			p.Pinned = true
		} else {
			p.RestLength = bone.WorldPosition().Sub(bones[i-1].WorldPosition()).Len()
		}
		chain.particles = append(chain.particles, p)
	}

	return chain
}

// collectBones walks the hierarchy from root, following only the first
// bone-type child at each level. Deeper hierarchies are silently truncated
// at maxChainDepth descendants.
func collectBones(root *Bone) []*Bone {
	bones := []*Bone{root}
	current := root.FirstBoneChild()
	for current != nil && len(bones) <= maxChainDepth {
		bones = append(bones, current)
		current = current.FirstBoneChild()
	}
	return bones
}

func (c *SpringChain) ID() string                { return c.id }
func (c *SpringChain) RootBoneName() string      { return c.config.RootBoneName }
func (c *SpringChain) Config() SpringChainConfig { return c.config }
func (c *SpringChain) Particles() []Particle     { return c.particles }
func (c *SpringChain) ParticleCount() int        { return len(c.particles) }

// Update runs the per-frame pipeline for this chain: pin refresh, Verlet
// integration, iterated distance constraints, sphere collision, and bone
// rotation write-back. gravity and wind are the system-level vectors;
// per-chain multipliers come from the config.
func (c *SpringChain) Update(dt float64, gravity, wind mgl64.Vec3, colliders []SphereCollider) {
	if dt > maxStepSeconds {
		dt = maxStepSeconds
	}

	c.refreshPinned()
	c.integrate(dt, gravity, wind)
	for i := 0; i < c.config.Iterations; i++ {
		c.solveConstraints()
	}
	c.solveCollisions(colliders)
	c.applyToBones()
}

// refreshPinned snaps pinned particles to their bone's live world position.
// This is how externally driven animation carries the chain root around.
func (c *SpringChain) refreshPinned() {
	for i := range c.particles {
		p := &c.particles[i]
		if !p.Pinned {
			continue
		}
		p.Position = p.Bone.WorldPosition()
		p.PreviousPosition = p.Position
	}
}

// integrate advances non-pinned particles by semi-implicit Verlet: damp the
// implicit velocity, then accumulate gravity, wind and the stiffness pull
// toward the bind-pose offset rotated by the parent's current orientation.
func (c *SpringChain) integrate(dt float64, gravity, wind mgl64.Vec3) {
	dt2 := dt * dt

	for i := range c.particles {
		p := &c.particles[i]
		if p.Pinned {
			continue
		}

		velocity := p.Position.Sub(p.PreviousPosition).Mul(1.0 - c.config.Damping)

		force := gravity.Mul(c.config.Gravity * dt2)
		force = force.Add(wind.Mul(c.config.WindInfluence * dt2))

		parent := &c.particles[p.ParentIndex]
		restTarget := parent.Position.Add(parent.Bone.WorldRotation().Rotate(p.RestPosition))
		force = force.Add(restTarget.Sub(p.Position).Mul(c.config.Stiffness * 0.1))

		p.PreviousPosition = p.Position
		p.Position = p.Position.Add(velocity).Add(force)
	}
}

// solveConstraints relaxes every parent/child pair toward its rest length.
// Corrections split 50/50 unless one side is pinned, in which case the
// movable side absorbs the whole error. Coincident pairs are skipped this
// frame rather than divided by zero.
func (c *SpringChain) solveConstraints() {
	for i := 1; i < len(c.particles); i++ {
		p := &c.particles[i]
		parent := &c.particles[p.ParentIndex]

		delta := p.Position.Sub(parent.Position)
		dist := delta.Len()
		if dist < 1e-4 {
			continue
		}

		diff := (dist - p.RestLength) / dist
		switch {
		case parent.Pinned && p.Pinned:
			// Both driven externally, nothing to correct.
		case parent.Pinned:
			p.Position = p.Position.Sub(delta.Mul(diff))
		case p.Pinned:
			parent.Position = parent.Position.Add(delta.Mul(diff))
		default:
			half := delta.Mul(diff * 0.5)
			p.Position = p.Position.Sub(half)
			parent.Position = parent.Position.Add(half)
		}
	}
}

// solveCollisions pushes non-pinned particles out of every collider sphere
// by exactly the penetration depth. Single positional pass, no sweeping:
// fast particles can tunnel thin colliders, which is acceptable for coarse
// body proxies.
func (c *SpringChain) solveCollisions(colliders []SphereCollider) {
	for i := range c.particles {
		p := &c.particles[i]
		if p.Pinned {
			continue
		}

		for j := range colliders {
			col := &colliders[j]
			delta := p.Position.Sub(col.Position)
			dist := delta.Len()
			minDist := col.Radius + c.config.CollisionRadius
			if dist >= minDist || dist < 1e-6 {
				continue
			}
			p.Position = col.Position.Add(delta.Mul(minDist / dist))
		}
	}
}

// applyToBones reconstructs bone orientations from simulated positions: the
// parent bone of each particle is rotated so its +Y axis points at the
// particle, converted into the parent bone's local space, then blended onto
// the existing local rotation.
func (c *SpringChain) applyToBones() {
	for i := 1; i < len(c.particles); i++ {
		p := &c.particles[i]
		parent := &c.particles[p.ParentIndex]

		dir := p.Position.Sub(parent.Position)
		if dir.Len() < 1e-4 {
			continue
		}

		targetWorld := mgl64.QuatBetweenVectors(boneUp, dir.Normalize())

		bone := parent.Bone
		parentWorld := mgl64.QuatIdent()
		if bone.Parent() != nil {
			parentWorld = bone.Parent().WorldRotation()
		}
		targetLocal := parentWorld.Inverse().Mul(targetWorld)

		bone.LocalRotation = mgl64.QuatSlerp(bone.LocalRotation, targetLocal, rotationBlend).Normalize()
	}
}

// Reset snaps every particle onto its bone's current world position and
// clears the implicit velocity. Call after pose teleports.
func (c *SpringChain) Reset() {
	for i := range c.particles {
		p := &c.particles[i]
		p.Position = p.Bone.WorldPosition()
		p.PreviousPosition = p.Position
	}
}
