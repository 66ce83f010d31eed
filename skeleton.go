package springbone

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Bone is one node of a skeletal hierarchy. Local TRS is authoritative;
// world transforms are cached by Skeleton.UpdateWorldTransforms and read
// by the physics pipeline. Attachment nodes (mesh sockets, helpers) live
// in the same tree but are skipped when walking bone chains.
type Bone struct {
	Name string

	LocalPosition mgl64.Vec3
	LocalRotation mgl64.Quat
	LocalScale    mgl64.Vec3

	// IsAttachment marks non-bone children (sockets, props). They still
	// receive world transforms but are never part of a spring chain.
	IsAttachment bool

	parent   *Bone
	children []*Bone

	worldPosition mgl64.Vec3
	worldRotation mgl64.Quat
	worldScale    mgl64.Vec3
}

func NewBone(name string, localPosition mgl64.Vec3) *Bone {
	return &Bone{
		Name:          name,
		LocalPosition: localPosition,
		LocalRotation: mgl64.QuatIdent(),
		LocalScale:    mgl64.Vec3{1, 1, 1},
		worldRotation: mgl64.QuatIdent(),
		worldScale:    mgl64.Vec3{1, 1, 1},
	}
}

func (b *Bone) AddChild(child *Bone) *Bone {
	child.parent = b
	b.children = append(b.children, child)
	return child
}

func (b *Bone) Parent() *Bone     { return b.parent }
func (b *Bone) Children() []*Bone { return b.children }

// FirstBoneChild returns the first non-attachment child, or nil. Spring
// chains follow exactly this child at every level, so branching hierarchies
// yield one chain per configured root rather than a tree walk.
func (b *Bone) FirstBoneChild() *Bone {
	for _, c := range b.children {
		if !c.IsAttachment {
			return c
		}
	}
	return nil
}

func (b *Bone) WorldPosition() mgl64.Vec3 { return b.worldPosition }
func (b *Bone) WorldRotation() mgl64.Quat { return b.worldRotation }
func (b *Bone) WorldScale() mgl64.Vec3    { return b.worldScale }

// Skeleton owns a bone tree and a name index. The simulation only ever
// reads world transforms and writes local rotations; pose authority stays
// with the host's animation layer.
type Skeleton struct {
	root  *Bone
	bones map[string]*Bone
	order []*Bone
}

func NewSkeleton(root *Bone) *Skeleton {
	sk := &Skeleton{
		root:  root,
		bones: make(map[string]*Bone),
	}
	sk.index(root)
	sk.UpdateWorldTransforms()
	return sk
}

func (sk *Skeleton) index(b *Bone) {
	sk.bones[b.Name] = b
	sk.order = append(sk.order, b)
	for _, c := range b.children {
		sk.index(c)
	}
}

func (sk *Skeleton) Root() *Bone { return sk.root }

// FindBone looks a bone up by exact, case-sensitive name.
func (sk *Skeleton) FindBone(name string) *Bone {
	return sk.bones[name]
}

// Bones returns all bones in hierarchy order (parents before children).
func (sk *Skeleton) Bones() []*Bone { return sk.order }

// UpdateWorldTransforms propagates local TRS down the tree. Call after the
// host has applied the frame's animation pose and before SpringBoneSystem.Update.
//
// WorldPos = ParentPos + ParentRot * (ParentScale * LocalPos)
// WorldRot = ParentRot * LocalRot (normalized)
// WorldScale = ParentScale * LocalScale, componentwise to preserve reflections.
func (sk *Skeleton) UpdateWorldTransforms() {
	for _, b := range sk.order {
		p := b.parent
		if p == nil {
			b.worldPosition = b.LocalPosition
			b.worldRotation = b.LocalRotation.Normalize()
			b.worldScale = b.LocalScale
			continue
		}
		scaledLocalPos := mgl64.Vec3{
			b.LocalPosition.X() * p.worldScale.X(),
			b.LocalPosition.Y() * p.worldScale.Y(),
			b.LocalPosition.Z() * p.worldScale.Z(),
		}
		b.worldPosition = p.worldPosition.Add(p.worldRotation.Rotate(scaledLocalPos))
		b.worldRotation = p.worldRotation.Mul(b.LocalRotation).Normalize()
		b.worldScale = mgl64.Vec3{
			p.worldScale.X() * b.LocalScale.X(),
			p.worldScale.Y() * b.LocalScale.Y(),
			p.worldScale.Z() * b.LocalScale.Z(),
		}
	}
}
