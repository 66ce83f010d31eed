package springbone

import (
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeBranchedSkeleton builds a root with three independent chain runs
// hanging off it: ArmL_1..2, ArmR_1..2, Tail_1..2.
func makeBranchedSkeleton() *Skeleton {
	root := NewBone("Hips", mgl64.Vec3{})
	for _, name := range []string{"ArmL", "ArmR", "Tail"} {
		first := root.AddChild(NewBone(name+"_1", mgl64.Vec3{0, -1, 0}))
		first.AddChild(NewBone(name+"_2", mgl64.Vec3{0, -1, 0}))
	}
	return NewSkeleton(root)
}

func newTestSystem() *SpringBoneSystem {
	sys := NewSpringBoneSystem()
	sys.SetLogger(NewNopLogger())
	return sys
}

func TestSystemAddChain(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()

	chain := sys.AddChain(sk, DefaultChainConfig("ArmL_1"))
	require.NotNil(t, chain)
	assert.Equal(t, 2, chain.ParticleCount())
	assert.Equal(t, "ArmL_1", chain.RootBoneName())
	assert.NotEmpty(t, chain.ID())
	assert.Same(t, chain, sys.Chain("ArmL_1"))
}

func TestSystemAddChainMissingRoot(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()

	chain := sys.AddChain(sk, DefaultChainConfig("DoesNotExist"))
	assert.Nil(t, chain)
	assert.Empty(t, sys.Chains())

	// Root lookup is case-sensitive, unlike the pattern matcher.
	chain = sys.AddChain(sk, DefaultChainConfig("arml_1"))
	assert.Nil(t, chain)

	// The miss must not poison the system for later adds.
	chain = sys.AddChain(sk, DefaultChainConfig("ArmL_1"))
	assert.NotNil(t, chain)
}

func TestSystemAddChainReplacesExisting(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()

	sys.AddChain(sk, DefaultChainConfig("ArmL_1"))

	cfg := DefaultChainConfig("ArmL_1")
	cfg.Stiffness = 0.9
	replacement := sys.AddChain(sk, cfg)

	require.Len(t, sys.Chains(), 1)
	assert.Same(t, replacement, sys.Chain("ArmL_1"))
	assert.Equal(t, 0.9, sys.Chain("ArmL_1").Config().Stiffness)
}

func TestSystemRemoveChain(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()

	sys.AddChain(sk, DefaultChainConfig("ArmL_1"))
	sys.AddChain(sk, DefaultChainConfig("ArmR_1"))
	sys.AddChain(sk, DefaultChainConfig("Tail_1"))

	sys.RemoveChain("ArmR_1")

	// Removing an unknown chain is a no-op.
	sys.RemoveChain("ArmR_1")
	sys.RemoveChain("Nope")

	require.Len(t, sys.Chains(), 2)
	assert.Nil(t, sys.Chain("ArmR_1"))

	// The name index must survive the slice compaction.
	require.NotNil(t, sys.Chain("ArmL_1"))
	require.NotNil(t, sys.Chain("Tail_1"))
	assert.Equal(t, "ArmL_1", sys.Chain("ArmL_1").RootBoneName())
	assert.Equal(t, "Tail_1", sys.Chain("Tail_1").RootBoneName())
	assert.Equal(t, 4, sys.ParticleCount())
}

func TestSystemAddChainFromConfigWildcard(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()

	sys.AddChainFromConfig(sk, []GarmentBoneConfig{
		{BoneName: "arm*_1", Stiffness: 0.8},
		{BoneName: "TAIL_1"},
		{BoneName: "Nope_*"},
	})

	// arm*_1 matches ArmL_1 and ArmR_1 case-insensitively; the exact name
	// matches case-insensitively too; the unmatched pattern adds nothing.
	require.Len(t, sys.Chains(), 3)
	require.NotNil(t, sys.Chain("ArmL_1"))
	require.NotNil(t, sys.Chain("ArmR_1"))
	require.NotNil(t, sys.Chain("Tail_1"))

	assert.Equal(t, 0.8, sys.Chain("ArmL_1").Config().Stiffness)
	// Unset metadata fields fall back to defaults.
	assert.Equal(t, DefaultChainConfig("Tail_1"), sys.Chain("Tail_1").Config())
}

func TestMatchBonesAnchoring(t *testing.T) {
	sk := makeBranchedSkeleton()

	// A wildcard pattern is anchored at both ends: "Arm*" must not match
	// via substring on "Tail_1", and "rmL_1" must not match "ArmL_1".
	assert.Len(t, matchBones(sk, "Arm*"), 4)
	assert.Empty(t, matchBones(sk, "rmL_1"))
	assert.Len(t, matchBones(sk, "*_2"), 3)
	assert.Len(t, matchBones(sk, "Hips"), 1)
}

func TestSystemTimeScaleClamp(t *testing.T) {
	sys := newTestSystem()

	sys.SetTimeScale(0.01)
	assert.Equal(t, 0.1, sys.TimeScale())

	sys.SetTimeScale(10)
	assert.Equal(t, 3.0, sys.TimeScale())

	sys.SetTimeScale(1.5)
	assert.Equal(t, 1.5, sys.TimeScale())
}

func TestSystemPauseIsNoOp(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()
	sys.AddChain(sk, DefaultChainConfig("Tail_1"))

	sys.Update(1.0 / 60.0)

	sys.SetPaused(true)
	snapshot := append([]Particle(nil), sys.Chain("Tail_1").Particles()...)
	rotations := make([]mgl64.Quat, 0)
	for _, b := range sk.Bones() {
		rotations = append(rotations, b.LocalRotation)
	}

	for i := 0; i < 5; i++ {
		sys.Update(1.0 / 60.0)
	}

	if !reflect.DeepEqual(snapshot, sys.Chain("Tail_1").Particles()) {
		t.Errorf("Paused update mutated particle state")
	}
	for i, b := range sk.Bones() {
		if b.LocalRotation != rotations[i] {
			t.Errorf("Paused update touched bone %q rotation", b.Name)
		}
	}

	sys.SetPaused(false)
	sys.Update(1.0 / 60.0)
	if reflect.DeepEqual(snapshot, sys.Chain("Tail_1").Particles()) {
		t.Errorf("Unpaused update did not advance the simulation")
	}
}

func TestSystemReset(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()
	sys.AddChain(sk, DefaultChainConfig("ArmL_1"))
	sys.AddChain(sk, DefaultChainConfig("Tail_1"))

	for i := 0; i < 30; i++ {
		sys.Update(1.0 / 60.0)
	}

	sys.Reset()

	for _, chain := range sys.Chains() {
		for i, p := range chain.Particles() {
			want := p.Bone.WorldPosition()
			assert.Equal(t, want, p.Position, "chain %s particle %d position", chain.RootBoneName(), i)
			assert.Equal(t, want, p.PreviousPosition, "chain %s particle %d previous position", chain.RootBoneName(), i)
		}
	}

	// With forces off, the first post-reset step must produce no net
	// displacement: any motion would be phantom velocity.
	sys.SetGravity(mgl64.Vec3{})
	sys.Update(1.0 / 60.0)
	for _, chain := range sys.Chains() {
		for i, p := range chain.Particles() {
			assert.True(t, p.Position.ApproxEqualThreshold(p.Bone.WorldPosition(), 1e-9),
				"chain %s particle %d drifted to %v", chain.RootBoneName(), i, p.Position)
		}
	}
}

func TestSystemCollidersFollowBones(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()

	sys.AddCollider(mgl64.Vec3{}, 0.3, "Tail_2")
	sys.AddCollider(mgl64.Vec3{5, 5, 5}, 0.2, "")

	sys.UpdateCollidersFromBones(sk)
	assert.Equal(t, sk.FindBone("Tail_2").WorldPosition(), sys.Colliders()[0].Position)
	// Unbound colliders keep their explicit position.
	assert.Equal(t, mgl64.Vec3{5, 5, 5}, sys.Colliders()[1].Position)

	// After the bone is resolved once, Update keeps following it.
	sk.FindBone("Tail_2").LocalPosition = mgl64.Vec3{0, -3, 0}
	sk.UpdateWorldTransforms()
	sys.Update(1.0 / 60.0)
	assert.Equal(t, sk.FindBone("Tail_2").WorldPosition(), sys.Colliders()[0].Position)
}

func TestSystemRemoveCollider(t *testing.T) {
	sys := newTestSystem()
	sys.AddCollider(mgl64.Vec3{1, 0, 0}, 0.1, "")
	sys.AddCollider(mgl64.Vec3{2, 0, 0}, 0.2, "")

	sys.RemoveCollider(5) // out of range, no-op
	sys.RemoveCollider(-1)
	require.Len(t, sys.Colliders(), 2)

	sys.RemoveCollider(0)
	require.Len(t, sys.Colliders(), 1)
	assert.Equal(t, 0.2, sys.Colliders()[0].Radius)

	sys.ClearColliders()
	assert.Empty(t, sys.Colliders())
}

func TestSystemStatsAndParticleCount(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()
	sys.AddChain(sk, DefaultChainConfig("ArmL_1"))
	sys.AddChain(sk, DefaultChainConfig("ArmR_1"))

	assert.Equal(t, 4, sys.ParticleCount())

	stats := sys.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "ArmL_1", stats[0].RootBone)
	assert.Equal(t, 2, stats[0].Particles)
	assert.NotEqual(t, stats[0].ID, stats[1].ID)
}

func TestSystemDispose(t *testing.T) {
	sys := newTestSystem()
	sk := makeBranchedSkeleton()
	sys.AddChain(sk, DefaultChainConfig("ArmL_1"))
	sys.AddCollider(mgl64.Vec3{}, 0.5, "Hips")

	sys.Dispose()

	assert.Empty(t, sys.Chains())
	assert.Empty(t, sys.Colliders())
	assert.Equal(t, 0, sys.ParticleCount())

	// Update after dispose is harmless, and the system remains usable.
	sys.Update(1.0 / 60.0)
	require.NotNil(t, sys.AddChain(sk, DefaultChainConfig("Tail_1")))
}
