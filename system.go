package springbone

import (
	"regexp"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	minTimeScale = 0.1
	maxTimeScale = 3.0
)

// SpringBoneSystem owns a set of spring chains plus the global inputs they
// share: gravity, wind and collider spheres. The host drives it once per
// frame, after animation has posed the skeleton and before rendering reads
// the bone rotations back:
//
//	skeleton.UpdateWorldTransforms()
//	system.Update(dt)
//
// Everything here is single-threaded; chains never read each other's state,
// and shared inputs are only mutated between frames by the host.
type SpringBoneSystem struct {
	chains     []*SpringChain
	chainIndex map[string]int
	colliders  []SphereCollider

	gravity   mgl64.Vec3
	wind      mgl64.Vec3
	timeScale float64
	paused    bool

	log Logger
}

func NewSpringBoneSystem() *SpringBoneSystem {
	return &SpringBoneSystem{
		chainIndex: make(map[string]int),
		gravity:    mgl64.Vec3{0, -9.81, 0},
		timeScale:  1.0,
		log:        NewDefaultLogger("springbone", false),
	}
}

// SetLogger replaces the system logger. Passing nil installs a no-op logger.
func (s *SpringBoneSystem) SetLogger(log Logger) {
	if log == nil {
		log = NewNopLogger()
	}
	s.log = log
}

// AddChain builds a chain rooted at config.RootBoneName, which must match a
// skeleton bone exactly (case-sensitive). A missing root bone is a
// recoverable configuration error: it logs a warning and returns nil, and
// the rest of the system keeps running. An existing chain with the same
// root is replaced.
func (s *SpringBoneSystem) AddChain(skeleton *Skeleton, config SpringChainConfig) *SpringChain {
	root := skeleton.FindBone(config.RootBoneName)
	if root == nil {
		s.log.Warnf("spring chain root bone %q not found in skeleton", config.RootBoneName)
		return nil
	}

	if _, exists := s.chainIndex[config.RootBoneName]; exists {
		s.RemoveChain(config.RootBoneName)
	}

	chain := newSpringChain(root, config)
	s.chainIndex[config.RootBoneName] = len(s.chains)
	s.chains = append(s.chains, chain)

	s.log.Debugf("spring chain %s added at %q with %d particles", chain.ID(), config.RootBoneName, chain.ParticleCount())
	return chain
}

// AddChainFromConfig resolves each garment metadata record against the
// skeleton and adds one chain per matching bone. A record's BoneName is
// matched case-insensitively, either exactly or as a "*" wildcard pattern
// anchored at both ends, so one entry like "Hair_*" spawns a chain per
// hair strand.
func (s *SpringBoneSystem) AddChainFromConfig(skeleton *Skeleton, configs []GarmentBoneConfig) {
	for _, meta := range configs {
		matches := matchBones(skeleton, meta.BoneName)
		if len(matches) == 0 {
			s.log.Warnf("garment bone pattern %q matched no skeleton bones", meta.BoneName)
			continue
		}
		for _, bone := range matches {
			s.AddChain(skeleton, chainConfigFrom(meta, bone.Name))
		}
	}
}

func matchBones(skeleton *Skeleton, pattern string) []*Bone {
	var matches []*Bone

	if strings.Contains(pattern, "*") {
		parts := strings.Split(pattern, "*")
		for i, part := range parts {
			parts[i] = regexp.QuoteMeta(part)
		}
		re := regexp.MustCompile("(?i)^" + strings.Join(parts, ".*") + "$")
		for _, bone := range skeleton.Bones() {
			if re.MatchString(bone.Name) {
				matches = append(matches, bone)
			}
		}
		return matches
	}

	for _, bone := range skeleton.Bones() {
		if strings.EqualFold(bone.Name, pattern) {
			matches = append(matches, bone)
		}
	}
	return matches
}

// RemoveChain drops the chain rooted at rootBoneName, if any. Bones keep
// whatever rotation the chain last wrote.
func (s *SpringBoneSystem) RemoveChain(rootBoneName string) {
	idx, ok := s.chainIndex[rootBoneName]
	if !ok {
		return
	}

	s.chains = append(s.chains[:idx], s.chains[idx+1:]...)
	delete(s.chainIndex, rootBoneName)
	for name, i := range s.chainIndex {
		if i > idx {
			s.chainIndex[name] = i - 1
		}
	}
}

// Chain returns the chain rooted at rootBoneName, or nil.
func (s *SpringBoneSystem) Chain(rootBoneName string) *SpringChain {
	idx, ok := s.chainIndex[rootBoneName]
	if !ok {
		return nil
	}
	return s.chains[idx]
}

func (s *SpringBoneSystem) Chains() []*SpringChain { return s.chains }

// AddCollider registers a collision sphere shared by every chain. A
// non-empty boneName binds the sphere to that bone; its position then
// follows the bone once UpdateCollidersFromBones has resolved it.
func (s *SpringBoneSystem) AddCollider(position mgl64.Vec3, radius float64, boneName string) {
	s.colliders = append(s.colliders, SphereCollider{
		Position: position,
		Radius:   radius,
		BoneName: boneName,
	})
}

func (s *SpringBoneSystem) RemoveCollider(index int) {
	if index < 0 || index >= len(s.colliders) {
		return
	}
	s.colliders = append(s.colliders[:index], s.colliders[index+1:]...)
}

func (s *SpringBoneSystem) ClearColliders() { s.colliders = nil }

func (s *SpringBoneSystem) Colliders() []SphereCollider { return s.colliders }

// UpdateCollidersFromBones resolves bone-bound colliders against the given
// skeleton and refreshes their positions. Call once per frame after the
// skeleton's world transforms are current; resolution results are cached,
// so subsequent Update calls keep following the bone on their own.
func (s *SpringBoneSystem) UpdateCollidersFromBones(skeleton *Skeleton) {
	for i := range s.colliders {
		col := &s.colliders[i]
		if col.BoneName == "" {
			continue
		}
		if col.bone == nil {
			col.bone = skeleton.FindBone(col.BoneName)
			if col.bone == nil {
				s.log.Debugf("collider bone %q not found in skeleton", col.BoneName)
				continue
			}
		}
		col.refresh()
	}
}

// SetGravity replaces the global gravity vector consumed by every chain
// starting next frame. No interpolation.
func (s *SpringBoneSystem) SetGravity(gravity mgl64.Vec3) { s.gravity = gravity }

// SetWind replaces the global wind vector. No interpolation.
func (s *SpringBoneSystem) SetWind(wind mgl64.Vec3) { s.wind = wind }

func (s *SpringBoneSystem) Gravity() mgl64.Vec3 { return s.gravity }
func (s *SpringBoneSystem) Wind() mgl64.Vec3    { return s.wind }

// SetTimeScale clamps scale into [0.1, 3.0] and applies it to every
// subsequent Update's delta time. Out-of-range values are clamped, not
// rejected.
func (s *SpringBoneSystem) SetTimeScale(scale float64) {
	s.timeScale = mgl64.Clamp(scale, minTimeScale, maxTimeScale)
}

func (s *SpringBoneSystem) TimeScale() float64 { return s.timeScale }

// SetPaused pauses or resumes the simulation. While paused, Update is a
// complete no-op: particles keep their last simulated state and no bone is
// touched, so animation and physics can visibly desynchronize over a long
// pause. Reset after unpausing if the pose moved far.
func (s *SpringBoneSystem) SetPaused(paused bool) { s.paused = paused }

func (s *SpringBoneSystem) Paused() bool { return s.paused }

// Update advances every chain by deltaTime seconds (scaled by the time
// scale). Must run after the skeleton pose for this frame is final; it
// mutates bone local rotations that rendering consumes immediately after.
func (s *SpringBoneSystem) Update(deltaTime float64) {
	if s.paused {
		return
	}

	dt := deltaTime * s.timeScale

	for i := range s.colliders {
		s.colliders[i].refresh()
	}

	for _, chain := range s.chains {
		chain.Update(dt, s.gravity, s.wind, s.colliders)
	}
}

// Reset snaps every particle in every chain onto its bone's current world
// position, discarding accumulated velocity. The correct way to resume
// after a pose teleport.
func (s *SpringBoneSystem) Reset() {
	for _, chain := range s.chains {
		chain.Reset()
	}
}

// ParticleCount reports the total number of simulated particles across all
// chains.
func (s *SpringBoneSystem) ParticleCount() int {
	count := 0
	for _, chain := range s.chains {
		count += chain.ParticleCount()
	}
	return count
}

// ChainStats is a per-chain debug summary for host-side overlays.
type ChainStats struct {
	ID        string
	RootBone  string
	Particles int
}

func (s *SpringBoneSystem) Stats() []ChainStats {
	stats := make([]ChainStats, 0, len(s.chains))
	for _, chain := range s.chains {
		stats = append(stats, ChainStats{
			ID:        chain.ID(),
			RootBone:  chain.RootBoneName(),
			Particles: chain.ParticleCount(),
		})
	}
	return stats
}

// Dispose clears all chains and colliders, releasing bone references. The
// bones themselves belong to the host skeleton and are untouched. Call
// before tearing the skeleton down if chains are still alive.
func (s *SpringBoneSystem) Dispose() {
	s.chains = nil
	s.chainIndex = make(map[string]int)
	s.colliders = nil
}
