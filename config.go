package springbone

import (
	"encoding/json"
	"fmt"
	"os"
)

// SpringChainConfig is fixed for the lifetime of a chain. Retuning a live
// chain means RemoveChain + AddChain with a new config.
type SpringChainConfig struct {
	// RootBoneName must exactly match a skeleton bone name (case-sensitive).
	RootBoneName string

	// Stiffness pulls particles back toward the bind pose, 0..1.
	Stiffness float64
	// Damping bleeds implicit velocity per frame, 0..1.
	Damping float64
	// Gravity is a local multiplier on the system's global gravity vector.
	Gravity float64
	// WindInfluence scales the system's global wind vector.
	WindInfluence float64
	// CollisionRadius pads each particle when testing against colliders.
	CollisionRadius float64
	// Iterations is the distance-constraint relaxation count per frame.
	Iterations int
}

func DefaultChainConfig(rootBoneName string) SpringChainConfig {
	return SpringChainConfig{
		RootBoneName:    rootBoneName,
		Stiffness:       0.5,
		Damping:         0.1,
		Gravity:         1.0,
		WindInfluence:   1.0,
		CollisionRadius: 0.02,
		Iterations:      3,
	}
}

// GarmentBoneConfig is one garment-metadata record. BoneName may be an
// exact name (matched case-insensitively) or a "*" wildcard pattern; each
// matching bone spawns its own independent chain. Zero-valued tuning
// fields fall back to DefaultChainConfig. Values outside documented ranges
// are deliberately not validated here; that is the caller's contract.
type GarmentBoneConfig struct {
	BoneName        string  `json:"bone_name"`
	Stiffness       float64 `json:"stiffness,omitempty"`
	Damping         float64 `json:"damping,omitempty"`
	GravityFactor   float64 `json:"gravity_factor,omitempty"`
	WindInfluence   float64 `json:"wind_influence,omitempty"`
	CollisionRadius float64 `json:"collision_radius,omitempty"`
	Iterations      int     `json:"iterations,omitempty"`
}

// GarmentConfig is the on-disk garment physics document shipped alongside
// garment assets.
type GarmentConfig struct {
	Name  string              `json:"name"`
	Bones []GarmentBoneConfig `json:"bones"`
}

// LoadGarmentConfig reads a garment physics document from a JSON file.
func LoadGarmentConfig(filename string) (*GarmentConfig, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg GarmentConfig
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return nil, fmt.Errorf("garment config %s: %w", filename, err)
	}
	return &cfg, nil
}

// SaveGarmentConfig writes a garment physics document, mostly useful for
// authoring tools.
func SaveGarmentConfig(filename string, cfg *GarmentConfig) error {
	bytes, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0644)
}

// chainConfigFrom fills a SpringChainConfig from a metadata record, taking
// defaults for any zero-valued tuning field.
func chainConfigFrom(meta GarmentBoneConfig, rootBoneName string) SpringChainConfig {
	cfg := DefaultChainConfig(rootBoneName)
	if meta.Stiffness != 0 {
		cfg.Stiffness = meta.Stiffness
	}
	if meta.Damping != 0 {
		cfg.Damping = meta.Damping
	}
	if meta.GravityFactor != 0 {
		cfg.Gravity = meta.GravityFactor
	}
	if meta.WindInfluence != 0 {
		cfg.WindInfluence = meta.WindInfluence
	}
	if meta.CollisionRadius != 0 {
		cfg.CollisionRadius = meta.CollisionRadius
	}
	if meta.Iterations != 0 {
		cfg.Iterations = meta.Iterations
	}
	return cfg
}

// ApplyGarmentConfig adds every chain a garment document describes. Records
// whose pattern matches nothing are warned about and skipped, same as
// AddChainFromConfig.
func (s *SpringBoneSystem) ApplyGarmentConfig(skeleton *Skeleton, cfg *GarmentConfig) {
	s.AddChainFromConfig(skeleton, cfg.Bones)
}

// Built-in tuning presets for common garment parts. Hosts that have no
// per-garment metadata can start from these.
var garmentPresets = map[string]GarmentBoneConfig{
	"hair": {
		Stiffness:     0.3,
		Damping:       0.15,
		GravityFactor: 1.0,
		WindInfluence: 1.5,
	},
	"skirt": {
		Stiffness:     0.6,
		Damping:       0.2,
		GravityFactor: 1.0,
		WindInfluence: 1.0,
	},
	"sleeve": {
		Stiffness:     0.7,
		Damping:       0.25,
		GravityFactor: 0.8,
		WindInfluence: 0.6,
	},
}

// GarmentPreset returns a copy of a built-in preset with the bone pattern
// filled in. ok is false for unknown preset names.
func GarmentPreset(name string, bonePattern string) (GarmentBoneConfig, bool) {
	preset, ok := garmentPresets[name]
	if !ok {
		return GarmentBoneConfig{}, false
	}
	preset.BoneName = bonePattern
	return preset, true
}
