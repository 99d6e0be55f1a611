// SPDX-License-Identifier: GPL-2.0-or-later

// Package phys integrates player movement against a bsp.Tree: friction
// and acceleration shaping, the multi-plane slide move, step climbing,
// ground detection and stuck recovery. One State per entity, advanced a
// frame at a time; the tree is never written, so movers for different
// entities may run concurrently.
package phys

import (
	"github.com/google/uuid"

	"bspmove/math/vec"
)

type Config struct {
	Gravity      float32
	MaxSpeed     float32
	StopSpeed    float32
	Friction     float32
	EdgeFriction float32
	Accelerate   float32
	JumpSpeed    float32
	StepHeight   float32
	// GroundCos is the minimum surface normal z for a plane to count as
	// ground. Anything steeper is a wall to slide along.
	GroundCos   float32
	MaxVelocity float32
	Radius      float32
	StandHeight float32
	DuckHeight  float32
}

func DefaultConfig() Config {
	return Config{
		Gravity:      300,
		MaxSpeed:     200,
		StopSpeed:    100,
		Friction:     4,
		EdgeFriction: 2,
		Accelerate:   10,
		JumpSpeed:    150,
		StepHeight:   20,
		GroundCos:    0.70710678, // cos 45 degrees
		MaxVelocity:  2000,
		Radius:       16,
		StandHeight:  56,
		DuckHeight:   28,
	}
}

// State is the per-entity movement record. The bounding box is relative
// to the origin with the origin at the feet. Only the mover writes it and
// only one frame at a time.
type State struct {
	ID           uuid.UUID
	Origin       vec.Vec3
	Velocity     vec.Vec3
	Angles       vec.Vec3
	Mins, Maxs   vec.Vec3
	OnGround     bool
	GroundNormal vec.Vec3
	Ducked       bool
	// Stuck is set when a frame had to be abandoned because the entity
	// started inside solid and no nearby free spot exists. Non fatal,
	// the position is simply left where it was.
	Stuck bool
}

// NewState places a standing player at origin.
func NewState(origin vec.Vec3, cfg Config) State {
	return State{
		ID:     uuid.New(),
		Origin: origin,
		Mins:   vec.Vec3{-cfg.Radius, -cfg.Radius, 0},
		Maxs:   vec.Vec3{cfg.Radius, cfg.Radius, cfg.StandHeight},
	}
}

// Input is one frame of raw player intent, shaped into a wish velocity
// by Mover.Move.
type Input struct {
	ForwardMove float32
	SideMove    float32
	Jump        bool
	Duck        bool
}
