// SPDX-License-Identifier: GPL-2.0-or-later

package phys

import (
	"log/slog"

	"github.com/chewxy/math32"

	"bspmove/bsp"
	"bspmove/math"
	"bspmove/math/vec"
)

const (
	maxClipPlanes = 5
	numBumps      = 4

	// groundDist is how far below the feet a surface may sit and still
	// carry the player. Resting height after a clipped trace is one
	// bsp.DistEpsilon, comfortably inside.
	groundDist = 0.25

	// air acceleration only ever adds this much speed along the wish
	// direction, which is what makes air control gentle
	airSpeedCap = 30
)

// Mover advances player movement states against one immutable tree.
type Mover struct {
	tree *bsp.Tree
	cfg  Config
}

func NewMover(tree *bsp.Tree, cfg Config) *Mover {
	return &Mover{tree: tree, cfg: cfg}
}

// Move shapes raw input into a wish velocity, applies stance changes and
// jumping, and runs a full frame.
func (m *Mover) Move(s State, in Input, dt float32) State {
	if dt <= 0 {
		return s
	}
	forward, right, _ := vec.AngleVectors(vec.Vec3{0, s.Angles[1], 0})
	wish := vec.Vec3{
		forward[0]*in.ForwardMove + right[0]*in.SideMove,
		forward[1]*in.ForwardMove + right[1]*in.SideMove,
		0,
	}
	s = m.duck(s, in.Duck)
	if in.Jump && s.OnGround {
		s.Velocity[2] = m.cfg.JumpSpeed
		s.OnGround = false
	}
	return m.Step(s, wish, dt)
}

// duck swaps the bounding box between stances. Standing back up needs
// headroom at the current origin.
func (m *Mover) duck(s State, want bool) State {
	if want && !s.Ducked {
		s.Ducked = true
		s.Maxs[2] = m.cfg.DuckHeight
		return s
	}
	if !want && s.Ducked {
		stand := s.Maxs
		stand[2] = m.cfg.StandHeight
		if !m.tree.BoxOccupied(bsp.MaskPlayerSolid, s.Origin, s.Mins, stand) {
			s.Ducked = false
			s.Maxs = stand
		}
	}
	return s
}

// Step integrates one frame of movement: friction and acceleration toward
// wishVel, the slide move with step climbing, then ground detection. It
// derives the returned state purely from its inputs and the tree.
func (m *Mover) Step(s State, wishVel vec.Vec3, dt float32) State {
	if dt <= 0 {
		return s
	}
	s.Stuck = false

	if m.tree.BoxOccupied(bsp.MaskPlayerSolid, s.Origin, s.Mins, s.Maxs) {
		if !m.unstick(&s) {
			s.Stuck = true
			return s
		}
	}

	wishspeed := wishVel.Length()
	wishdir := wishVel
	if wishspeed != 0 {
		wishdir = vec.Scale(1/wishspeed, wishVel)
	}
	if wishspeed > m.cfg.MaxSpeed {
		wishspeed = m.cfg.MaxSpeed
	}

	wasOnGround := s.OnGround
	if s.OnGround {
		m.friction(&s, dt)
		m.accelerate(&s, wishspeed, wishdir, dt)
	} else {
		// not on ground, so little effect on velocity
		m.airAccelerate(&s, wishspeed, wishVel, dt)
		s.Velocity[2] -= m.cfg.Gravity * dt
	}
	m.checkVelocity(&s)

	if m.walkMove(&s, dt)&8 != 0 {
		// trapped mid-move or out of bumps: velocity is already zeroed,
		// surface the aborted motion to the caller
		s.Stuck = true
	}
	m.groundCheck(&s, wasOnGround)
	m.checkVelocity(&s)
	return s
}

func (m *Mover) accelerate(s *State, wishspeed float32, wishdir vec.Vec3, dt float32) {
	currentspeed := vec.Dot(s.Velocity, wishdir)
	addspeed := wishspeed - currentspeed
	if addspeed <= 0 {
		return
	}
	accelspeed := m.cfg.Accelerate * dt * wishspeed
	if accelspeed > addspeed {
		accelspeed = addspeed
	}
	s.Velocity = vec.Add(s.Velocity, vec.Scale(accelspeed, wishdir))
}

func (m *Mover) airAccelerate(s *State, wishspeed float32, wishveloc vec.Vec3, dt float32) {
	wishspd := wishveloc.Length()
	if wishspd <= 0 {
		return
	}
	wishveloc = vec.Scale(1/wishspd, wishveloc)
	if wishspd > airSpeedCap {
		wishspd = airSpeedCap
	}
	addspeed := wishspd - vec.Dot(s.Velocity, wishveloc)
	if addspeed <= 0 {
		return
	}
	accelspeed := m.cfg.Accelerate * dt * wishspeed
	if accelspeed > addspeed {
		accelspeed = addspeed
	}
	s.Velocity = vec.Add(s.Velocity, vec.Scale(accelspeed, wishveloc))
}

func (m *Mover) friction(s *State, dt float32) {
	speed2 := s.Velocity[0]*s.Velocity[0] + s.Velocity[1]*s.Velocity[1]
	if speed2 == 0 {
		return
	}
	speed := math32.Sqrt(speed2)

	// if the leading edge is over a dropoff, increase friction
	start := vec.Vec3{
		s.Origin[0] + s.Velocity[0]/speed*16,
		s.Origin[1] + s.Velocity[1]/speed*16,
		s.Origin[2] + s.Mins[2],
	}
	stop := start
	stop[2] -= 34
	t := m.tree.TraceLine(start, stop, bsp.MaskPlayerSolid)

	friction := m.cfg.Friction
	if t.Fraction == 1 {
		friction *= m.cfg.EdgeFriction
	}

	control := speed
	if control < m.cfg.StopSpeed {
		control = m.cfg.StopSpeed
	}
	newspeed := speed - dt*control*friction
	if newspeed <= 0 {
		s.Velocity = vec.Vec3{}
		return
	}
	s.Velocity = vec.Scale(newspeed/speed, s.Velocity)
}

// clipVelocity slides the velocity off the impacting plane.
// Returns the blocked flags (1 = floor, 2 = step / wall) and the clipped
// velocity.
func clipVelocity(in, normal vec.Vec3, overbounce float32) (int, vec.Vec3) {
	blocked := func() int {
		switch {
		case normal[2] > 0:
			return 1 // floor
		case normal[2] == 0:
			return 2 // step
		default:
			return 0
		}
	}()

	backoff := vec.Dot(in, normal) * overbounce

	e := func(x float32) float32 {
		const stopEpsilon = 0.1
		if x > -stopEpsilon && x < stopEpsilon {
			return 0
		}
		return x
	}

	out := vec.Vec3{
		e(in[0] - normal[0]*backoff),
		e(in[1] - normal[1]*backoff),
		e(in[2] - normal[2]*backoff),
	}

	return blocked, out
}

// slideMove advances the origin along the velocity for the given time,
// deflecting off each contacted plane. Returns the blocked flags
// (1 = floor, 2 = wall / step, 7 = dead stop, 8 = unresolved: trapped in
// solid or out of bumps) and the trace of any vertical wall hit, for wall
// friction. An unresolved move always comes back with zero velocity.
func (m *Mover) slideMove(s *State, time float32) (int, bsp.Trace) {
	var planes [maxClipPlanes]vec.Vec3
	var steptrace bsp.Trace

	blocked := 0
	originalVelocity := s.Velocity
	primalVelocity := s.Velocity
	numplanes := 0

	timeLeft := time

	bumpcount := 0
	for ; bumpcount < numBumps; bumpcount++ {
		if s.Velocity == (vec.Vec3{}) {
			break
		}

		end := vec.Add(s.Origin, vec.Scale(timeLeft, s.Velocity))
		t := m.tree.Trace(s.Origin, end, s.Mins, s.Maxs, bsp.MaskPlayerSolid)

		if t.AllSolid {
			// trapped in a solid
			s.Velocity = vec.Vec3{}
			return blocked | 8, steptrace
		}

		if t.Fraction > 0 {
			// actually covered some distance
			s.Origin = t.EndPos
			originalVelocity = s.Velocity
			numplanes = 0
		}
		if t.Fraction == 1 {
			// moved the entire distance
			break
		}

		if t.Plane.Normal[2] > m.cfg.GroundCos {
			blocked |= 1 // floor
			s.OnGround = true
			s.GroundNormal = t.Plane.Normal
		}
		if t.Plane.Normal[2] == 0 {
			blocked |= 2  // step
			steptrace = t // save for wall friction
		}

		timeLeft -= timeLeft * t.Fraction

		// clipped to another plane
		if numplanes >= maxClipPlanes {
			// this shouldn't really happen
			s.Velocity = vec.Vec3{}
			return blocked | 8, steptrace
		}

		planes[numplanes] = t.Plane.Normal
		numplanes++

		// modify originalVelocity so it parallels all of the clip planes
		var newVelocity vec.Vec3
		i := 0
		for i = 0; i < numplanes; i++ {
			j := 0
			_, newVelocity = clipVelocity(originalVelocity, planes[i], 1)
			for j = 0; j < numplanes; j++ {
				if j != i {
					if vec.Dot(newVelocity, planes[j]) < 0 {
						break // not ok
					}
				}
			}
			if j == numplanes {
				break
			}
		}

		if i != numplanes {
			// go along this plane
			s.Velocity = newVelocity
		} else {
			// go along the crease
			if numplanes != 2 {
				s.Velocity = vec.Vec3{}
				return 7, steptrace
			}
			dir := vec.Cross(planes[0], planes[1])
			d := vec.Dot(dir, s.Velocity)
			s.Velocity = vec.Scale(d, dir)
		}

		// if velocity turned against the original velocity, stop dead
		// to avoid tiny oscillations in sloping corners
		if vec.Dot(s.Velocity, primalVelocity) <= 0 {
			s.Velocity = vec.Vec3{}
			return blocked, steptrace
		}
	}
	if bumpcount == numBumps && s.Velocity != (vec.Vec3{}) {
		// out of bumps with motion still unresolved
		s.Velocity = vec.Vec3{}
		blocked |= 8
	}
	return blocked, steptrace
}

// pushMove moves the box by push, stopping at the first obstruction.
func (m *Mover) pushMove(s *State, push vec.Vec3) bsp.Trace {
	end := vec.Add(s.Origin, push)
	t := m.tree.Trace(s.Origin, end, s.Mins, s.Maxs, bsp.MaskPlayerSolid)
	s.Origin = t.EndPos
	return t
}

func horizontalGain(from, to vec.Vec3) float32 {
	dx := to[0] - from[0]
	dy := to[1] - from[1]
	return dx*dx + dy*dy
}

// walkMove runs the slide move and, when a wall stopped us while on the
// ground, retries the same move from a step height above: up, forward,
// back down. The stepped result is kept when it lands on walkable ground
// and made more horizontal progress than the direct move. Returns the
// blocked flags of whichever move was kept.
func (m *Mover) walkMove(s *State, dt float32) int {
	oldOnGround := s.OnGround
	s.OnGround = false

	oldOrigin := s.Origin
	oldVelocity := s.Velocity

	clip, steptrace := m.slideMove(s, dt)

	if clip&2 == 0 {
		// move didn't block on a step
		return clip
	}
	if !oldOnGround {
		// don't stair up while jumping or falling
		return clip
	}

	noStepClip := clip
	noStepOrigin := s.Origin
	noStepVelocity := s.Velocity

	// try moving up and forward to go up a step

	// back to start pos
	s.Origin = oldOrigin
	upMove := vec.Vec3{0, 0, m.cfg.StepHeight}
	downMove := vec.Vec3{0, 0, -m.cfg.StepHeight + oldVelocity[2]*dt}

	// move up
	m.pushMove(s, upMove)

	// move forward
	s.Velocity = oldVelocity
	s.Velocity[2] = 0
	clip, steptrace = m.slideMove(s, dt)

	// check for stuckness, possibly due to the limited precision of
	// floats in the clipping planes
	if clip != 0 {
		if math32.Abs(oldOrigin[1]-s.Origin[1]) < bsp.DistEpsilon &&
			math32.Abs(oldOrigin[0]-s.Origin[0]) < bsp.DistEpsilon {
			// stepping up didn't make any progress
			clip = m.tryUnstick(s, oldVelocity)
		}
	}

	// extra friction based on view angle
	if clip&2 != 0 {
		m.wallFriction(s, steptrace.Plane.Normal)
	}

	// move down
	downTrace := m.pushMove(s, downMove)

	if downTrace.Plane.Normal[2] > m.cfg.GroundCos &&
		horizontalGain(oldOrigin, s.Origin) >= horizontalGain(oldOrigin, noStepOrigin) {
		s.OnGround = true
		s.GroundNormal = downTrace.Plane.Normal
		return clip
	}

	// if the push down didn't end up on good ground, use the move without
	// the step up. This happens near wall / slope combinations, and can
	// cause the player to hop up higher on a slope too steep to climb
	s.Origin = noStepOrigin
	s.Velocity = noStepVelocity
	return noStepClip
}

// Player has come to a dead stop, possibly due to the problem with
// limited float precision at some angle joins between clip planes.
//
// Try fixing by pushing a couple units in each horizontal direction.
func (m *Mover) tryUnstick(s *State, oldvel vec.Vec3) int {
	oldorg := s.Origin

	for _, dir := range []vec.Vec3{
		{2, 0, 0},
		{0, 2, 0},
		{-2, 0, 0},
		{0, -2, 0},
		{2, 2, 0},
		{-2, 2, 0},
		{2, -2, 0},
		{-2, -2, 0},
	} {
		m.pushMove(s, dir)
		// retry the original move
		s.Velocity = oldvel
		s.Velocity[2] = 0
		clip, _ := m.slideMove(s, 0.1)
		if math32.Abs(oldorg[1]-s.Origin[1]) > 4 ||
			math32.Abs(oldorg[0]-s.Origin[0]) > 4 {
			slog.Debug("unstuck", "id", s.ID)
			return clip
		}
		// go back to the original pos and try again
		s.Origin = oldorg
	}
	s.Velocity = vec.Vec3{}
	// still not moving
	return 7
}

// unstick resolves a frame that begins inside solid, e.g. after an
// external teleport, by nudging to a nearby free spot. Reports whether it
// found one; on failure the origin is untouched.
func (m *Mover) unstick(s *State) bool {
	org := s.Origin
	for z := float32(0); z <= m.cfg.StepHeight; z++ {
		for i := float32(-1); i <= 1; i++ {
			for j := float32(-1); j <= 1; j++ {
				test := vec.Vec3{org[0] + i, org[1] + j, org[2] + z}
				if !m.tree.BoxOccupied(bsp.MaskPlayerSolid, test, s.Mins, s.Maxs) {
					s.Origin = test
					slog.Debug("unstuck", "id", s.ID)
					return true
				}
			}
		}
	}
	s.Origin = org
	slog.Debug("player is stuck", "id", s.ID)
	return false
}

func (m *Mover) wallFriction(s *State, planeNormal vec.Vec3) {
	const deg = math32.Pi * 2 / 360

	sp, cp := math32.Sincos(s.Angles[0] * deg) // PITCH
	sy, cy := math32.Sincos(s.Angles[1] * deg) // YAW
	forward := vec.Vec3{cp * cy, cp * sy, -sp}
	d := vec.Dot(planeNormal, forward)

	d += 0.5
	if d >= 0 {
		return
	}

	// cut the tangential velocity
	i := vec.Dot(planeNormal, s.Velocity)
	into := vec.Scale(i, planeNormal)
	side := vec.Sub(s.Velocity, into)
	s.Velocity[0] = side[0] * (1 + d)
	s.Velocity[1] = side[1] * (1 + d)
}

// groundCheck settles the grounded state after the frame's motion with a
// short downward trace. A player moving away from the surface never
// grabs it. When the player was grounded the trace reaches a step height
// down so walking down stairs and slopes keeps contact.
func (m *Mover) groundCheck(s *State, wasOnGround bool) {
	drop := float32(groundDist)
	if wasOnGround && s.Velocity[2] <= 0 {
		drop = m.cfg.StepHeight
	}
	down := s.Origin
	down[2] -= drop
	t := m.tree.Trace(s.Origin, down, s.Mins, s.Maxs, bsp.MaskPlayerSolid)

	if t.AllSolid || t.Fraction == 1 ||
		t.Plane.Normal[2] <= m.cfg.GroundCos ||
		vec.Dot(s.Velocity, t.Plane.Normal) > 1 {
		s.OnGround = false
		s.GroundNormal = vec.Vec3{}
		return
	}

	s.OnGround = true
	s.GroundNormal = t.Plane.Normal
	if !t.StartSolid {
		// rest on the surface, a sliver above it
		s.Origin = t.EndPos
	}
	if s.Velocity[2] < 0 {
		s.Velocity[2] = 0
	}
}

// checkVelocity keeps runaway values out of the integrator.
func (m *Mover) checkVelocity(s *State) {
	for i := 0; i < 3; i++ {
		if math32.IsNaN(s.Velocity[i]) {
			slog.Warn("got a NaN velocity", "id", s.ID)
			s.Velocity[i] = 0
		}
		if math32.IsNaN(s.Origin[i]) {
			slog.Warn("got a NaN origin", "id", s.ID)
			s.Origin[i] = 0
		}
		s.Velocity[i] = math.Clamp(-m.cfg.MaxVelocity, s.Velocity[i], m.cfg.MaxVelocity)
	}
}
