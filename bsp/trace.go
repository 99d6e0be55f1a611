// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"github.com/chewxy/math32"

	"bspmove/math"
	"bspmove/math/vec"
)

// DistEpsilon keeps clipped fractions a sliver on the near side of a
// surface. The same constant is the movement code's resting distance; the
// two must not drift apart or sliding starts to pop.
const DistEpsilon = 0.03125 // (1/32) to keep floating point happy

// Trace is the result of sweeping a box from a start to an end point.
// Fraction 1 means the full move is free. StartSolid and AllSolid flag
// a sweep that began inside solid, they are not a contact.
type Trace struct {
	AllSolid   bool
	StartSolid bool
	Fraction   float32
	EndPos     vec.Vec3
	Plane      Plane
	Contents   Contents
	Brush      int32
}

// traceWork carries the per-call sweep state so a trace never touches
// shared mutable data and stays safe to run from many movers at once.
// checked backs onto a small inline buffer; a leaf walk rarely touches
// more than a handful of brushes, so dedup is a linear scan without a
// heap allocation on the hot path.
type traceWork struct {
	tree       *Tree
	start, end vec.Vec3
	mins, maxs vec.Vec3
	extents    vec.Vec3
	isPoint    bool
	mask       Contents
	checked    []int32
	checkedBuf [16]int32
	trace      Trace
}

// checkedBrush reports whether the brush was already clipped during this
// sweep and marks it if not. A brush can sit in several leaves.
func (tw *traceWork) checkedBrush(bi int32) bool {
	for _, c := range tw.checked {
		if c == bi {
			return true
		}
	}
	tw.checked = append(tw.checked, bi)
	return false
}

// Trace sweeps a box with the given relative bounds along start->end and
// returns the first contact with a brush whose contents are in mask.
// A zero sized box degenerates to a point sweep through the same code
// path, the per-plane box offsets just become zero.
func (t *Tree) Trace(start, end, mins, maxs vec.Vec3, mask Contents) Trace {
	tw := traceWork{
		tree:  t,
		start: start,
		end:   end,
		mins:  mins,
		maxs:  maxs,
		mask:  mask,
		trace: Trace{
			Fraction: 1,
			Brush:    -1,
		},
	}
	tw.checked = tw.checkedBuf[:0]
	tw.isPoint = mins == (vec.Vec3{}) && maxs == (vec.Vec3{})
	if !tw.isPoint {
		tw.extents = vec.Vec3{
			math32.Max(-mins[0], maxs[0]),
			math32.Max(-mins[1], maxs[1]),
			math32.Max(-mins[2], maxs[2]),
		}
	}

	tw.recursiveTrace(t.root, 0, 1, start, end)

	if tw.trace.Fraction == 1 {
		tw.trace.EndPos = end
	} else {
		tw.trace.EndPos = vec.Lerp(start, end, tw.trace.Fraction)
	}
	return tw.trace
}

// TraceLine is a pure point sweep.
func (t *Tree) TraceLine(start, end vec.Vec3, mask Contents) Trace {
	return t.Trace(start, end, vec.Vec3{}, vec.Vec3{}, mask)
}

// recursiveTrace walks the tree depth first. p1f/p2f are the fractions of
// the full sweep covered by the p1->p2 sub segment; once a contact closer
// than p1f is known the whole subtree is unreachable and is skipped.
func (tw *traceWork) recursiveTrace(num int32, p1f, p2f float32, p1, p2 vec.Vec3) {
	if tw.trace.Fraction <= p1f {
		return // already hit something nearer
	}

	if num < 0 {
		tw.traceToLeaf(-num - 1)
		return
	}

	node := &tw.tree.nodes[num]
	plane := &tw.tree.planes[node.Plane]

	var t1, t2, offset float32
	if plane.Type < planeAny {
		t1 = p1[plane.Type] - plane.Dist
		t2 = p2[plane.Type] - plane.Dist
		offset = tw.extents[plane.Type]
	} else {
		t1 = vec.DoublePrecDot(plane.Normal, p1) - plane.Dist
		t2 = vec.DoublePrecDot(plane.Normal, p2) - plane.Dist
		if !tw.isPoint {
			offset = math32.Abs(tw.extents[0]*plane.Normal[0]) +
				math32.Abs(tw.extents[1]*plane.Normal[1]) +
				math32.Abs(tw.extents[2]*plane.Normal[2])
		}
	}

	// the thickened plane separates the segment: recurse one side only
	if t1 >= offset && t2 >= offset {
		tw.recursiveTrace(node.Children[0], p1f, p2f, p1, p2)
		return
	}
	if t1 < -offset && t2 < -offset {
		tw.recursiveTrace(node.Children[1], p1f, p2f, p1, p2)
		return
	}

	// straddling: split the segment, near side first so the first contact
	// along the path wins and the far side can short-circuit
	var side int32
	var frac, frac2 float32
	switch {
	case t1 < t2:
		idist := 1 / (t1 - t2)
		side = 1
		frac2 = (t1 + offset + DistEpsilon) * idist
		frac = (t1 - offset - DistEpsilon) * idist
	case t1 > t2:
		idist := 1 / (t1 - t2)
		side = 0
		frac2 = (t1 - offset - DistEpsilon) * idist
		frac = (t1 + offset + DistEpsilon) * idist
	default:
		side = 0
		frac = 1
		frac2 = 0
	}
	frac = math.Clamp(0, frac, 1)
	frac2 = math.Clamp(0, frac2, 1)

	midf := math.Lerp(p1f, p2f, frac)
	mid := vec.Lerp(p1, p2, frac)
	tw.recursiveTrace(node.Children[side], p1f, midf, p1, mid)

	midf = math.Lerp(p1f, p2f, frac2)
	mid = vec.Lerp(p1, p2, frac2)
	tw.recursiveTrace(node.Children[side^1], midf, p2f, mid, p2)
}

func (tw *traceWork) traceToLeaf(leafIdx int32) {
	leaf := &tw.tree.leaves[leafIdx]
	if leaf.Contents&tw.mask == 0 {
		return
	}
	for _, bi := range leaf.Brushes {
		if tw.checkedBrush(bi) {
			continue
		}

		brush := &tw.tree.brushes[bi]
		if brush.Contents&tw.mask == 0 {
			continue
		}
		tw.clipBoxToBrush(brush, bi)
		if tw.trace.Fraction == 0 {
			return
		}
	}
}

// clipBoxToBrush clips the full sweep segment against one convex brush.
// The segment blocks only where it is behind every brush plane at once;
// the entry fraction is the latest per-plane entry, the exit the earliest
// per-plane exit, and the brush is hit when entry precedes exit.
func (tw *traceWork) clipBoxToBrush(b *Brush, brushIdx int32) {
	enterfrac := float32(-1)
	leavefrac := float32(1)
	var clipplane *Plane

	startout := false
	getout := false

	for _, pi := range b.Planes {
		plane := &tw.tree.planes[pi]

		dist := plane.Dist
		if !tw.isPoint {
			// push the plane out by the box extent along its normal
			ofs := vec.Vec3{}
			for i := 0; i < 3; i++ {
				if plane.Normal[i] < 0 {
					ofs[i] = tw.maxs[i]
				} else {
					ofs[i] = tw.mins[i]
				}
			}
			dist -= vec.Dot(ofs, plane.Normal)
		}

		d1 := vec.DoublePrecDot(tw.start, plane.Normal) - dist
		d2 := vec.DoublePrecDot(tw.end, plane.Normal) - dist

		if d2 > 0 {
			getout = true // endpoint is not in solid
		}
		if d1 > 0 {
			startout = true
		}

		// completely in front of this face, no intersection
		if d1 > 0 && d2 >= d1 {
			return
		}
		if d1 <= 0 && d2 <= 0 {
			continue
		}

		if d1 > d2 {
			// enter
			f := (d1 - DistEpsilon) / (d1 - d2)
			if f > enterfrac {
				enterfrac = f
				clipplane = plane
			}
		} else {
			// leave
			f := (d1 + DistEpsilon) / (d1 - d2)
			if f < leavefrac {
				leavefrac = f
			}
		}
	}

	if !startout {
		// original point was inside the brush
		tw.trace.StartSolid = true
		tw.trace.Contents |= b.Contents
		if !getout {
			tw.trace.AllSolid = true
		}
		return
	}
	if enterfrac < leavefrac {
		if enterfrac > -1 && enterfrac < tw.trace.Fraction {
			if enterfrac < 0 {
				enterfrac = 0
			}
			tw.trace.Fraction = enterfrac
			tw.trace.Plane = *clipplane
			tw.trace.Contents |= b.Contents
			tw.trace.Brush = brushIdx
		}
	}
}
