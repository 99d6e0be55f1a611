// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"testing"

	"github.com/chewxy/math32"

	"bspmove/math/vec"
)

func TestTraceEmptyWorld(t *testing.T) {
	tr, err := SingleLeafWorld(ContentsEmpty)
	if err != nil {
		t.Fatalf("SingleLeafWorld: %v", err)
	}
	got := tr.TraceLine(vec.Vec3{0, 0, 0}, vec.Vec3{100, 50, -20}, MaskSolid)
	if got.Fraction != 1 {
		t.Errorf("Fraction = %v, want 1", got.Fraction)
	}
	if got.EndPos != (vec.Vec3{100, 50, -20}) {
		t.Errorf("EndPos = %v, want end of segment", got.EndPos)
	}
	if got.StartSolid || got.AllSolid {
		t.Error("empty world trace flagged solid")
	}
}

// blockWorld is a single solid brush spanning x 32..96 in otherwise open
// space.
func blockWorld(t *testing.T) *Tree {
	t.Helper()
	tr, err := SingleLeafWorld(ContentsSolid,
		[2]vec.Vec3{{32, -64, -64}, {96, 64, 64}})
	if err != nil {
		t.Fatalf("SingleLeafWorld: %v", err)
	}
	return tr
}

func TestTraceLineHit(t *testing.T) {
	tr := blockWorld(t)

	got := tr.TraceLine(vec.Vec3{-50, 0, 0}, vec.Vec3{50, 0, 0}, MaskSolid)

	// the segment covers 100 units and meets the face at x=32 after 82,
	// pulled back by the clip epsilon
	want := (82 - float32(DistEpsilon)) / 100
	if math32.Abs(got.Fraction-want) > 1e-5 {
		t.Errorf("Fraction = %v, want %v", got.Fraction, want)
	}
	if got.Plane.Normal != (vec.Vec3{-1, 0, 0}) {
		t.Errorf("Plane.Normal = %v, want facing -x", got.Plane.Normal)
	}
	if got.EndPos[0] >= 32 {
		t.Errorf("EndPos = %v, ends inside the brush", got.EndPos)
	}
	if got.Brush != 0 {
		t.Errorf("Brush = %d, want 0", got.Brush)
	}
	if got.Contents&ContentsSolid == 0 {
		t.Errorf("Contents = %v, want solid bit", got.Contents)
	}
}

func TestTraceBoxStopsEarly(t *testing.T) {
	tr := blockWorld(t)

	mins := vec.Vec3{-16, -16, -16}
	maxs := vec.Vec3{16, 16, 16}
	got := tr.Trace(vec.Vec3{-50, 0, 0}, vec.Vec3{50, 0, 0}, mins, maxs, MaskSolid)

	// the box is 16 units wide, so its center stops that much short of
	// the face a point reaches
	wantX := 32 - 16 - float32(DistEpsilon)
	if math32.Abs(got.EndPos[0]-wantX) > 1e-3 {
		t.Errorf("EndPos[0] = %v, want %v", got.EndPos[0], wantX)
	}
}

// An asymmetric box must expand each face by the side of the box that
// faces it, not by a symmetric extent.
func TestTraceAsymmetricBox(t *testing.T) {
	tr := blockWorld(t)

	mins := vec.Vec3{-4, -4, 0}
	maxs := vec.Vec3{24, 4, 8}
	got := tr.Trace(vec.Vec3{-50, 0, 0}, vec.Vec3{50, 0, 0}, mins, maxs, MaskSolid)

	// the +x side of the box is 24 units out
	wantX := 32 - 24 - float32(DistEpsilon)
	if math32.Abs(got.EndPos[0]-wantX) > 1e-3 {
		t.Errorf("EndPos[0] = %v, want %v", got.EndPos[0], wantX)
	}
}

func TestTraceMiss(t *testing.T) {
	tr := blockWorld(t)

	got := tr.TraceLine(vec.Vec3{-50, 100, 0}, vec.Vec3{50, 100, 0}, MaskSolid)
	if got.Fraction != 1 {
		t.Errorf("Fraction = %v, want 1", got.Fraction)
	}
	if got.Brush != -1 {
		t.Errorf("Brush = %d, want -1", got.Brush)
	}
}

func TestTraceStartSolid(t *testing.T) {
	tr := blockWorld(t)

	got := tr.TraceLine(vec.Vec3{50, 0, 0}, vec.Vec3{200, 0, 0}, MaskSolid)
	if !got.StartSolid {
		t.Error("trace leaving a brush not flagged startsolid")
	}
	if got.AllSolid {
		t.Error("trace leaving a brush flagged allsolid")
	}

	got = tr.TraceLine(vec.Vec3{50, 0, 0}, vec.Vec3{60, 0, 0}, MaskSolid)
	if !got.AllSolid || !got.StartSolid {
		t.Errorf("trace fully inside a brush: allsolid=%v startsolid=%v, want both",
			got.AllSolid, got.StartSolid)
	}
}

func TestTraceContentsMask(t *testing.T) {
	tr, err := SingleLeafWorld(ContentsWater,
		[2]vec.Vec3{{32, -64, -64}, {96, 64, 64}})
	if err != nil {
		t.Fatalf("SingleLeafWorld: %v", err)
	}

	got := tr.TraceLine(vec.Vec3{-50, 0, 0}, vec.Vec3{50, 0, 0}, MaskSolid)
	if got.Fraction != 1 {
		t.Errorf("solid mask against water: Fraction = %v, want 1", got.Fraction)
	}
	got = tr.TraceLine(vec.Vec3{-50, 0, 0}, vec.Vec3{50, 0, 0}, MaskWater)
	if got.Fraction == 1 {
		t.Error("water mask against water: no hit")
	}
}

// bruteLineFraction clips the segment against every brush directly, with
// no tree walk and no clip epsilon, as an independent oracle for point
// traces.
func bruteLineFraction(start, end vec.Vec3, brushes [][]Plane) float32 {
	best := float32(1)
	for _, planes := range brushes {
		enter, leave := float32(-1), float32(1)
		miss := false
		for _, p := range planes {
			d1 := vec.Dot(p.Normal, start) - p.Dist
			d2 := vec.Dot(p.Normal, end) - p.Dist
			if d1 > 0 && d2 > 0 {
				miss = true
				break
			}
			if d1 <= 0 && d2 <= 0 {
				continue
			}
			f := d1 / (d1 - d2)
			if d1 > d2 {
				if f > enter {
					enter = f
				}
			} else {
				if f < leave {
					leave = f
				}
			}
		}
		if miss {
			continue
		}
		if enter < leave && enter >= 0 && enter < best {
			best = enter
		}
	}
	return best
}

func TestTraceLineMatchesBruteForce(t *testing.T) {
	tr := blockWorld(t)

	// the block brush, spelled out for the oracle
	brush := []Plane{
		{Normal: vec.Vec3{1, 0, 0}, Dist: 96},
		{Normal: vec.Vec3{-1, 0, 0}, Dist: -32},
		{Normal: vec.Vec3{0, 1, 0}, Dist: 64},
		{Normal: vec.Vec3{0, -1, 0}, Dist: 64},
		{Normal: vec.Vec3{0, 0, 1}, Dist: 64},
		{Normal: vec.Vec3{0, 0, -1}, Dist: 64},
	}

	segments := [][2]vec.Vec3{
		{{-50, 0, 0}, {50, 0, 0}},        // straight in
		{{-50, -100, 0}, {120, 100, 30}}, // diagonal through a side face
		{{0, 0, 100}, {60, 0, -100}},     // steep, enters through a side
		{{0, -100, 0}, {0, 100, 0}},      // passes in front, miss
		{{120, 0, 0}, {200, 0, 0}},       // behind, miss
	}
	for _, seg := range segments {
		got := tr.TraceLine(seg[0], seg[1], MaskSolid).Fraction
		want := bruteLineFraction(seg[0], seg[1], [][]Plane{brush})
		if math32.Abs(got-want) > 0.01 {
			t.Errorf("TraceLine(%v -> %v) = %v, brute force %v", seg[0], seg[1], got, want)
		}
	}
}

// A trace crossing a splitting plane must find the same contact it finds
// with the brush in a single leaf, visiting the near side first.
func TestTraceAcrossSplit(t *testing.T) {
	split := splitWorld(t)
	flat := blockWorld(t)

	start := vec.Vec3{-50, 10, 5}
	end := vec.Vec3{50, 10, 5}

	a := split.TraceLine(start, end, MaskSolid)
	b := flat.TraceLine(start, end, MaskSolid)

	if math32.Abs(a.Fraction-b.Fraction) > 1e-5 {
		t.Errorf("split tree Fraction = %v, single leaf = %v", a.Fraction, b.Fraction)
	}
	if a.Plane.Normal != b.Plane.Normal {
		t.Errorf("split tree Plane = %v, single leaf = %v", a.Plane.Normal, b.Plane.Normal)
	}
}

// A trace that starts and ends on the far side of a splitting plane from
// the only brush must not be clipped by it.
func TestTraceStaysOnEmptySide(t *testing.T) {
	tr := splitWorld(t)

	got := tr.TraceLine(vec.Vec3{-50, 0, 0}, vec.Vec3{-10, 0, 0}, MaskSolid)
	if got.Fraction != 1 {
		t.Errorf("Fraction = %v, want 1", got.Fraction)
	}
}
