// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"bspmove/math/vec"
)

// LeafAt descends from the root to the leaf containing p. Points exactly
// on a splitting plane belong to the front side.
func (t *Tree) LeafAt(p vec.Vec3) *Leaf {
	num := t.root
	for num >= 0 {
		node := &t.nodes[num]
		plane := &t.planes[node.Plane]
		if plane.dist(p) < 0 {
			num = node.Children[1]
		} else {
			num = node.Children[0]
		}
	}
	return &t.leaves[-num-1]
}

// ContentsAt returns the contents of the leaf containing p.
func (t *Tree) ContentsAt(p vec.Vec3) Contents {
	return t.LeafAt(p).Contents
}

// BoxOccupied reports whether the box overlaps any brush with contents in
// mask. A zero length trace starting inside such a brush is flagged
// startsolid, which is exactly the overlap test.
func (t *Tree) BoxOccupied(mask Contents, origin, mins, maxs vec.Vec3) bool {
	tr := t.Trace(origin, origin, mins, maxs, mask)
	return tr.StartSolid
}
