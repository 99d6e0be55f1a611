// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"bspmove/math/vec"
)

// Construction helpers for loaders, tools and tests assembling TreeData by
// hand. The six plane box brush mirrors the classic box hull: one outward
// axial plane per face.

func (d *TreeData) AddPlane(normal vec.Vec3, dist float32) int32 {
	d.Planes = append(d.Planes, Plane{Normal: normal, Dist: dist})
	return int32(len(d.Planes) - 1)
}

func (d *TreeData) AddNode(plane, front, back int32) int32 {
	d.Nodes = append(d.Nodes, Node{Plane: plane, Children: [2]int32{front, back}})
	return int32(len(d.Nodes) - 1)
}

func (d *TreeData) AddLeaf(contents Contents, brushes ...int32) int32 {
	d.Leaves = append(d.Leaves, Leaf{Contents: contents, Brushes: brushes})
	return int32(len(d.Leaves) - 1)
}

// AddBoxBrush appends an axis aligned solid spanning mins to maxs.
func (d *TreeData) AddBoxBrush(mins, maxs vec.Vec3, contents Contents) int32 {
	sides := make([]int32, 0, 6)
	for axis := 0; axis < 3; axis++ {
		var n vec.Vec3
		n[axis] = 1
		sides = append(sides, d.AddPlane(n, maxs[axis]))
		n[axis] = -1
		sides = append(sides, d.AddPlane(n, -mins[axis]))
	}
	d.Brushes = append(d.Brushes, Brush{Planes: sides, Contents: contents})
	return int32(len(d.Brushes) - 1)
}

// SingleLeafWorld builds the smallest usable tree: one leaf holding the
// given box brushes. With no splitting planes every trace clips every
// brush, which is exactly what small worlds and tests want.
func SingleLeafWorld(contents Contents, boxes ...[2]vec.Vec3) (*Tree, error) {
	var d TreeData
	var brushes []int32
	for _, b := range boxes {
		brushes = append(brushes, d.AddBoxBrush(b[0], b[1], contents))
	}
	d.AddLeaf(contents, brushes...)
	d.Root = LeafRef(0)
	return NewTree(d)
}
