// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"testing"

	"bspmove/math/vec"
)

func TestNewTreeValidation(t *testing.T) {
	good := func() TreeData {
		var d TreeData
		b := d.AddBoxBrush(vec.Vec3{-1, -1, -1}, vec.Vec3{1, 1, 1}, ContentsSolid)
		d.AddLeaf(ContentsSolid, b)
		d.Root = LeafRef(0)
		return d
	}

	if _, err := NewTree(good()); err != nil {
		t.Errorf("NewTree(good) = %v, want nil", err)
	}

	tests := []struct {
		name string
		mod  func(*TreeData)
	}{
		{"no leaves", func(d *TreeData) { d.Leaves = nil }},
		{"bad normal", func(d *TreeData) { d.Planes[0].Normal = vec.Vec3{2, 0, 0} }},
		{"empty brush", func(d *TreeData) { d.Brushes[0].Planes = nil }},
		{"brush plane out of range", func(d *TreeData) { d.Brushes[0].Planes[0] = 99 }},
		{"leaf brush out of range", func(d *TreeData) { d.Leaves[0].Brushes[0] = 7 }},
		{"bad root node", func(d *TreeData) { d.Root = 3 }},
		{"bad root leaf", func(d *TreeData) { d.Root = LeafRef(5) }},
		{"node plane out of range", func(d *TreeData) {
			d.AddNode(42, LeafRef(0), LeafRef(0))
		}},
		{"node child out of range", func(d *TreeData) {
			d.AddNode(0, LeafRef(9), LeafRef(0))
		}},
	}
	for _, tc := range tests {
		d := good()
		tc.mod(&d)
		if _, err := NewTree(d); err == nil {
			t.Errorf("NewTree(%s) = nil, want error", tc.name)
		}
	}
}

// splitWorld is a one node tree: the plane x=0 with a solid brush
// spanning x 32..96 on the front side and empty space behind.
func splitWorld(t *testing.T) *Tree {
	t.Helper()
	var d TreeData
	b := d.AddBoxBrush(vec.Vec3{32, -64, -64}, vec.Vec3{96, 64, 64}, ContentsSolid)
	front := d.AddLeaf(ContentsSolid, b)
	back := d.AddLeaf(ContentsEmpty)
	split := d.AddPlane(vec.Vec3{1, 0, 0}, 0)
	d.Root = d.AddNode(split, LeafRef(front), LeafRef(back))
	tr, err := NewTree(d)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	return tr
}

func TestLeafAt(t *testing.T) {
	tr := splitWorld(t)

	if c := tr.ContentsAt(vec.Vec3{50, 0, 0}); c != ContentsSolid {
		t.Errorf("ContentsAt(front) = %v, want %v", c, ContentsSolid)
	}
	if c := tr.ContentsAt(vec.Vec3{-50, 0, 0}); c != ContentsEmpty {
		t.Errorf("ContentsAt(back) = %v, want %v", c, ContentsEmpty)
	}
	// points on the plane belong to the front side
	if c := tr.ContentsAt(vec.Vec3{0, 0, 0}); c != ContentsSolid {
		t.Errorf("ContentsAt(on plane) = %v, want %v", c, ContentsSolid)
	}
}

func TestBoxOccupied(t *testing.T) {
	tr := splitWorld(t)

	mins := vec.Vec3{-16, -16, 0}
	maxs := vec.Vec3{16, 16, 56}
	if !tr.BoxOccupied(MaskSolid, vec.Vec3{50, 0, 0}, mins, maxs) {
		t.Error("box inside brush not occupied")
	}
	if tr.BoxOccupied(MaskSolid, vec.Vec3{-50, 0, 0}, mins, maxs) {
		t.Error("box in open space occupied")
	}
	// overlapping only via the box extent
	if !tr.BoxOccupied(MaskSolid, vec.Vec3{20, 0, 0}, mins, maxs) {
		t.Error("box straddling brush face not occupied")
	}
}
