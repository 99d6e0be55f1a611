// SPDX-License-Identifier: GPL-2.0-or-later

// Package bsp holds the collision side of a binary space partitioned
// level: planes, convex brushes, the node/leaf tree over them, point
// containment queries and the swept box trace. The tree is built once by
// the level loader and is read-only afterwards, so traces need no
// synchronization.
package bsp

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"bspmove/math/vec"
)

type Contents uint32

const (
	ContentsSolid Contents = 1 << iota
	ContentsWindow
	ContentsAux
	ContentsLava
	ContentsSlime
	ContentsWater
	ContentsMist
)

const (
	ContentsPlayerClip Contents = 1 << (16 + iota)
	ContentsMonsterClip
)

const ContentsTrigger Contents = 1 << 30

const ContentsEmpty Contents = 0

const (
	MaskSolid       = ContentsSolid | ContentsWindow
	MaskPlayerSolid = MaskSolid | ContentsPlayerClip
	MaskWater       = ContentsWater | ContentsLava | ContentsSlime
	MaskAll         = Contents(0xffffffff)
)

// Plane types 0-2 are axis aligned with a positive normal and get the
// cheap distance path, everything else goes through the full dot product.
const planeAny = 3

type Plane struct {
	Normal vec.Vec3
	Dist   float32
	Type   byte
}

func planeTypeFor(n vec.Vec3) byte {
	switch {
	case n[0] == 1:
		return 0
	case n[1] == 1:
		return 1
	case n[2] == 1:
		return 2
	}
	return planeAny
}

func (p *Plane) dist(v vec.Vec3) float32 {
	if p.Type < planeAny {
		return v[p.Type] - p.Dist
	}
	return vec.DoublePrecDot(p.Normal, v) - p.Dist
}

// Brush is a convex solid defined by the intersection of the half spaces
// behind its planes.
type Brush struct {
	Planes   []int32
	Contents Contents
}

// Node children are node indices when non-negative and encoded leaf
// references otherwise, see LeafRef.
type Node struct {
	Plane    int32
	Children [2]int32
}

type Leaf struct {
	Contents Contents
	Brushes  []int32
}

// LeafRef encodes a leaf index as a node child reference.
func LeafRef(i int32) int32 {
	return -(i + 1)
}

// TreeData is the assembled level geometry a loader hands over. NewTree
// validates it once; traces assume a valid tree and do not re-check.
type TreeData struct {
	Planes  []Plane
	Brushes []Brush
	Nodes   []Node
	Leaves  []Leaf
	Root    int32
}

// Tree is the immutable spatial partition over the level. All arenas are
// addressed by index, nodes never alias.
type Tree struct {
	planes  []Plane
	brushes []Brush
	nodes   []Node
	leaves  []Leaf
	root    int32
}

const normalTolerance = 1e-3

func NewTree(d TreeData) (*Tree, error) {
	if len(d.Leaves) == 0 {
		return nil, errors.New("tree without leaves")
	}
	for i, p := range d.Planes {
		l := p.Normal.Length()
		if math32.Abs(l-1) > normalTolerance {
			return nil, errors.Errorf("plane %d: normal %v not unit length", i, p.Normal)
		}
	}
	for i, b := range d.Brushes {
		if len(b.Planes) == 0 {
			return nil, errors.Errorf("brush %d: no planes", i)
		}
		for _, pi := range b.Planes {
			if pi < 0 || int(pi) >= len(d.Planes) {
				return nil, errors.Errorf("brush %d: plane index %d out of range", i, pi)
			}
		}
	}
	checkRef := func(c int32) error {
		if c >= 0 {
			if int(c) >= len(d.Nodes) {
				return errors.Errorf("node reference %d out of range", c)
			}
			return nil
		}
		if int(-c-1) >= len(d.Leaves) {
			return errors.Errorf("leaf reference %d out of range", c)
		}
		return nil
	}
	for i, n := range d.Nodes {
		if n.Plane < 0 || int(n.Plane) >= len(d.Planes) {
			return nil, errors.Errorf("node %d: plane index %d out of range", i, n.Plane)
		}
		for _, c := range n.Children {
			if err := checkRef(c); err != nil {
				return nil, errors.Wrapf(err, "node %d", i)
			}
		}
	}
	for i, l := range d.Leaves {
		for _, bi := range l.Brushes {
			if bi < 0 || int(bi) >= len(d.Brushes) {
				return nil, errors.Errorf("leaf %d: brush index %d out of range", i, bi)
			}
		}
	}
	if err := checkRef(d.Root); err != nil {
		return nil, errors.Wrap(err, "root")
	}

	t := &Tree{
		planes:  append([]Plane(nil), d.Planes...),
		brushes: append([]Brush(nil), d.Brushes...),
		nodes:   append([]Node(nil), d.Nodes...),
		leaves:  append([]Leaf(nil), d.Leaves...),
		root:    d.Root,
	}
	for i := range t.planes {
		t.planes[i].Type = planeTypeFor(t.planes[i].Normal)
	}
	return t, nil
}
