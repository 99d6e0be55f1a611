// SPDX-License-Identifier: GPL-2.0-or-later

package vec

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Mgl converts the vector for consumers working with mathgl, like
// renderer and camera code.
func (v Vec3) Mgl() mgl32.Vec3 {
	return mgl32.Vec3{v[0], v[1], v[2]}
}

// FromMgl converts a mathgl vector.
func FromMgl(v mgl32.Vec3) Vec3 {
	return Vec3{v.X(), v.Y(), v.Z()}
}
