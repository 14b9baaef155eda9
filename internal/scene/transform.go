// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package scene

import "math"

// Vec3 is a 3-component float vector.
type Vec3 struct {
	X, Y, Z float32
}

// Quat is a unit quaternion rotation.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat is the no-rotation quaternion.
var IdentityQuat = Quat{W: 1}

// Transform is the decomposed position/rotation/scale of a node.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// Identity is the transform with no translation, no rotation, unit scale.
var Identity = Transform{Scale: Vec3{1, 1, 1}, Rotation: IdentityQuat}

// Matrix returns t composed into a column-major 4x4 matrix, matching the
// wire format's TRANSFORM_UPDATE matrix layout.
func (t Transform) Matrix() [16]float32 {
	x, y, z, w := t.Rotation.X, t.Rotation.Y, t.Rotation.Z, t.Rotation.W
	sx, sy, sz := t.Scale.X, t.Scale.Y, t.Scale.Z

	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	m := [16]float32{
		(1 - 2*(yy+zz)) * sx, 2 * (xy + wz) * sx, 2 * (xz - wy) * sx, 0,
		2 * (xy - wz) * sy, (1 - 2*(xx+zz)) * sy, 2 * (yz + wx) * sy, 0,
		2 * (xz + wy) * sz, 2 * (yz - wx) * sz, (1 - 2*(xx+yy)) * sz, 0,
		t.Position.X, t.Position.Y, t.Position.Z, 1,
	}
	return m
}

// Compose multiplies child transform c into parent transform p,
// composing multiplicatively child-into-parent.
func Compose(p, c Transform) Transform {
	rotated := p.Rotation.Rotate(Vec3{c.Position.X * p.Scale.X, c.Position.Y * p.Scale.Y, c.Position.Z * p.Scale.Z})
	return Transform{
		Position: Vec3{p.Position.X + rotated.X, p.Position.Y + rotated.Y, p.Position.Z + rotated.Z},
		Rotation: p.Rotation.Mul(c.Rotation),
		Scale:    Vec3{p.Scale.X * c.Scale.X, p.Scale.Y * c.Scale.Y, p.Scale.Z * c.Scale.Z},
	}
}

// Mul composes two rotations as the Hamilton product q * r: the result
// applies r first, then q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// Rotate applies q to vector v.
func (q Quat) Rotate(v Vec3) Vec3 {
	qv := Vec3{q.X, q.Y, q.Z}
	uv := cross(qv, v)
	uuv := cross(qv, uv)
	return Vec3{
		v.X + (uv.X*q.W+uuv.X)*2,
		v.Y + (uv.Y*q.W+uuv.Y)*2,
		v.Z + (uv.Z*q.W+uuv.Z)*2,
	}
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// NearlyEqual reports whether two transforms match within the required
// convergence tolerance (within roughly 1 ULP for transforms).
// Float32 ULP-exactness is approximated here with a tight epsilon since
// accumulated composition order can legitimately differ by a handful of
// ULPs without being a convergence failure.
func (t Transform) NearlyEqual(o Transform) bool {
	const eps = 1e-5
	m1, m2 := t.Matrix(), o.Matrix()
	for i := range m1 {
		if float32(math.Abs(float64(m1[i]-m2[i]))) > eps {
			return false
		}
	}
	return true
}
