// Package linalg holds the small amount of 3D linear algebra that mgl64 does not
// provide: guarded normalization, outer products, basis completion and a closed-form
// eigen-solver for real symmetric 3x3 matrices.
package linalg

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NormalizeEpsilon is the squared length under which a vector is considered null
// and cannot be normalized.
const NormalizeEpsilon = 1e-12

// SafeNormalize returns the unit vector of v, or false when v is too short
// to have a direction.
func SafeNormalize(v mgl64.Vec3) (mgl64.Vec3, bool) {
	lenSqr := v.LenSqr()
	if lenSqr < NormalizeEpsilon || math.IsNaN(lenSqr) || math.IsInf(lenSqr, 0) {
		return mgl64.Vec3{}, false
	}

	return v.Mul(1.0 / math.Sqrt(lenSqr)), true
}

// Outer returns the outer product a * b^T.
func Outer(a, b mgl64.Vec3) mgl64.Mat3 {
	// mgl64 matrices are column-major: column j is a * b[j]
	return mgl64.Mat3FromCols(a.Mul(b[0]), a.Mul(b[1]), a.Mul(b[2]))
}

// Perpendicular returns a unit vector orthogonal to the unit vector n.
// The world axis least aligned with n is used as seed, so the result is deterministic.
func Perpendicular(n mgl64.Vec3) mgl64.Vec3 {
	ax, ay, az := math.Abs(n[0]), math.Abs(n[1]), math.Abs(n[2])

	seed := mgl64.Vec3{1, 0, 0}
	if ay < ax && ay <= az {
		seed = mgl64.Vec3{0, 1, 0}
	} else if az < ax && az < ay {
		seed = mgl64.Vec3{0, 0, 1}
	}

	p, ok := SafeNormalize(seed.Sub(n.Mul(n.Dot(seed))))
	if !ok {
		return mgl64.Vec3{0, 1, 0}
	}
	return p
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// IsFiniteMat3 reports whether every entry of m is a finite number.
func IsFiniteMat3(m mgl64.Mat3) bool {
	for _, c := range m {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
