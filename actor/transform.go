package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Orientation keeps a unit quaternion and the rotation matrix derived from it.
// Both forms are only written together, by Set and Integrate, so they never drift apart.
// The zero value is the identity rotation.
type Orientation struct {
	q     mgl64.Quat
	r     mgl64.Mat3
	valid bool
}

// NewOrientation creates an orientation from any non-null quaternion; q is normalized.
func NewOrientation(q mgl64.Quat) Orientation {
	var o Orientation
	o.Set(q)
	return o
}

// Set replaces the orientation. A null or non-finite quaternion resets to identity.
func (o *Orientation) Set(q mgl64.Quat) {
	length := q.Len()
	if length < 1e-12 || math.IsNaN(length) || math.IsInf(length, 0) {
		q = mgl64.QuatIdent()
	} else {
		q = q.Scale(1.0 / length)
	}

	o.q = q
	o.r = q.Mat4().Mat3()
	o.valid = true
}

// Integrate advances the orientation by the angular velocity omega (rad/s, world space)
// over dt: q += 0.5 * dt * (0, omega) * q, then renormalizes.
func (o *Orientation) Integrate(omega mgl64.Vec3, dt float64) {
	q := o.Quat()
	omegaQuat := mgl64.Quat{W: 0, V: omega}
	qDot := omegaQuat.Mul(q).Scale(0.5)
	o.Set(q.Add(qDot.Scale(dt)))
}

// Quat returns the unit quaternion.
func (o Orientation) Quat() mgl64.Quat {
	if !o.valid {
		return mgl64.QuatIdent()
	}
	return o.q
}

// Mat3 returns the rotation matrix, whose columns are the body axes in world space.
func (o Orientation) Mat3() mgl64.Mat3 {
	if !o.valid {
		return mgl64.Ident3()
	}
	return o.r
}

// Transform places a body in world space
type Transform struct {
	Position    mgl64.Vec3
	Orientation Orientation
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:    mgl64.Vec3{0, 0, 0},
		Orientation: NewOrientation(mgl64.QuatIdent()),
	}
}

// Mat4 returns the homogeneous world matrix (rotation then translation).
func (t Transform) Mat4() mgl64.Mat4 {
	r := t.Orientation.Mat3()
	return mgl64.Mat4{
		r[0], r[1], r[2], 0,
		r[3], r[4], r[5], 0,
		r[6], r[7], r[8], 0,
		t.Position[0], t.Position[1], t.Position[2], 1,
	}
}
