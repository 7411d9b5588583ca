package actor

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/akmonengine/rigidsim/linalg"
)

var (
	ErrInvalidMass       = errors.New("invalid mass")
	ErrSingularInertia   = errors.New("singular inertia tensor")
	ErrInvalidDimensions = errors.New("invalid shape dimensions")
	ErrInvalidDensity    = errors.New("invalid density")
)

// inertiaDeterminantEpsilon is the determinant under which the body-space inertia
// tensor is considered non-invertible.
const inertiaDeterminantEpsilon = 1e-12

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic
)

// RigidBody holds the physical and kinematic state of one body.
// It is mutated in place by the single solver that owns it.
type RigidBody struct {
	ID       uuid.UUID
	BodyType BodyType
	Shape    Shape

	Mass    float64
	Density float64
	// Inertia tensor and its inverse in body space
	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3
	// Inverse inertia tensor in world space, refreshed by the solver after every rotation
	InverseInertiaWorld mgl64.Mat3

	// Position and orientation
	Transform Transform

	LinearMomentum  mgl64.Vec3
	AngularMomentum mgl64.Vec3

	// Derived from the momenta
	Velocity        mgl64.Vec3 // m/s
	AngularVelocity mgl64.Vec3 // rad/s

	// Net force and torque of the current step
	Force  mgl64.Vec3
	Torque mgl64.Vec3
}

// NewRigidBody creates a new dynamic rigid body. Mass and inertia are derived from the
// shape and density, and validated: a body that would produce NaN state is rejected.
func NewRigidBody(transform Transform, shape Shape, density float64) (*RigidBody, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if !(density > 0) || math.IsInf(density, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDensity, density)
	}

	mass := shape.ComputeMass(density)
	if !(mass > 0) || math.IsInf(mass, 0) {
		return nil, fmt.Errorf("%w: %v computed for %s with density %v", ErrInvalidMass, mass, shape.Type(), density)
	}

	inertia := shape.ComputeInertia(mass)
	if det := inertia.Det(); math.Abs(det) < inertiaDeterminantEpsilon || !linalg.IsFiniteMat3(inertia) {
		return nil, fmt.Errorf("%w: det=%v", ErrSingularInertia, det)
	}

	rb := &RigidBody{
		ID:                  uuid.New(),
		BodyType:            BodyTypeDynamic,
		Shape:               shape,
		Mass:                mass,
		Density:             density,
		InertiaLocal:        inertia,
		InverseInertiaLocal: inertia.Inv(),
		Transform:           transform,
	}
	rb.UpdateInertiaWorld()

	return rb, nil
}

// NewStaticBody creates an immovable body, such as the floor.
func NewStaticBody(transform Transform, shape Shape) (*RigidBody, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}

	return &RigidBody{
		ID:        uuid.New(),
		BodyType:  BodyTypeStatic,
		Shape:     shape,
		Mass:      math.Inf(1),
		Transform: transform,
	}, nil
}

// NewBox creates a dynamic box of the given full dimensions and density,
// launched with the initial linear velocity v0 and angular velocity omega0.
func NewBox(width, height, depth, density float64, v0, omega0 mgl64.Vec3) (*RigidBody, error) {
	rb, err := NewRigidBody(NewTransform(), NewBoxShape(width, height, depth), density)
	if err != nil {
		return nil, err
	}

	rb.SetVelocity(v0, omega0)
	return rb, nil
}

// SetVelocity sets the linear and angular velocities and the matching momenta.
func (rb *RigidBody) SetVelocity(v, omega mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic {
		return
	}

	rb.UpdateInertiaWorld()
	rb.Velocity = v
	rb.AngularVelocity = omega
	rb.LinearMomentum = v.Mul(rb.Mass)
	rb.AngularMomentum = rb.GetInertiaWorld().Mul3x1(omega)
}

// InverseMass returns 1/M, zero for static bodies.
func (rb *RigidBody) InverseMass() float64 {
	if rb.BodyType == BodyTypeStatic {
		return 0
	}
	return 1.0 / rb.Mass
}

// Rotation returns the rotation matrix R.
func (rb *RigidBody) Rotation() mgl64.Mat3 {
	return rb.Transform.Orientation.Mat3()
}

// WorldMatrix returns the 4x4 transform used to place the body mesh in the scene.
func (rb *RigidBody) WorldMatrix() mgl64.Mat4 {
	return rb.Transform.Mat4()
}

// VertexPositions returns the body-space vertex list collision geometry is derived from.
func (rb *RigidBody) VertexPositions() []mgl64.Vec3 {
	return rb.Shape.VertexPositions()
}

// VertexWorld returns vertex i of the body mesh in world space.
func (rb *RigidBody) VertexWorld(i int) mgl64.Vec3 {
	return rb.Transform.Position.Add(rb.Rotation().Mul3x1(rb.VertexPositions()[i]))
}

// PointVelocity returns the world velocity of the material point at p: v + ω × (p - x).
func (rb *RigidBody) PointVelocity(p mgl64.Vec3) mgl64.Vec3 {
	return rb.Velocity.Add(rb.AngularVelocity.Cross(p.Sub(rb.Transform.Position)))
}

// Inertie en espace monde
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	R := rb.Rotation()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// Inverse de l'inertie en espace monde
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.BodyType == BodyTypeStatic {
		return mgl64.Mat3{0, 0, 0, 0, 0, 0, 0, 0, 0}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Rotation()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}

// UpdateInertiaWorld caches the world-space inverse inertia for the current rotation.
func (rb *RigidBody) UpdateInertiaWorld() {
	rb.InverseInertiaWorld = rb.GetInverseInertiaWorld()
}

// KineticEnergy returns ½mv² + ½ωᵀIω.
func (rb *RigidBody) KineticEnergy() float64 {
	if rb.BodyType == BodyTypeStatic {
		return 0
	}
	linear := 0.5 * rb.Mass * rb.Velocity.LenSqr()
	angular := 0.5 * rb.AngularVelocity.Dot(rb.GetInertiaWorld().Mul3x1(rb.AngularVelocity))
	return linear + angular
}
