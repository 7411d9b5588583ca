package solver

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/rigidsim/actor"
)

// ForceSchedule supplies the net force and torque applied to a body at a given step.
// It keeps scripted excitations out of the integrator.
type ForceSchedule interface {
	ForceAndTorque(step int, body *actor.RigidBody, gravity mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3)
}

// Gravity applies the weight of the body and no torque.
type Gravity struct{}

func (Gravity) ForceAndTorque(step int, body *actor.RigidBody, gravity mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	return gravity.Mul(body.Mass), mgl64.Vec3{}
}

// Kick replaces the force at one step by Force applied at the body vertex Vertex,
// which also produces a torque. An out of range vertex applies it at the center of
// mass. Every other step falls back to Then, or gravity.
type Kick struct {
	Step   int
	Vertex int
	Force  mgl64.Vec3
	Then   ForceSchedule
}

func (k Kick) ForceAndTorque(step int, body *actor.RigidBody, gravity mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	if step != k.Step {
		if k.Then == nil {
			return Gravity{}.ForceAndTorque(step, body, gravity)
		}
		return k.Then.ForceAndTorque(step, body, gravity)
	}

	vertices := body.VertexPositions()
	if k.Vertex < 0 || k.Vertex >= len(vertices) {
		return k.Force, mgl64.Vec3{}
	}

	// torque = r x F, r from the center of mass to the vertex
	r := body.Rotation().Mul3x1(vertices[k.Vertex])
	return k.Force, r.Cross(k.Force)
}

// ScheduleFunc adapts a function to ForceSchedule.
type ScheduleFunc func(step int, body *actor.RigidBody, gravity mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3)

func (f ScheduleFunc) ForceAndTorque(step int, body *actor.RigidBody, gravity mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	return f(step, body, gravity)
}
