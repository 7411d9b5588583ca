// Package solver advances a single rigid body in time with explicit Euler steps on
// its linear and angular momenta, and resolves contacts against a static surface with
// an instantaneous impulse.
package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/rigidsim/actor"
	"github.com/akmonengine/rigidsim/linalg"
	"github.com/akmonengine/rigidsim/logging"
	"github.com/akmonengine/rigidsim/sat"
)

var (
	ErrInvalidTimestep = errors.New("invalid timestep")
	ErrInvalidParams   = errors.New("invalid solver parameters")
	ErrNilBody         = errors.New("nil body")
)

// RigidSolver owns one body and integrates it step by step.
// It is not safe for concurrent use; independent solvers may run in parallel.
type RigidSolver struct {
	Body     *actor.RigidBody
	Params   Params
	Schedule ForceSchedule
	Logger   logging.Logger

	step    int
	simTime float64
}

// NewRigidSolver creates a solver for body. A nil schedule applies gravity only.
func NewRigidSolver(body *actor.RigidBody, params Params, schedule ForceSchedule, logger logging.Logger) (*RigidSolver, error) {
	if body == nil {
		return nil, ErrNilBody
	}
	if !(params.PenetrationSoftening > 0) {
		return nil, fmt.Errorf("%w: penetration softening %v", ErrInvalidParams, params.PenetrationSoftening)
	}
	if params.Restitution < 0 || math.IsNaN(params.Restitution) {
		return nil, fmt.Errorf("%w: restitution %v", ErrInvalidParams, params.Restitution)
	}
	if schedule == nil {
		schedule = Gravity{}
	}

	return &RigidSolver{
		Body:     body,
		Params:   params,
		Schedule: schedule,
		Logger:   logging.OrNop(logger),
	}, nil
}

// Init resets the step counter and the simulated time.
func (s *RigidSolver) Init() {
	s.step = 0
	s.simTime = 0
}

// Steps returns the number of steps taken since Init.
func (s *RigidSolver) Steps() int {
	return s.step
}

// Time returns the simulated time since Init, in seconds.
func (s *RigidSolver) Time() float64 {
	return s.simTime
}

// Step advances the body by dt. The collision info must come from a fresh check of
// the body against a static surface, with the normal pointing toward the body.
func (s *RigidSolver) Step(dt float64, info sat.CollisionInfo) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTimestep, dt)
	}

	if s.Body.BodyType != actor.BodyTypeStatic {
		s.computeForceAndTorque()

		switch {
		case !info.HasCollision:
			s.freeFlight(dt)
		case info.LowConfidence() && s.Params.SkipLowConfidence:
			s.logger().Debugf("body %s: low confidence contact skipped", s.Body.ID)
			s.freeFlight(dt)
		default:
			s.respond(dt, info.Point, info.Normal)
		}
	}

	s.step++
	s.simTime += dt
	return nil
}

func (s *RigidSolver) computeForceAndTorque() {
	s.Body.Force, s.Body.Torque = s.Schedule.ForceAndTorque(s.step, s.Body, s.Params.Gravity)
}

// freeFlight integrates the momenta, then derives velocities and the orientation.
func (s *RigidSolver) freeFlight(dt float64) {
	rb := s.Body

	rb.LinearMomentum = rb.LinearMomentum.Add(rb.Force.Mul(dt))
	rb.AngularMomentum = rb.AngularMomentum.Add(rb.Torque.Mul(dt))
	rb.Transform.Position = rb.Transform.Position.Add(rb.LinearMomentum.Mul(dt / rb.Mass))

	rb.Velocity = rb.LinearMomentum.Mul(1.0 / rb.Mass)
	rb.UpdateInertiaWorld()
	rb.AngularVelocity = rb.InverseInertiaWorld.Mul3x1(rb.AngularMomentum)

	rb.Transform.Orientation.Integrate(rb.AngularVelocity, dt)
}

// respond applies the contact impulse at p along n, then a resting correction when the
// body keeps accelerating into the surface, and finally integrates.
func (s *RigidSolver) respond(dt float64, p, normal mgl64.Vec3) {
	rb := s.Body

	n, ok := linalg.SafeNormalize(normal)
	if !ok {
		s.logger().Warnf("body %s: contact without a usable normal %v", rb.ID, normal)
		s.freeFlight(dt)
		return
	}
	r := p.Sub(rb.Transform.Position)

	// Relative velocity of the contact point, the surface is static
	vrel := n.Dot(rb.Velocity.Add(rb.AngularVelocity.Cross(r)))
	if vrel > s.Params.SeparatingVelocity {
		s.logger().Debugf("body %s: separating contact, vrel=%.6f", rb.ID, vrel)
		s.freeFlight(dt)
		return
	}

	// Inverse inertia of the rotation the body is actually in
	rb.UpdateInertiaWorld()
	iInv := rb.InverseInertiaWorld

	// j = -(1+e) vrel / (1/M + n . ((Iinv (r x n)) x r))
	denominator := 1.0/rb.Mass + iInv.Mul3x1(r.Cross(n)).Cross(r).Dot(n)
	j := -(1 + s.Params.Restitution) * vrel / denominator
	impulse := n.Mul(j)

	rb.Torque = r.Cross(impulse)
	rb.LinearMomentum = rb.LinearMomentum.Add(impulse)
	rb.AngularMomentum = rb.AngularMomentum.Add(rb.Torque)
	rb.AngularVelocity = iInv.Mul3x1(rb.AngularMomentum)

	s.logger().Debugf("body %s: impact at %v, vrel=%.6f impulse=%v", rb.ID, p, vrel, impulse)

	// Normal acceleration of the contact point after the impulse
	omega := rb.AngularVelocity
	omegaDot := iInv.Mul3x1(rb.AngularMomentum.Cross(omega)).Add(iInv.Mul3x1(rb.Torque))
	acc := rb.Force.Mul(1.0 / rb.Mass).Add(omegaDot.Cross(r)).Add(omega.Cross(omega.Cross(r)))
	aSep := acc.Dot(n)

	if aSep < 0 {
		penetration := p.Sub(s.Params.ReferencePlane).Dot(n)
		if penetration <= 0 {
			push := -penetration / dt * rb.Mass / s.Params.PenetrationSoftening
			rb.LinearMomentum = rb.LinearMomentum.Add(n.Mul(push))
		}

		resting := n.Mul(-aSep * dt * rb.Mass)
		rb.LinearMomentum = rb.LinearMomentum.Add(resting)
		rb.AngularMomentum = rb.AngularMomentum.Add(r.Cross(resting))
	}

	rb.LinearMomentum = rb.LinearMomentum.Add(rb.Force.Mul(dt))
	rb.AngularMomentum = rb.AngularMomentum.Add(rb.Torque.Mul(dt))

	rb.Velocity = rb.LinearMomentum.Mul(1.0 / rb.Mass)
	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))
	rb.AngularVelocity = iInv.Mul3x1(rb.AngularMomentum)

	rb.Transform.Orientation.Integrate(rb.AngularVelocity, dt)
	rb.UpdateInertiaWorld()
}

func (s *RigidSolver) logger() logging.Logger {
	return logging.OrNop(s.Logger)
}
