package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/rigidsim/actor"
	"github.com/akmonengine/rigidsim/linalg"
	"github.com/akmonengine/rigidsim/sat"
)

const epsilon = 1e-9

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func vec3AlmostEqual(a, b mgl64.Vec3, tolerance float64) bool {
	return almostEqual(a.X(), b.X(), tolerance) &&
		almostEqual(a.Y(), b.Y(), tolerance) &&
		almostEqual(a.Z(), b.Z(), tolerance)
}

// mat3AlmostEqual compares entry by entry with an absolute tolerance
func mat3AlmostEqual(a, b mgl64.Mat3, tolerance float64) bool {
	for i := range a {
		if !almostEqual(a[i], b[i], tolerance) {
			return false
		}
	}
	return true
}

func newUnitBox(t *testing.T, v0, omega0 mgl64.Vec3) *actor.RigidBody {
	t.Helper()
	rb, err := actor.NewBox(1, 1, 1, 10, v0, omega0)
	if err != nil {
		t.Fatalf("NewBox failed: %v", err)
	}
	return rb
}

func newSolver(t *testing.T, rb *actor.RigidBody, params Params, schedule ForceSchedule) *RigidSolver {
	t.Helper()
	s, err := NewRigidSolver(rb, params, schedule, nil)
	if err != nil {
		t.Fatalf("NewRigidSolver failed: %v", err)
	}
	return s
}

func zeroGravity() Params {
	params := DefaultParams()
	params.Gravity = mgl64.Vec3{}
	return params
}

func TestNewRigidSolver(t *testing.T) {
	rb := newUnitBox(t, mgl64.Vec3{}, mgl64.Vec3{})

	t.Run("nil body", func(t *testing.T) {
		_, err := NewRigidSolver(nil, DefaultParams(), nil, nil)
		if !errors.Is(err, ErrNilBody) {
			t.Errorf("expected ErrNilBody, got %v", err)
		}
	})

	t.Run("zero softening", func(t *testing.T) {
		params := DefaultParams()
		params.PenetrationSoftening = 0
		_, err := NewRigidSolver(rb, params, nil, nil)
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("expected ErrInvalidParams, got %v", err)
		}
	})

	t.Run("negative restitution", func(t *testing.T) {
		params := DefaultParams()
		params.Restitution = -0.1
		_, err := NewRigidSolver(rb, params, nil, nil)
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("expected ErrInvalidParams, got %v", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		s := newSolver(t, rb, DefaultParams(), nil)
		if _, ok := s.Schedule.(Gravity); !ok {
			t.Errorf("expected Gravity schedule, got %T", s.Schedule)
		}
		if s.Logger == nil {
			t.Error("expected a non-nil logger")
		}
		if s.Steps() != 0 || s.Time() != 0 {
			t.Errorf("expected a fresh solver, got step=%d time=%v", s.Steps(), s.Time())
		}
	})
}

func TestStep_InvalidTimestep(t *testing.T) {
	rb := newUnitBox(t, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{})
	s := newSolver(t, rb, DefaultParams(), nil)

	for _, dt := range []float64{0, -0.01, math.NaN(), math.Inf(1)} {
		if err := s.Step(dt, sat.CollisionInfo{}); !errors.Is(err, ErrInvalidTimestep) {
			t.Errorf("dt=%v: expected ErrInvalidTimestep, got %v", dt, err)
		}
	}

	if s.Steps() != 0 {
		t.Errorf("rejected steps must not be counted, got %d", s.Steps())
	}
	if rb.Transform.Position != (mgl64.Vec3{}) {
		t.Errorf("rejected steps must not move the body, got %v", rb.Transform.Position)
	}
}

func TestStep_FreeFall(t *testing.T) {
	rb := newUnitBox(t, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{})
	s := newSolver(t, rb, DefaultParams(), nil)

	const dt = 0.01
	const n = 100
	for i := 0; i < n; i++ {
		if err := s.Step(dt, sat.CollisionInfo{}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	// Momentum is updated before the position: x_n = n*dt*v0 + dt²*g*n(n+1)/2
	expectedPosition := mgl64.Vec3{1, -9.81 * dt * dt * n * (n + 1) / 2, 0}
	if !vec3AlmostEqual(rb.Transform.Position, expectedPosition, 1e-9) {
		t.Errorf("position: expected %v, got %v", expectedPosition, rb.Transform.Position)
	}

	expectedVelocity := mgl64.Vec3{1, -9.81, 0}
	if !vec3AlmostEqual(rb.Velocity, expectedVelocity, 1e-9) {
		t.Errorf("velocity: expected %v, got %v", expectedVelocity, rb.Velocity)
	}
	if !vec3AlmostEqual(rb.LinearMomentum, expectedVelocity.Mul(rb.Mass), 1e-9) {
		t.Errorf("momentum: expected %v, got %v", expectedVelocity.Mul(rb.Mass), rb.LinearMomentum)
	}

	if s.Steps() != n {
		t.Errorf("expected %d steps, got %d", n, s.Steps())
	}
	if !almostEqual(s.Time(), n*dt, 1e-9) {
		t.Errorf("expected time %v, got %v", n*dt, s.Time())
	}
}

func TestStep_FreeFlightRotation(t *testing.T) {
	rb, err := actor.NewBox(1, 2, 3, 10, mgl64.Vec3{0, 2, 0}, mgl64.Vec3{1, 2, 3})
	if err != nil {
		t.Fatalf("NewBox failed: %v", err)
	}
	s := newSolver(t, rb, DefaultParams(), nil)
	initialL := rb.AngularMomentum

	for i := 0; i < 500; i++ {
		if err := s.Step(0.01, sat.CollisionInfo{}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}

		q := rb.Transform.Orientation.Quat()
		if !almostEqual(q.Len(), 1, 1e-5) {
			t.Fatalf("step %d: quaternion norm drifted to %v", i, q.Len())
		}

		r := rb.Rotation()
		if !mat3AlmostEqual(r.Transpose().Mul3(r), mgl64.Ident3(), 1e-9) {
			t.Fatalf("step %d: rotation is not orthonormal: %v", i, r)
		}
		if !mat3AlmostEqual(r, q.Mat4().Mat3(), 1e-12) {
			t.Fatalf("step %d: rotation out of sync with the quaternion", i)
		}
	}

	// Gravity applies no torque
	if !vec3AlmostEqual(rb.AngularMomentum, initialL, 1e-9) {
		t.Errorf("angular momentum: expected %v, got %v", initialL, rb.AngularMomentum)
	}
	if !vec3AlmostEqual(rb.AngularVelocity, rb.InverseInertiaWorld.Mul3x1(rb.AngularMomentum), 1e-9) {
		t.Error("angular velocity must be Iinv * L")
	}
}

func TestStep_AtRest(t *testing.T) {
	rb := newUnitBox(t, mgl64.Vec3{}, mgl64.Vec3{})
	rb.Transform.Position = mgl64.Vec3{1, 2, 3}
	rb.Transform.Orientation.Set(mgl64.QuatRotate(0.3, mgl64.Vec3{1, 1, 0}.Normalize()))
	s := newSolver(t, rb, zeroGravity(), nil)

	initialPosition := rb.Transform.Position
	initialQuat := rb.Transform.Orientation.Quat()

	for i := 0; i < 1000; i++ {
		if err := s.Step(0.01, sat.CollisionInfo{}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if rb.Transform.Position != initialPosition {
		t.Errorf("position: expected %v, got %v", initialPosition, rb.Transform.Position)
	}
	q := rb.Transform.Orientation.Quat()
	if !almostEqual(q.W, initialQuat.W, 1e-12) || !vec3AlmostEqual(q.V, initialQuat.V, 1e-12) {
		t.Errorf("orientation: expected %v, got %v", initialQuat, q)
	}
	if !almostEqual(q.Len(), 1, 1e-12) {
		t.Errorf("quaternion norm: expected 1, got %v", q.Len())
	}
	if rb.Velocity != (mgl64.Vec3{}) || rb.AngularVelocity != (mgl64.Vec3{}) {
		t.Errorf("expected the body to stay at rest, got v=%v ω=%v", rb.Velocity, rb.AngularVelocity)
	}
}

func TestStep_Restitution(t *testing.T) {
	tests := []struct {
		name     string
		approach float64
	}{
		{"slow", 0.5},
		{"medium", 2},
		{"fast", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newUnitBox(t, mgl64.Vec3{0, -tt.approach, 0}, mgl64.Vec3{})
			// Bottom face resting exactly on the reference plane y = -1
			rb.Transform.Position = mgl64.Vec3{0, -0.5, 0}
			s := newSolver(t, rb, zeroGravity(), nil)

			info := sat.CollisionInfo{
				HasCollision: true,
				Type:         sat.ContactFaceFace,
				Point:        mgl64.Vec3{0, -1, 0},
				Normal:       mgl64.Vec3{0, 1, 0},
				Incident:     4,
			}
			if err := s.Step(0.01, info); err != nil {
				t.Fatalf("Step failed: %v", err)
			}

			expected := DefaultRestitution * tt.approach
			if !almostEqual(rb.Velocity.Y(), expected, epsilon) {
				t.Errorf("rebound speed: expected %v, got %v", expected, rb.Velocity.Y())
			}
			if !vec3AlmostEqual(rb.AngularVelocity, mgl64.Vec3{}, epsilon) {
				t.Errorf("a centered impulse must not spin the box, got %v", rb.AngularVelocity)
			}
			if !almostEqual(rb.Transform.Position.Y(), -0.5+expected*0.01, epsilon) {
				t.Errorf("position: expected %v, got %v", -0.5+expected*0.01, rb.Transform.Position.Y())
			}
		})
	}
}

func TestStep_OffCenterImpactSpins(t *testing.T) {
	rb := newUnitBox(t, mgl64.Vec3{0, -2, 0}, mgl64.Vec3{})
	rb.Transform.Position = mgl64.Vec3{0, -0.5, 0}
	s := newSolver(t, rb, zeroGravity(), nil)

	info := sat.CollisionInfo{
		HasCollision: true,
		Type:         sat.ContactVertexFace,
		Point:        mgl64.Vec3{0.5, -1, 0.5},
		Normal:       mgl64.Vec3{0, 1, 0},
		Incident:     1,
	}
	if err := s.Step(0.01, info); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	if rb.AngularVelocity.Len() < epsilon {
		t.Error("an off-center impulse must spin the box")
	}

	// Part of the impulse goes into rotation: the center is only slowed down,
	// while the contact point itself bounces back.
	if rb.Velocity.Y() <= -2 || rb.Velocity.Y() >= 0 {
		t.Errorf("expected -2 < vy < 0, got %v", rb.Velocity.Y())
	}
	r := mgl64.Vec3{0.5, -0.5, 0.5}
	pointVelocity := rb.Velocity.Add(rb.AngularVelocity.Cross(r))
	if pointVelocity.Y() <= 0 {
		t.Errorf("the contact point must move away from the floor, got %v", pointVelocity)
	}
}

func TestStep_SeparatingContactIsFreeFlight(t *testing.T) {
	tests := []struct {
		name     string
		velocity mgl64.Vec3
	}{
		{"moving away", mgl64.Vec3{0, 1, 0}},
		{"resting", mgl64.Vec3{0, 0, 0}},
		{"within tolerance", mgl64.Vec3{0, -0.005, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contact := newUnitBox(t, tt.velocity, mgl64.Vec3{})
			free := newUnitBox(t, tt.velocity, mgl64.Vec3{})
			contact.Transform.Position = mgl64.Vec3{0, -0.5, 0}
			free.Transform.Position = mgl64.Vec3{0, -0.5, 0}

			info := sat.CollisionInfo{
				HasCollision: true,
				Type:         sat.ContactFaceFace,
				Point:        mgl64.Vec3{0, -1, 0},
				Normal:       mgl64.Vec3{0, 1, 0},
				Incident:     4,
			}
			if err := newSolver(t, contact, DefaultParams(), nil).Step(0.01, info); err != nil {
				t.Fatalf("Step failed: %v", err)
			}
			if err := newSolver(t, free, DefaultParams(), nil).Step(0.01, sat.CollisionInfo{}); err != nil {
				t.Fatalf("Step failed: %v", err)
			}

			if contact.Transform.Position != free.Transform.Position {
				t.Errorf("position: expected %v, got %v", free.Transform.Position, contact.Transform.Position)
			}
			if contact.LinearMomentum != free.LinearMomentum {
				t.Errorf("momentum: expected %v, got %v", free.LinearMomentum, contact.LinearMomentum)
			}
		})
	}
}

func TestStep_PenetrationCorrection(t *testing.T) {
	const dt = 0.01

	step := func(t *testing.T, contactY float64) *actor.RigidBody {
		rb := newUnitBox(t, mgl64.Vec3{0, -0.5, 0}, mgl64.Vec3{})
		rb.Transform.Position = mgl64.Vec3{0, contactY + 0.5, 0}
		s := newSolver(t, rb, DefaultParams(), nil)

		info := sat.CollisionInfo{
			HasCollision: true,
			Type:         sat.ContactFaceFace,
			Point:        mgl64.Vec3{0, contactY, 0},
			Normal:       mgl64.Vec3{0, 1, 0},
			Incident:     4,
		}
		if err := s.Step(dt, info); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		return rb
	}

	// Gravity keeps the contact accelerating into the floor: the resting impulse cancels
	// the step's weight, so only the restitution is left.
	onPlane := step(t, -1)
	if !almostEqual(onPlane.Velocity.Y(), DefaultRestitution*0.5, epsilon) {
		t.Errorf("on the plane: expected vy=%v, got %v", DefaultRestitution*0.5, onPlane.Velocity.Y())
	}

	// 0.1 below the plane adds penetration / dt / softening
	below := step(t, -1.1)
	expected := DefaultRestitution*0.5 + 0.1/dt/DefaultPenetrationSoftening
	if !almostEqual(below.Velocity.Y(), expected, 1e-9) {
		t.Errorf("below the plane: expected vy=%v, got %v", expected, below.Velocity.Y())
	}

	// Above the plane no correction is applied
	above := step(t, -0.9)
	if !almostEqual(above.Velocity.Y(), DefaultRestitution*0.5, epsilon) {
		t.Errorf("above the plane: expected vy=%v, got %v", DefaultRestitution*0.5, above.Velocity.Y())
	}
}

func TestStep_LowConfidence(t *testing.T) {
	info := sat.CollisionInfo{
		HasCollision: true,
		Type:         sat.ContactOther,
		Normal:       mgl64.Vec3{0, 1, 0},
		Incident:     3,
	}

	t.Run("responded by default", func(t *testing.T) {
		rb := newUnitBox(t, mgl64.Vec3{0, -2, 0}, mgl64.Vec3{})
		s := newSolver(t, rb, zeroGravity(), nil)
		if err := s.Step(0.01, info); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if rb.Velocity.Y() <= 0 {
			t.Errorf("expected a rebound, got vy=%v", rb.Velocity.Y())
		}
	})

	t.Run("skipped", func(t *testing.T) {
		rb := newUnitBox(t, mgl64.Vec3{0, -2, 0}, mgl64.Vec3{})
		params := zeroGravity()
		params.SkipLowConfidence = true
		s := newSolver(t, rb, params, nil)
		if err := s.Step(0.01, info); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if !almostEqual(rb.Velocity.Y(), -2, epsilon) {
			t.Errorf("expected free flight, got vy=%v", rb.Velocity.Y())
		}
	})
}

func TestStep_DegenerateNormal(t *testing.T) {
	rb := newUnitBox(t, mgl64.Vec3{0, -2, 0}, mgl64.Vec3{})
	s := newSolver(t, rb, zeroGravity(), nil)

	info := sat.CollisionInfo{HasCollision: true, Type: sat.ContactVertexFace, Incident: 1}
	if err := s.Step(0.01, info); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if !vec3AlmostEqual(rb.Velocity, mgl64.Vec3{0, -2, 0}, epsilon) {
		t.Errorf("expected free flight, got %v", rb.Velocity)
	}
	if !linalg.IsFinite(rb.Transform.Position) {
		t.Errorf("position must stay finite, got %v", rb.Transform.Position)
	}
}

func TestStep_StaticBody(t *testing.T) {
	floor, err := actor.NewStaticBody(actor.NewTransform(), &actor.Plane{HalfWidth: 5, HalfDepth: 5})
	if err != nil {
		t.Fatalf("NewStaticBody failed: %v", err)
	}
	s := newSolver(t, floor, DefaultParams(), nil)

	if err := s.Step(0.01, sat.CollisionInfo{}); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if floor.Transform.Position != (mgl64.Vec3{}) || floor.LinearMomentum != (mgl64.Vec3{}) {
		t.Errorf("static body must not move, got x=%v p=%v", floor.Transform.Position, floor.LinearMomentum)
	}
	if s.Steps() != 1 {
		t.Errorf("expected 1 step, got %d", s.Steps())
	}
}

func TestInit(t *testing.T) {
	rb := newUnitBox(t, mgl64.Vec3{}, mgl64.Vec3{})
	s := newSolver(t, rb, DefaultParams(), nil)

	for i := 0; i < 3; i++ {
		_ = s.Step(0.1, sat.CollisionInfo{})
	}
	s.Init()

	if s.Steps() != 0 || s.Time() != 0 {
		t.Errorf("expected reset counters, got step=%d time=%v", s.Steps(), s.Time())
	}
}
