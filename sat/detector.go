// Package sat implements discrete collision detection between oriented bounding boxes
// with the Separating Axis Theorem.
//
// Two convex shapes are disjoint if and only if there is an axis on which their
// projections do not overlap. For two boxes it is enough to test 15 axes: the 3 face
// normals of each box and the 9 cross products of one box's edges with the other's.
//
// When every axis overlaps, the axis with the smallest overlap is kept as the contact
// normal (minimum translation distance), and the contact point is located with the
// near-incident vertices of the first box. The contact search assumes the second box
// is static (floor, wall, boundary).
package sat

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/rigidsim/actor"
	"github.com/akmonengine/rigidsim/linalg"
	"github.com/akmonengine/rigidsim/logging"
	"github.com/akmonengine/rigidsim/obb"
)

const (
	// DefaultAxisEpsilon is the length under which a cross product axis is considered
	// degenerate (parallel edges) and skipped.
	DefaultAxisEpsilon = 1e-6

	// DefaultContactThreshold is the distance band above the deepest corner within which
	// corners count as incident to the contact.
	DefaultContactThreshold = 0.005
)

// ErrNoContact reports boxes that overlap on every axis while no corner of the first box
// could be located at the contact, which only happens with non-finite geometry.
var ErrNoContact = errors.New("sat: overlap without contact vertex")

// Params holds the tunable tolerances of the detector.
type Params struct {
	AxisEpsilon      float64
	ContactThreshold float64
}

func DefaultParams() Params {
	return Params{
		AxisEpsilon:      DefaultAxisEpsilon,
		ContactThreshold: DefaultContactThreshold,
	}
}

// Detector checks pairs of boxes. It holds no per-check state and may be shared.
type Detector struct {
	Params Params
	Logger logging.Logger
}

// NewDetector creates a detector with the default parameters.
// A nil logger discards the classification traces.
func NewDetector(logger logging.Logger) *Detector {
	return &Detector{
		Params: DefaultParams(),
		Logger: logging.OrNop(logger),
	}
}

// Axes returns the candidate separating axes of a and b, normalized, in test order:
// for each axis i of a, the axis i of a, the axis i of b, then a[i] x b[j] for each j.
// Degenerate cross products are left out.
func Axes(a, b obb.OBB, epsilon float64) []mgl64.Vec3 {
	axesA := a.Axes()
	axesB := b.Axes()

	axes := make([]mgl64.Vec3, 0, 15)
	add := func(axis mgl64.Vec3) {
		if axis.Len() < epsilon {
			return
		}
		if n, ok := linalg.SafeNormalize(axis); ok {
			axes = append(axes, n)
		}
	}

	for i := 0; i < 3; i++ {
		add(axesA[i])
		add(axesB[i])
		for j := 0; j < 3; j++ {
			add(axesA[i].Cross(axesB[j]))
		}
	}
	return axes
}

// Detect tests a against b. On overlap the normal points from b toward a and the
// contact is located on a, b being treated as static.
//
// A geometric inconsistency (overlap on every axis but no contact vertex) is reported
// as ErrNoContact together with an info whose HasCollision is false.
func (d *Detector) Detect(a, b obb.OBB) (CollisionInfo, error) {
	info := CollisionInfo{Depth: math.MaxFloat64}

	axes := Axes(a, b, d.Params.AxisEpsilon)
	if len(axes) == 0 {
		return CollisionInfo{}, nil
	}

	for _, axis := range axes {
		minA, maxA := a.Project(axis)
		minB, maxB := b.Project(axis)
		if maxA < minB || maxB < minA {
			// Separating axis found
			return CollisionInfo{}, nil
		}

		depth := math.Min(maxA, maxB) - math.Max(minA, minB)
		if depth < info.Depth {
			info.Depth = depth
			info.Normal = axis
		}
	}

	if info.Normal.Dot(a.Center.Sub(b.Center)) < 0 {
		info.Normal = info.Normal.Mul(-1)
	}

	contactType, point, incident := locateContact(a, b, info.Normal, d.Params.ContactThreshold)
	info.Incident = incident
	if incident == 0 {
		d.logger().Warnf("overlap without contact vertex, normal=%v depth=%v", info.Normal, info.Depth)
		return CollisionInfo{Normal: info.Normal, Depth: info.Depth}, ErrNoContact
	}

	info.HasCollision = true
	info.Type = contactType
	info.Point = point

	if contactType == ContactOther {
		d.logger().Warnf("unclassified contact with %d incident vertices, point defaults to origin", incident)
	} else {
		d.logger().Debugf("%s contact at %v, normal=%v depth=%.6f", contactType, point, info.Normal, info.Depth)
	}

	return info, nil
}

// CheckMeshes fits a box to each mesh under its world transform and tests them.
func (d *Detector) CheckMeshes(meshA obb.Mesh, worldA mgl64.Mat4, meshB obb.Mesh, worldB mgl64.Mat4) (CollisionInfo, error) {
	boxA, err := obb.FromMesh(meshA, worldA)
	if err != nil {
		return CollisionInfo{}, fmt.Errorf("first mesh: %w", err)
	}
	boxB, err := obb.FromMesh(meshB, worldB)
	if err != nil {
		return CollisionInfo{}, fmt.Errorf("second mesh: %w", err)
	}

	return d.Detect(boxA, boxB)
}

// CheckBodies tests the moving body a against the body b, usually static.
func (d *Detector) CheckBodies(a, b *actor.RigidBody) (CollisionInfo, error) {
	info, err := d.CheckMeshes(a, a.WorldMatrix(), b, b.WorldMatrix())
	info.BodyA = a
	info.BodyB = b
	if err != nil {
		return info, fmt.Errorf("bodies %s and %s: %w", a.ID, b.ID, err)
	}
	return info, nil
}

// DetectPairs tests every pair of bodies, brute force in O(n²).
// Only colliding pairs are returned; pairs that failed are skipped and logged.
func (d *Detector) DetectPairs(bodies []*actor.RigidBody) []CollisionInfo {
	boxes := make([]obb.OBB, len(bodies))
	valid := make([]bool, len(bodies))
	for i, body := range bodies {
		box, err := obb.FromMesh(body, body.WorldMatrix())
		if err != nil {
			d.logger().Warnf("body %s skipped: %v", body.ID, err)
			continue
		}
		boxes[i] = box
		valid[i] = true
	}

	var collisions []CollisionInfo
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			if !valid[i] || !valid[j] {
				continue
			}
			// The contact search expects the static body second
			a, b := i, j
			if bodies[i].BodyType == actor.BodyTypeStatic && bodies[j].BodyType != actor.BodyTypeStatic {
				a, b = j, i
			}

			info, err := d.Detect(boxes[a], boxes[b])
			if err != nil {
				d.logger().Warnf("bodies %s and %s: %v", bodies[a].ID, bodies[b].ID, err)
				continue
			}
			if info.HasCollision {
				info.BodyA = bodies[a]
				info.BodyB = bodies[b]
				collisions = append(collisions, info)
			}
		}
	}
	return collisions
}

func (d *Detector) logger() logging.Logger {
	return logging.OrNop(d.Logger)
}
