package sat

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/rigidsim/actor"
	"github.com/akmonengine/rigidsim/obb"
)

// ContactType classifies the feature of the moving box touching the static one.
type ContactType int

const (
	ContactVertexFace ContactType = iota
	ContactEdgeFace
	ContactFaceFace
	// ContactOther is a degraded result: the contact point is the world origin
	// and should be treated as low confidence.
	ContactOther
)

func (c ContactType) String() string {
	switch c {
	case ContactVertexFace:
		return "vertex-face"
	case ContactEdgeFace:
		return "edge-face"
	case ContactFaceFace:
		return "face-face"
	case ContactOther:
		return "other"
	}
	return fmt.Sprintf("ContactType(%d)", int(c))
}

// CollisionInfo describes the overlap of two boxes for one step.
// It is produced fresh by the detector and consumed once by the solver.
type CollisionInfo struct {
	HasCollision bool
	Type         ContactType
	Point        mgl64.Vec3
	// Normal is unit length and points from the second body toward the first
	Normal mgl64.Vec3
	// Depth is the smallest overlap over the tested separating axes
	Depth float64
	// Incident is the number of near-incident vertices found on the first box
	Incident int

	// Colliding bodies, nil when boxes were tested directly
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

// LowConfidence reports whether the contact point is a fallback value.
func (info CollisionInfo) LowConfidence() bool {
	return info.HasCollision && info.Type == ContactOther
}

// CorrectionOffset returns the translation that moves the first body out along
// the normal by ratio.
func (info CollisionInfo) CorrectionOffset(ratio float64) mgl64.Vec3 {
	if !info.HasCollision {
		return mgl64.Vec3{}
	}
	return info.Normal.Mul(ratio)
}

// locateContact finds the corners of a nearest to the reference point of b along the
// normal, and classifies the contact by their count. It assumes b is static.
// It returns the number of incident corners.
func locateContact(a, b obb.OBB, normal mgl64.Vec3, threshold float64) (ContactType, mgl64.Vec3, int) {
	corners := a.Corners()
	pointOnPlane := b.Center

	var distances [8]float64
	var minDistance float64
	for i, c := range corners {
		distances[i] = c.Sub(pointOnPlane).Dot(normal)
		if i == 0 || distances[i] < minDistance {
			minDistance = distances[i]
		}
	}

	incident := make([]mgl64.Vec3, 0, 8)
	for i, c := range corners {
		if distances[i] < minDistance+threshold {
			incident = append(incident, c)
		}
	}

	switch len(incident) {
	case 0:
		return ContactOther, mgl64.Vec3{}, 0
	case 1:
		return ContactVertexFace, incident[0], 1
	case 2:
		return ContactEdgeFace, incident[0].Add(incident[1]).Mul(0.5), 2
	case 4:
		centroid := incident[0].Add(incident[1]).Add(incident[2]).Add(incident[3]).Mul(0.25)
		return ContactFaceFace, centroid, 4
	}
	return ContactOther, mgl64.Vec3{}, len(incident)
}
